package core

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bandkeeper/internal/blob"
	"bandkeeper/pkg/domain"
)

// DefaultExtendedCommands lists the commands whose requests carry a band
// payload unless overridden with WithExtendedCommands.
var DefaultExtendedCommands = []string{"add", "update", "insert_at", "set_at", "remove"}

// Outcome is what a command handler returns on success. Changes is empty for
// queries and for mutations that turned out to be no-ops.
type Outcome struct {
	Body    any
	Changes []Change
}

// HandlerFunc executes one request.
type HandlerFunc func(ctx context.Context, req domain.Request) (Outcome, error)

// Middleware wraps a handler; the first middleware passed to the dispatcher
// is the outermost.
type Middleware func(next HandlerFunc) HandlerFunc

// Command is one entry of the command table.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Handler HandlerFunc
}

// CommandHelp is the help listing entry for a command.
type CommandHelp struct {
	Name     string `json:"name"`
	Usage    string `json:"usage"`
	Summary  string `json:"summary"`
	Extended bool   `json:"extended"`
}

// Dispatcher maps requests to MemoryStore operations. It holds no
// per-request state; the store serializes all collection access.
type Dispatcher struct {
	store     *MemoryStore
	rules     *RulesEngine
	persister domain.Persister
	publisher ChangePublisher
	archive   blob.Store
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	clock     Clock

	commands map[string]Command
	extended map[string]struct{}
	extra    []Middleware

	// persistMu orders snapshot writes so a later snapshot is never
	// overwritten by an earlier one.
	persistMu sync.Mutex

	handle HandlerFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRulesEngine replaces the default payload rules.
func WithRulesEngine(engine *RulesEngine) Option {
	return func(d *Dispatcher) {
		if engine != nil {
			d.rules = engine
		}
	}
}

// WithPersister saves a snapshot after every effective mutation.
func WithPersister(p domain.Persister) Option {
	return func(d *Dispatcher) { d.persister = p }
}

// WithPublisher publishes the changes of every effective mutation.
func WithPublisher(p ChangePublisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithArchive enables the export command.
func WithArchive(store blob.Store) Option {
	return func(d *Dispatcher) { d.archive = store }
}

// WithLogger sets the logger used by the logging middleware.
func WithLogger(l Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the recorder used by the metrics middleware.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracer sets the tracer used by the tracing middleware.
func WithTracer(t Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithClock overrides the time source stamped on changes and exports.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithExtendedCommands replaces the set of payload-carrying commands.
func WithExtendedCommands(names ...string) Option {
	return func(d *Dispatcher) {
		d.extended = make(map[string]struct{}, len(names))
		for _, name := range names {
			d.extended[normalizeCommand(name)] = struct{}{}
		}
	}
}

// WithMiddleware appends middlewares inside the built-in chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) { d.extra = append(d.extra, mw...) }
}

// NewDispatcher builds a dispatcher over store with the built-in command
// table.
func NewDispatcher(store *MemoryStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		rules:    NewDefaultRulesEngine(),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		clock:    systemClock{},
		commands: make(map[string]Command),
	}
	WithExtendedCommands(DefaultExtendedCommands...)(d)
	for _, opt := range opts {
		opt(d)
	}
	d.registerBuiltins()

	chain := []Middleware{
		RecoveryMiddleware(d.logger),
		LoggingMiddleware(d.logger),
		MetricsMiddleware(d.metrics),
		TracingMiddleware(d.tracer),
	}
	d.handle = Chain(d.route, append(chain, d.extra...)...)
	return d
}

// Store returns the dispatched store.
func (d *Dispatcher) Store() *MemoryStore { return d.store }

// Register adds or replaces a command. Set extended to require a payload.
// Register is not safe for use once the dispatcher serves requests.
func (d *Dispatcher) Register(cmd Command, extended bool) {
	name := normalizeCommand(cmd.Name)
	cmd.Name = name
	d.commands[name] = cmd
	if extended {
		d.extended[name] = struct{}{}
	} else {
		delete(d.extended, name)
	}
}

// IsExtended reports whether command requires a payload.
func (d *Dispatcher) IsExtended(command string) bool {
	_, ok := d.extended[normalizeCommand(command)]
	return ok
}

// ExtendedCommands lists the payload-carrying commands in name order.
func (d *Dispatcher) ExtendedCommands() []string {
	out := make([]string, 0, len(d.extended))
	for name := range d.extended {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Help lists every registered command in name order.
func (d *Dispatcher) Help() []CommandHelp {
	out := make([]CommandHelp, 0, len(d.commands))
	for _, cmd := range d.commands {
		out = append(out, CommandHelp{
			Name:     cmd.Name,
			Usage:    cmd.Usage,
			Summary:  cmd.Summary,
			Extended: d.IsExtended(cmd.Name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch executes req and always returns a response; every failure,
// including a panic inside a handler, becomes an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.Request) domain.Response {
	if err := ctx.Err(); err != nil {
		return domain.Failure(domain.Wrap(domain.KindInternal, "request cancelled before dispatch", err))
	}
	out, err := d.handle(ctx, req)
	if err != nil {
		return domain.Failure(err)
	}
	return domain.OK(out.Body)
}

func (d *Dispatcher) route(ctx context.Context, req domain.Request) (Outcome, error) {
	name := normalizeCommand(req.Command)
	cmd, ok := d.commands[name]
	if !ok {
		return Outcome{}, domain.Errorf(domain.KindMalformedRequest, "unknown command %q", req.Command)
	}
	_, extended := d.extended[name]
	switch {
	case extended && !req.HasPayload():
		return Outcome{}, domain.Errorf(domain.KindMalformedRequest, "command %s requires a band payload", name)
	case !extended && req.HasPayload():
		return Outcome{}, domain.Errorf(domain.KindMalformedRequest, "command %s does not accept a payload", name)
	}
	if extended {
		res, err := d.rules.Check(ctx, *req.Payload)
		if err != nil {
			return Outcome{}, err
		}
		for _, v := range res.Warnings() {
			d.logger.Warn("payload rule warning", "command", name, "rule", v.Rule, "message", v.Message)
		}
	}

	out, err := cmd.Handler(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	if len(out.Changes) == 0 {
		return out, nil
	}
	at := d.clock.Now()
	for i := range out.Changes {
		out.Changes[i].At = at
		out.Changes[i].User = req.User.Login
	}
	if err := d.persist(ctx); err != nil {
		return Outcome{}, err
	}
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, out.Changes); err != nil {
			d.logger.Warn("publish changes failed", "command", name, "changes", len(out.Changes), "error", err)
		}
	}
	return out, nil
}

func (d *Dispatcher) persist(ctx context.Context) error {
	if d.persister == nil {
		return nil
	}
	d.persistMu.Lock()
	defer d.persistMu.Unlock()
	if err := d.persister.Save(ctx, d.store.Snapshot()); err != nil {
		return domain.Wrap(domain.KindInternal, "persist collection", err)
	}
	return nil
}

func normalizeCommand(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
