package domain

import (
	"context"
	"fmt"
	"strings"
)

// Severity says whether a violation rejects a payload.
type Severity string

const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
)

// Violation is one finding of a rule about a band payload.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

// Result lists the violations found for one payload.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Blocking returns the violations that reject the payload.
func (r Result) Blocking() []Violation { return r.withSeverity(SeverityBlock) }

// Warnings returns the violations that are reported but tolerated.
func (r Result) Warnings() []Violation { return r.withSeverity(SeverityWarn) }

func (r Result) withSeverity(s Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}

// RejectedError carries the blocking violations of a rejected payload. It is
// wrapped in a MalformedRequest Error.
type RejectedError struct {
	Violations []Violation
}

func (e *RejectedError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return "band rejected: " + strings.Join(msgs, "; ")
}

// Rule inspects a band payload before it reaches the store.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, band Band) (Result, error)
}

// RulesEngine runs rules in registration order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine running rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: append([]Rule(nil), rules...)}
}

// Register appends rules.
func (e *RulesEngine) Register(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Rules returns the registered rules.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule and concatenates their violations. A rule error
// or a cancelled context stops evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, band Band) (Result, error) {
	var all Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, band)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		all.Violations = append(all.Violations, res.Violations...)
	}
	return all, nil
}

// Check is Evaluate plus rejection: blocking violations become a
// MalformedRequest error wrapping *RejectedError.
func (e *RulesEngine) Check(ctx context.Context, band Band) (Result, error) {
	res, err := e.Evaluate(ctx, band)
	if err != nil {
		return Result{}, err
	}
	if blocking := res.Blocking(); len(blocking) > 0 {
		return res, Wrap(KindMalformedRequest, "invalid band payload", &RejectedError{Violations: blocking})
	}
	return res, nil
}
