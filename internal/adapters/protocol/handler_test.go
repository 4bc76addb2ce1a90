package protocol_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"bandkeeper/internal/adapters/protocol"
	"bandkeeper/internal/core"
	"bandkeeper/pkg/domain"
)

type envelope struct {
	Status    domain.Status    `json:"status"`
	ErrorKind domain.ErrorKind `json:"error_kind"`
	Message   string           `json:"message"`
	Body      json.RawMessage  `json:"body"`
}

func setupHandler(t *testing.T) *protocol.Handler {
	t.Helper()
	dispatcher := core.NewDispatcher(core.NewMemoryStore())
	return protocol.NewHandler(dispatcher, nil)
}

func post(t *testing.T, h http.Handler, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, protocol.CommandsPath, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

const addBody = `{"command":"add","payload":{"name":"Talking Heads","coordinates":{"x":1,"y":2},"number_of_participants":4,"genre":"POST_PUNK"},"user":{"login":"alice"}}`

func TestHandlerExecutesCommands(t *testing.T) {
	h := setupHandler(t)
	rec, env := post(t, h, addBody, map[string]string{protocol.RequestIDHeader: "req-1"})
	if rec.Code != http.StatusOK || env.Status != domain.StatusOK {
		t.Fatalf("unexpected response %d %+v", rec.Code, env)
	}
	if rec.Header().Get(protocol.RequestIDHeader) != "req-1" {
		t.Fatalf("request id must be echoed")
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	rec, env = post(t, h, `{"command":"get_by_id","argument":"1","user":{"login":"bob"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var band domain.Band
	if err := json.Unmarshal(env.Body, &band); err != nil {
		t.Fatalf("decode band: %v", err)
	}
	if band.Name != "Talking Heads" || band.Owner != "alice" || band.Genre == nil || *band.Genre != domain.GenrePostPunk {
		t.Fatalf("unexpected band %+v", band)
	}
	if rec.Header().Get(protocol.RequestIDHeader) == "" {
		t.Fatalf("a request id must be generated when absent")
	}
}

func TestHandlerStatusMapping(t *testing.T) {
	h := setupHandler(t)
	cases := []struct {
		name   string
		body   string
		status int
		kind   domain.ErrorKind
	}{
		{"not found", `{"command":"get_by_id","argument":"42","user":{"login":"a"}}`, http.StatusNotFound, domain.KindNotFound},
		{"index", `{"command":"get_at","argument":"3","user":{"login":"a"}}`, http.StatusBadRequest, domain.KindIndexOutOfRange},
		{"unknown command", `{"command":"fly","user":{"login":"a"}}`, http.StatusBadRequest, domain.KindMalformedRequest},
		{"missing payload", `{"command":"add","user":{"login":"a"}}`, http.StatusBadRequest, domain.KindMalformedRequest},
		{"no archive", `{"command":"export","user":{"login":"a"}}`, http.StatusInternalServerError, domain.KindInternal},
		{"bad json", `{"command":`, http.StatusBadRequest, domain.KindMalformedRequest},
		{"unknown field", `{"command":"show","colour":"red","user":{"login":"a"}}`, http.StatusBadRequest, domain.KindMalformedRequest},
		{"bad genre", `{"command":"add","payload":{"name":"x","number_of_participants":1,"genre":"POLKA"},"user":{"login":"a"}}`, http.StatusBadRequest, domain.KindMalformedRequest},
		{"anonymous", `{"command":"show","user":{"login":" "}}`, http.StatusBadRequest, domain.KindMalformedRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := post(t, h, tc.body, nil)
			if rec.Code != tc.status || env.ErrorKind != tc.kind || env.Status != domain.StatusError {
				t.Fatalf("expected %d/%s, got %d %+v", tc.status, tc.kind, rec.Code, env)
			}
		})
	}
}

func TestStatusForDuplicateIDs(t *testing.T) {
	resp := domain.Failure(domain.Errorf(domain.KindDuplicateIDDetected, "dup"))
	if got := protocol.StatusFor(resp); got != http.StatusConflict {
		t.Fatalf("expected 409, got %d", got)
	}
}

func TestHandlerRoutes(t *testing.T) {
	h := setupHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, protocol.CommandsPath, nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected 405 with Allow header, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics must be absent without a handler, got %d", rec.Code)
	}
	h.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m 1\n")) })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Body.String() != "m 1\n" {
		t.Fatalf("unexpected metrics body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlerRejectsOversizedBodies(t *testing.T) {
	h := setupHandler(t)
	big := `{"command":"show","argument":"` + strings.Repeat("x", 2<<20) + `","user":{"login":"a"}}`
	req := httptest.NewRequest(http.MethodPost, protocol.CommandsPath, bytes.NewBufferString(big))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

type ctxKey struct{}

type cancelCheck struct{ seen context.Context }

func (c *cancelCheck) Dispatch(ctx context.Context, _ domain.Request) domain.Response {
	c.seen = ctx
	return domain.OK("done")
}

func TestHandlerPassesRequestContext(t *testing.T) {
	d := &cancelCheck{}
	h := protocol.NewHandler(d, nil)
	req := httptest.NewRequest(http.MethodPost, protocol.CommandsPath, strings.NewReader(`{"command":"show","user":{"login":"a"}}`))
	req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "marker"))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if d.seen == nil || d.seen.Value(ctxKey{}) != "marker" {
		t.Fatalf("dispatcher must receive the request context")
	}
}
