package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bandkeeper/internal/client"
	"bandkeeper/internal/config"
	"bandkeeper/pkg/domain"
)

const seedDoc = `
bands:
  - id: 4
    name: Television
    x: 1
    y: 2
    participants: 4
    genre: post_punk
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(seed, []byte(seedDoc), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return config.Config{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		Storage:         config.Storage{Driver: "memory", SeedFile: seed},
		Blob:            config.Blob{Driver: "memory"},
		Telemetry:       config.Telemetry{LogLevel: "info", LogFormat: "text"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCLIRejectsBadArguments(t *testing.T) {
	cases := [][]string{
		{"-nope"},
		{"extra"},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		if code := cli(args, io.Discard, &stderr); code != 2 {
			t.Fatalf("args %v: expected exit 2, got %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("args %v: expected diagnostics on stderr", args)
		}
	}
}

func TestCLIRejectsInvalidConfig(t *testing.T) {
	var stderr bytes.Buffer
	if code := cli([]string{"-storage", "floppy"}, io.Discard, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "floppy") {
		t.Fatalf("expected driver in error, got %q", stderr.String())
	}

	t.Setenv("BANDKEEPER_LOG_FORMAT", "xml")
	stderr.Reset()
	if code := cli(nil, io.Discard, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for bad log format, got %d", code)
	}
}

func TestCLIServesUntilSignalled(t *testing.T) {
	t.Setenv("BANDKEEPER_STORAGE_DRIVER", "memory")
	t.Setenv("BANDKEEPER_BLOB_DRIVER", "memory")
	prev := notifyCtx
	notifyCtx = func(parent context.Context) (context.Context, context.CancelFunc) {
		// stands in for a signal arriving once the server is up
		return context.WithTimeout(parent, 300*time.Millisecond)
	}
	defer func() { notifyCtx = prev }()

	var stdout bytes.Buffer
	if code := cli([]string{"-addr", "127.0.0.1:0", "-log-level", "debug"}, &stdout, io.Discard); code != 0 {
		t.Fatalf("expected clean exit, got %d: %s", code, stdout.String())
	}
	if !strings.Contains(stdout.String(), "collection loaded") {
		t.Fatalf("expected startup log, got %q", stdout.String())
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.Telemetry{LogLevel: "warn", LogFormat: "json"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected json log output %q", out)
	}
	if _, err := newLogger(&buf, config.Telemetry{LogLevel: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := newLogger(&buf, config.Telemetry{LogLevel: "info", LogFormat: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestBuildServesSeededCollection(t *testing.T) {
	srv, err := build(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer func() { _ = srv.close(context.Background()) }()
	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	c := client.NewHTTPClient(ts.URL)
	user := domain.User{Login: "alice"}
	resp, err := c.Do(context.Background(), domain.Request{Command: "get_by_id", Argument: "4", User: user})
	if err != nil || resp.Failed() {
		t.Fatalf("seeded band must be served: %+v %v", resp, err)
	}

	payload := domain.Band{Name: "Wire", Coordinates: domain.Coordinates{X: 1, Y: 1}, NumberOfParticipants: 4}
	resp, err = c.Do(context.Background(), domain.Request{Command: "add", User: user, Payload: &payload})
	if err != nil || resp.Failed() {
		t.Fatalf("add: %+v %v", resp, err)
	}
	if got := srv.dispatcher.Store().Len(); got != 2 {
		t.Fatalf("expected 2 bands, got %d", got)
	}
	resp, err = c.Do(context.Background(), domain.Request{Command: "export", User: user})
	if err != nil || resp.Failed() {
		t.Fatalf("export must reach the configured archive: %+v %v", resp, err)
	}

	for _, path := range []string{"/metrics", "/debug/vars", "/healthz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.StatusCode)
		}
		if path == "/metrics" && !strings.Contains(string(body), `bandkeeper_commands_total{command="add",outcome="success"} 1`) {
			t.Fatalf("expected add counter in metrics output")
		}
	}
}

func TestBuildWritesTraceFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.TraceFile = filepath.Join(t.TempDir(), "trace.jsonl")
	srv, err := build(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	srv.dispatcher.Dispatch(context.Background(), domain.Request{Command: "info", User: domain.User{Login: "bob"}})
	if err := srv.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(cfg.Telemetry.TraceFile)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(data), "info") {
		t.Fatalf("expected traced command, got %q", data)
	}
}

func TestBuildFailsOnBrokenSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := build(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatalf("expected missing seed file to fail startup")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	srv, err := build(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.run(ctx, "127.0.0.1:0", time.Second); err != nil {
		t.Fatalf("run: %v", err)
	}
}
