package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fixedRule struct {
	name     string
	severity Severity
	err      error
}

func (r fixedRule) Name() string { return r.name }

func (r fixedRule) Evaluate(context.Context, Band) (Result, error) {
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Violations: []Violation{{Rule: r.name, Severity: r.severity, Message: r.name + " failed"}}}, nil
}

func TestResultSplitsBySeverity(t *testing.T) {
	res := Result{Violations: []Violation{
		{Rule: "a", Severity: SeverityWarn},
		{Rule: "b", Severity: SeverityBlock},
		{Rule: "c", Severity: SeverityWarn},
	}}
	if got := res.Warnings(); len(got) != 2 || got[1].Rule != "c" {
		t.Fatalf("unexpected warnings %+v", got)
	}
	if got := res.Blocking(); len(got) != 1 || got[0].Rule != "b" {
		t.Fatalf("unexpected blocking %+v", got)
	}
	if (Result{}).Blocking() != nil {
		t.Fatalf("empty result has no blocking violations")
	}
}

func TestRulesEngineCheck(t *testing.T) {
	engine := NewRulesEngine(fixedRule{name: "style", severity: SeverityWarn})
	res, err := engine.Check(context.Background(), Band{})
	if err != nil || len(res.Warnings()) != 1 {
		t.Fatalf("warnings alone must pass: %+v %v", res, err)
	}

	engine.Register(fixedRule{name: "name", severity: SeverityBlock}, fixedRule{name: "size", severity: SeverityBlock})
	res, err = engine.Check(context.Background(), Band{})
	if !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("expected MalformedRequest, got %v", err)
	}
	var rejected *RejectedError
	if !errors.As(err, &rejected) || len(rejected.Violations) != 2 {
		t.Fatalf("expected only blocking violations in rejection, got %v", err)
	}
	if !strings.Contains(err.Error(), "band rejected: name failed; size failed") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(res.Violations) != 3 || len(engine.Rules()) != 3 {
		t.Fatalf("result must keep every violation: %+v", res)
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	engine := NewRulesEngine(fixedRule{name: "broken", err: boom}, fixedRule{name: "never", severity: SeverityBlock})
	_, err := engine.Evaluate(context.Background(), Band{})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "rule broken") {
		t.Fatalf("expected wrapped rule error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRulesEngine(fixedRule{name: "x"}).Evaluate(ctx, Band{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
