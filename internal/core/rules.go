package core

import (
	"context"
	"strings"
	"unicode/utf8"

	"bandkeeper/pkg/domain"
)

// maxNameLength is the longest name accepted without a warning.
const maxNameLength = 128

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds an engine with the built-in payload policy.
func NewDefaultRulesEngine() *RulesEngine {
	return domain.NewRulesEngine(NewBandFieldsRule(), NewNameLengthRule())
}

// NewBandFieldsRule blocks payloads failing any of the per-field checks.
func NewBandFieldsRule() Rule {
	return bandFieldsRule{}
}

type bandFieldsRule struct{}

func (bandFieldsRule) Name() string { return "band_fields" }

func (r bandFieldsRule) Evaluate(_ context.Context, band Band) (Result, error) {
	var res Result
	for _, check := range domain.BandChecks() {
		if msg := check.Check(band); msg != "" {
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Field:    check.Field,
				Message:  check.Field + ": " + msg,
			})
		}
	}
	return res, nil
}

// NewNameLengthRule warns about unusually long band names.
func NewNameLengthRule() Rule {
	return nameLengthRule{}
}

type nameLengthRule struct{}

func (nameLengthRule) Name() string { return "name_length" }

func (r nameLengthRule) Evaluate(_ context.Context, band Band) (Result, error) {
	if utf8.RuneCountInString(strings.TrimSpace(band.Name)) <= maxNameLength {
		return Result{}, nil
	}
	return Result{Violations: []Violation{{
		Rule:     r.Name(),
		Severity: SeverityWarn,
		Field:    "name",
		Message:  "name is longer than 128 characters",
	}}}, nil
}
