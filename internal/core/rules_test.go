package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bandkeeper/pkg/domain"
)

func TestDefaultRulesEngine(t *testing.T) {
	engine := NewDefaultRulesEngine()
	names := make([]string, 0)
	for _, r := range engine.Rules() {
		names = append(names, r.Name())
	}
	if strings.Join(names, ",") != "band_fields,name_length" {
		t.Fatalf("unexpected rules %v", names)
	}

	cases := []struct {
		name     string
		band     domain.Band
		blocked  bool
		warnings int
	}{
		{name: "valid", band: newBand("Ok")},
		{name: "empty name", band: newBand(" "), blocked: true},
		{name: "bad coordinates", band: domain.Band{Name: "X", Coordinates: domain.Coordinates{X: 574}, NumberOfParticipants: 1}, blocked: true},
		{name: "zero singles", band: withSingles(newBand("S"), 0), blocked: true},
		{name: "long name", band: newBand(strings.Repeat("é", 129)), warnings: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := engine.Check(context.Background(), tc.band)
			if tc.blocked {
				if !errors.Is(err, domain.ErrMalformedRequest) {
					t.Fatalf("expected malformed request, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if len(res.Violations) != tc.warnings {
				t.Fatalf("expected %d warnings, got %+v", tc.warnings, res.Violations)
			}
		})
	}
}

func TestBandFieldsRuleReportsEveryField(t *testing.T) {
	res, err := NewBandFieldsRule().Evaluate(context.Background(), domain.Band{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	fields := map[string]bool{}
	for _, v := range res.Violations {
		if v.Severity != SeverityBlock || v.Rule != "band_fields" {
			t.Fatalf("unexpected violation %+v", v)
		}
		fields[v.Field] = true
	}
	if !fields["name"] || !fields["number_of_participants"] || fields["coordinates"] {
		t.Fatalf("unexpected fields %v", fields)
	}
}
