package domain

import (
	"fmt"
	"strings"
)

// FieldCheck validates a single field of a band and returns a message when
// the field is invalid.
type FieldCheck struct {
	Field string
	Check func(Band) string
}

var bandChecks = []FieldCheck{
	{Field: "name", Check: func(b Band) string {
		if strings.TrimSpace(b.Name) == "" {
			return "name must not be empty"
		}
		return ""
	}},
	{Field: "coordinates", Check: func(b Band) string {
		if !b.Coordinates.Valid() {
			return fmt.Sprintf("coordinates must satisfy x <= %d and finite y > %g", MaxCoordinateX, MinCoordinateY)
		}
		return ""
	}},
	{Field: "number_of_participants", Check: func(b Band) string {
		if b.NumberOfParticipants <= 0 {
			return "number of participants must be greater than 0"
		}
		return ""
	}},
	{Field: "singles_count", Check: func(b Band) string {
		if b.SinglesCount != nil && *b.SinglesCount <= 0 {
			return "singles count must be greater than 0 when present"
		}
		return ""
	}},
	{Field: "genre", Check: func(b Band) string {
		if b.Genre != nil && !b.Genre.Valid() {
			return "genre is not a known value"
		}
		return ""
	}},
	{Field: "label", Check: func(b Band) string {
		if b.Label != nil && strings.TrimSpace(b.Label.Name) == "" {
			return "label name must not be empty when a label is set"
		}
		return ""
	}},
}

// BandChecks returns the field checks every stored band must pass.
func BandChecks() []FieldCheck {
	return append([]FieldCheck(nil), bandChecks...)
}

// Validate returns a MalformedRequest error describing the first failed check.
func (b Band) Validate() error {
	for _, c := range bandChecks {
		if msg := c.Check(b); msg != "" {
			return Errorf(KindMalformedRequest, "%s: %s", c.Field, msg)
		}
	}
	return nil
}
