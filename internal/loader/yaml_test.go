package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bandkeeper/pkg/domain"
)

var loadTime = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

const seedDoc = `
initialized_at: 2020-01-02T03:04:05Z
bands:
  - id: 5
    name: Joy Division
    x: 10
    y: -20.5
    creation_date: 2019-06-01T00:00:00Z
    participants: 4
    singles: 8
    genre: post_punk
    label: Factory
    owner: alice
  - name: Unnumbered
    x: 0
    y: 0
    participants: 2
  - id: 2
    name: Small
    x: 1
    y: 1
    participants: 1
`

func TestParseSeed(t *testing.T) {
	got, err := Parse(strings.NewReader(seedDoc), loadTime)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.InitializedAt.Equal(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected init date %v", got.InitializedAt)
	}
	if len(got.Bands) != 3 {
		t.Fatalf("expected 3 bands, got %d", len(got.Bands))
	}
	first := got.Bands[0]
	if first.ID != 5 || *first.Genre != domain.GenrePostPunk || first.Label.Name != "Factory" || *first.SinglesCount != 8 || first.Coordinates.Y != -20.5 {
		t.Fatalf("unexpected first band %+v", first)
	}
	if got.Bands[1].ID != 6 || !got.Bands[1].CreationDate.Equal(loadTime) || got.Bands[1].Genre != nil {
		t.Fatalf("omitted id must follow the max explicit id: %+v", got.Bands[1])
	}
	if got.Bands[2].ID != 2 {
		t.Fatalf("explicit id must be kept: %+v", got.Bands[2])
	}
}

func TestParseSeedRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "bands:\n  - name: A\n    participants: 1\n    colour: red\n",
		"bad genre":     "bands:\n  - name: A\n    participants: 1\n    genre: polka\n",
		"invalid band":  "bands:\n  - name: A\n    participants: 0\n",
		"bad x":         "bands:\n  - name: A\n    participants: 1\n    x: 600\n",
		"negative id":   "bands:\n  - id: -3\n    name: A\n    participants: 1\n",
		"not a mapping": "- just\n- a list\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc), loadTime); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Parse(strings.NewReader("bands:\n  - name: A\n    participants: 0\n"), loadTime); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("expected malformed request kind, got %v", err)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	got, err := Parse(strings.NewReader(""), loadTime)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Bands) != 0 || !got.InitializedAt.Equal(loadTime) {
		t.Fatalf("unexpected empty parse %+v", got)
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedDoc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := NewFile(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Bands) != 3 {
		t.Fatalf("expected 3 bands, got %d", len(got.Bands))
	}
	if _, err := NewFile(filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
