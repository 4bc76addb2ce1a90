// Package loader reads seed collections from YAML files.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bandkeeper/pkg/domain"
)

// SeedYAML is the seed file layout.
type SeedYAML struct {
	InitializedAt *time.Time `yaml:"initialized_at,omitempty"`
	Bands         []BandYAML `yaml:"bands"`
}

// BandYAML is one seeded band. Omitted ids are allocated after the largest
// explicit id; an omitted creation date defaults to the load time.
type BandYAML struct {
	ID                   int64      `yaml:"id,omitempty"`
	Name                 string     `yaml:"name"`
	X                    int64      `yaml:"x"`
	Y                    float64    `yaml:"y"`
	CreationDate         *time.Time `yaml:"creation_date,omitempty"`
	NumberOfParticipants int        `yaml:"participants"`
	SinglesCount         *int       `yaml:"singles,omitempty"`
	Genre                string     `yaml:"genre,omitempty"`
	Label                string     `yaml:"label,omitempty"`
	Owner                string     `yaml:"owner,omitempty"`
}

// File loads a seed collection from a YAML file on every Load.
type File struct {
	path string
	now  func() time.Time
}

// NewFile returns a loader for path.
func NewFile(path string) *File {
	return &File{path: path, now: func() time.Time { return time.Now().UTC() }}
}

// Load implements domain.Loader.
func (f *File) Load(ctx context.Context) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("read seed %s: %w", f.path, err)
	}
	collection, err := Parse(bytes.NewReader(raw), f.now())
	if err != nil {
		return domain.Collection{}, fmt.Errorf("parse seed %s: %w", f.path, err)
	}
	return collection, nil
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader, now time.Time) (domain.Collection, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc SeedYAML
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return domain.Collection{}, err
	}

	collection := domain.Collection{InitializedAt: now, Bands: make([]domain.Band, 0, len(doc.Bands))}
	if doc.InitializedAt != nil {
		collection.InitializedAt = doc.InitializedAt.UTC()
	}
	var maxID int64
	for _, b := range doc.Bands {
		maxID = max(maxID, b.ID)
	}
	for i, b := range doc.Bands {
		band, err := b.toDomain(now)
		if err != nil {
			return domain.Collection{}, fmt.Errorf("band %d (%q): %w", i, b.Name, err)
		}
		if band.ID == 0 {
			maxID++
			band.ID = maxID
		}
		collection.Bands = append(collection.Bands, band)
	}
	return collection, nil
}

func (b BandYAML) toDomain(now time.Time) (domain.Band, error) {
	band := domain.Band{
		ID:                   b.ID,
		Name:                 b.Name,
		Coordinates:          domain.Coordinates{X: b.X, Y: b.Y},
		CreationDate:         now,
		NumberOfParticipants: b.NumberOfParticipants,
		Owner:                b.Owner,
	}
	if b.ID < 0 {
		return domain.Band{}, fmt.Errorf("negative id %d", b.ID)
	}
	if b.CreationDate != nil {
		band.CreationDate = b.CreationDate.UTC()
	}
	if b.SinglesCount != nil {
		band.SinglesCount = domain.IntPtr(*b.SinglesCount)
	}
	if b.Genre != "" {
		g, err := domain.ParseGenre(b.Genre)
		if err != nil {
			return domain.Band{}, err
		}
		band.Genre = &g
	}
	if b.Label != "" {
		band.Label = &domain.Label{Name: b.Label}
	}
	if err := band.Validate(); err != nil {
		return domain.Band{}, err
	}
	return band, nil
}
