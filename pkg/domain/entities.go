// Package domain defines the band entity, its value types, the request and
// response envelope and the persistence contracts shared by bandkeeper.
package domain

import (
	"cmp"
	"math"
	"strings"
	"time"
)

// Coordinate bounds enforced on every stored band.
const (
	// MaxCoordinateX is the inclusive upper bound of the integral axis.
	MaxCoordinateX = 573
	// MinCoordinateY is the exclusive lower bound of the real axis.
	MinCoordinateY = -985.0
)

// Coordinates locates a band on the two bounded axes.
type Coordinates struct {
	X int64   `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Valid reports whether both axes are finite and inside their bounds.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Y) || math.IsInf(c.Y, 0) {
		return false
	}
	return c.X <= MaxCoordinateX && c.Y > MinCoordinateY
}

// Label is the optional record label a band is signed to.
type Label struct {
	Name string `json:"name" yaml:"name"`
}

// Band is the managed entity. ID and CreationDate are assigned by the store;
// producers leave them zero.
type Band struct {
	ID                   int64       `json:"id" yaml:"id"`
	Name                 string      `json:"name" yaml:"name"`
	Coordinates          Coordinates `json:"coordinates" yaml:"coordinates"`
	CreationDate         time.Time   `json:"creation_date" yaml:"creation_date"`
	NumberOfParticipants int         `json:"number_of_participants" yaml:"number_of_participants"`
	SinglesCount         *int        `json:"singles_count,omitempty" yaml:"singles_count,omitempty"`
	Genre                *MusicGenre `json:"genre,omitempty" yaml:"genre,omitempty"`
	Label                *Label      `json:"label,omitempty" yaml:"label,omitempty"`
	Owner                string      `json:"owner,omitempty" yaml:"owner,omitempty"`
}

// Clone returns a deep copy so callers never share optional field pointers
// with the store.
func (b Band) Clone() Band {
	cp := b
	if b.SinglesCount != nil {
		v := *b.SinglesCount
		cp.SinglesCount = &v
	}
	if b.Genre != nil {
		g := *b.Genre
		cp.Genre = &g
	}
	if b.Label != nil {
		l := *b.Label
		cp.Label = &l
	}
	return cp
}

// Equal reports structural equality over the descriptive fields. Server
// assigned fields (ID, CreationDate) and Owner are ignored so a freshly read
// payload can match a stored entity.
func (b Band) Equal(other Band) bool {
	if b.Name != other.Name ||
		b.Coordinates != other.Coordinates ||
		b.NumberOfParticipants != other.NumberOfParticipants {
		return false
	}
	if !equalPtr(b.SinglesCount, other.SinglesCount) || !equalPtr(b.Genre, other.Genre) {
		return false
	}
	return equalPtr(b.Label, other.Label)
}

// Compare implements the natural order of bands: name first, then every
// remaining field so that the order is total and deterministic.
func (b Band) Compare(other Band) int {
	if c := strings.Compare(b.Name, other.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(b.NumberOfParticipants, other.NumberOfParticipants); c != 0 {
		return c
	}
	if c := comparePtr(b.SinglesCount, other.SinglesCount, cmp.Compare[int]); c != 0 {
		return c
	}
	if c := comparePtr(b.Genre, other.Genre, MusicGenre.Compare); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Coordinates.X, other.Coordinates.X); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Coordinates.Y, other.Coordinates.Y); c != 0 {
		return c
	}
	if c := comparePtr(b.Label, other.Label, func(x, y Label) int { return strings.Compare(x.Name, y.Name) }); c != 0 {
		return c
	}
	if c := b.CreationDate.Compare(other.CreationDate); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, other.ID)
}

// equalPtr treats two absent values as equal.
func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// comparePtr orders absent values before present ones.
func comparePtr[T any](a, b *T, fn func(T, T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return fn(*a, *b)
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int { return &v }
