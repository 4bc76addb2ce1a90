package domain

import (
	"fmt"
	"strings"
)

// MusicGenre is the closed set of genres a band may declare. The ordinal
// value defines the genre ordering used by sort and count operations.
type MusicGenre int

// Supported genres in ascending order.
const (
	GenreProgressiveRock MusicGenre = iota + 1
	GenreHipHop
	GenrePsychedelicCloudRap
	GenreSoul
	GenrePostPunk
)

var genreNames = map[MusicGenre]string{
	GenreProgressiveRock:     "PROGRESSIVE_ROCK",
	GenreHipHop:              "HIP_HOP",
	GenrePsychedelicCloudRap: "PSYCHEDELIC_CLOUD_RAP",
	GenreSoul:                "SOUL",
	GenrePostPunk:            "POST_PUNK",
}

// Genres lists every genre in ascending order.
func Genres() []MusicGenre {
	return []MusicGenre{GenreProgressiveRock, GenreHipHop, GenrePsychedelicCloudRap, GenreSoul, GenrePostPunk}
}

// ParseGenre resolves a canonical genre name, ignoring case and surrounding
// whitespace.
func ParseGenre(s string) (MusicGenre, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for g, name := range genreNames {
		if name == needle {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown genre %q", s)
}

// GenrePtr is a helper for optional genre fields.
func GenrePtr(g MusicGenre) *MusicGenre { return &g }

func (g MusicGenre) String() string {
	if name, ok := genreNames[g]; ok {
		return name
	}
	return fmt.Sprintf("MusicGenre(%d)", int(g))
}

// Valid reports whether g is a member of the enumeration.
func (g MusicGenre) Valid() bool {
	_, ok := genreNames[g]
	return ok
}

// Compare orders genres by their declaration order.
func (g MusicGenre) Compare(other MusicGenre) int {
	switch {
	case g < other:
		return -1
	case g > other:
		return 1
	}
	return 0
}

// MarshalText encodes the canonical name; used by JSON and YAML codecs.
func (g MusicGenre) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid genre %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText decodes a canonical genre name.
func (g *MusicGenre) UnmarshalText(text []byte) error {
	parsed, err := ParseGenre(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
