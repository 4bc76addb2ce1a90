package domain

import (
	"encoding/json"
	"testing"
)

func TestParseGenre(t *testing.T) {
	for _, g := range Genres() {
		parsed, err := ParseGenre(" " + g.String() + " ")
		if err != nil {
			t.Fatalf("parse %s: %v", g, err)
		}
		if parsed != g {
			t.Fatalf("parse %s: got %s", g, parsed)
		}
	}
	if g, err := ParseGenre("hip_hop"); err != nil || g != GenreHipHop {
		t.Fatalf("expected case-insensitive parse, got %v %v", g, err)
	}
	if _, err := ParseGenre("polka"); err == nil {
		t.Fatalf("expected unknown genre error")
	}
}

func TestGenreOrdering(t *testing.T) {
	genres := Genres()
	for i := 1; i < len(genres); i++ {
		if genres[i-1].Compare(genres[i]) >= 0 {
			t.Fatalf("expected %s < %s", genres[i-1], genres[i])
		}
	}
	if GenreSoul.Compare(GenreSoul) != 0 {
		t.Fatalf("expected equal genres to compare 0")
	}
}

func TestGenreJSONUsesCanonicalName(t *testing.T) {
	b := Band{Name: "x", NumberOfParticipants: 1, Genre: GenrePtr(GenrePsychedelicCloudRap)}
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if decoded["genre"] != "PSYCHEDELIC_CLOUD_RAP" {
		t.Fatalf("expected canonical genre name, got %v", decoded["genre"])
	}
	var back Band
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal band: %v", err)
	}
	if back.Genre == nil || *back.Genre != GenrePsychedelicCloudRap {
		t.Fatalf("genre did not survive JSON: %+v", back.Genre)
	}
	if err := json.Unmarshal([]byte(`{"genre":"polka"}`), &back); err == nil {
		t.Fatalf("expected unknown genre to fail decoding")
	}
}
