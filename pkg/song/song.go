package song

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lyrehero/lyrehero-engine/pkg/notetable"
)

// Difficulty is one of the three levels a song can be tagged with.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// NoteEvent is one entry of a song's note sequence. Only Note drives
// detection matching; BassNote and Lyric are presentation-only.
type NoteEvent struct {
	Note     string `json:"note"`
	BassNote string `json:"bassNote,omitempty"`
	Lyric    string `json:"lyric,omitempty"`
	Duration string `json:"duration,omitempty"` // "1", "1/2", "1/4", "1/8"
}

// Song is a full note sequence plus display metadata.
type Song struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist,omitempty"`
	Difficulty Difficulty  `json:"difficulty"`
	Notes      []NoteEvent `json:"notes"`
}

var validDurations = map[string]bool{"1": true, "1/2": true, "1/4": true, "1/8": true}

// Validate checks a song against the note-table and duration grammar. A
// song with zero notes or an unknown note name is rejected so a malformed
// song file cannot silently become unplayable mid-session.
func (s *Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("song: title is required")
	}
	switch s.Difficulty {
	case Easy, Medium, Hard:
	default:
		return fmt.Errorf("song %q: difficulty must be Easy, Medium, or Hard", s.Title)
	}
	if len(s.Notes) == 0 {
		return fmt.Errorf("song %q: must have at least one note", s.Title)
	}
	for i, n := range s.Notes {
		if _, ok := notetable.Lookup(n.Note); !ok {
			return fmt.Errorf("song %q: note %d (%q) is not in the note table", s.Title, i, n.Note)
		}
		if n.BassNote != "" {
			if _, ok := notetable.Lookup(n.BassNote); !ok {
				return fmt.Errorf("song %q: bass note %d (%q) is not in the note table", s.Title, i, n.BassNote)
			}
		}
		if n.Duration != "" && !validDurations[n.Duration] {
			return fmt.Errorf("song %q: note %d has invalid duration %q", s.Title, i, n.Duration)
		}
	}
	return nil
}

// Summary reduces a Song to the listing fields the SONGS command returns.
func (s *Song) Summary() SongSummary {
	return SongSummary{
		ID:         s.ID,
		Title:      s.Title,
		Artist:     s.Artist,
		Difficulty: s.Difficulty,
		NoteCount:  len(s.Notes),
	}
}

// SongSummary is the lightweight listing form of a Song.
type SongSummary struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Artist     string     `json:"artist,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
	NoteCount  int        `json:"note_count"`
}

// LoadDirectory reads every *.json file in dir as a Song, deriving each
// song's ID from its filename. Files that fail to parse or validate are
// skipped with their error collected rather than aborting the whole load,
// since one malformed song file should not take down the library.
func LoadDirectory(dir string) ([]*Song, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read songs directory: %w", err)}
	}

	var songs []*Song
	var errs []error

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", entry.Name(), err))
			continue
		}

		var s Song
		if err := json.Unmarshal(data, &s); err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", entry.Name(), err))
			continue
		}
		if s.ID == "" {
			s.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}

		songs = append(songs, &s)
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].Title < songs[j].Title })
	return songs, errs
}
