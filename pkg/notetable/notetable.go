// Package notetable provides the equal-tempered note frequency table used
// to classify detected fundamentals against the lyre's fixed diatonic
// string set.
package notetable

import (
	"fmt"
	"math"
	"strconv"
)

// referenceA4 is the tuning reference: A4 = 440 Hz.
const referenceA4 = 440.0

// chromaticNames is the 12 pitch classes of an octave, sharp spelling,
// starting at C.
var chromaticNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// flatToSharp normalizes a flat spelling to its enharmonic sharp so both
// "Bb5" and "A#5" resolve to the same table entry.
var flatToSharp = map[string]string{
	"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#",
	"Cb": "B", "Fb": "E",
}

// Frequencies is the full C3..D6 note-name -> Hz table, built once at
// package init time rather than hand-typed, so it can never drift from the
// equal-tempered formula.
var Frequencies = buildTable()

// LyreSet is the ordered 19-string diatonic set F3..C6 that the classifier
// is restricted to.
var LyreSet = []string{
	"F3", "G3", "A3", "B3", "C4", "D4", "E4", "F4", "G4",
	"A4", "B4", "C5", "D5", "E5", "F5", "G5", "A5", "B5", "C6",
}

var lyreFrequencies = buildLyreFrequencies()

func buildLyreFrequencies() map[string]float64 {
	m := make(map[string]float64, len(LyreSet))
	for _, n := range LyreSet {
		m[n] = Frequencies[n]
	}
	return m
}

// buildTable generates equal-tempered frequencies for all 12 pitch classes
// from C3 through D6 (the full documented table span).
func buildTable() map[string]float64 {
	table := make(map[string]float64, 48)

	for octave := 3; octave <= 6; octave++ {
		for i, name := range chromaticNames {
			if octave == 6 && name != "C" && name != "C#" && name != "D" {
				continue // table stops at D6
			}
			n := (octave-4)*12 + i - 9 // semitones from A4
			freq := referenceA4 * math.Pow(2, float64(n)/12.0)
			table[fmt.Sprintf("%s%d", name, octave)] = freq
		}
	}
	return table
}

// Lookup returns the frequency for a note name, normalizing flat spellings
// to their sharp enharmonic equivalent first.
func Lookup(name string) (float64, bool) {
	normalized := normalize(name)
	f, ok := Frequencies[normalized]
	return f, ok
}

// normalize rewrites a flat spelling ("Bb5") to its sharp equivalent
// ("A#5"); natural and sharp spellings pass through unchanged. Cb is the one
// flat spelling that crosses a C boundary: Cb4 is enharmonically B3, not B4,
// so its octave digit has to shift down by one along with the letter.
func normalize(name string) string {
	if len(name) < 2 {
		return name
	}
	if name[1] == 'b' {
		letterFlat := name[:2]
		if sharp, ok := flatToSharp[letterFlat]; ok {
			rest := name[2:]
			if letterFlat == "Cb" {
				if octave, err := strconv.Atoi(rest); err == nil {
					rest = strconv.Itoa(octave - 1)
				}
			}
			return sharp + rest
		}
	}
	return name
}

// Cents returns the signed distance in cents between f and reference,
// following 1200*log2(f/reference).
func Cents(f, reference float64) float64 {
	if reference <= 0 || f <= 0 {
		return math.Inf(1)
	}
	return 1200.0 * math.Log2(f/reference)
}

// CentsTolerance is the maximum distance from a lyre note's reference
// frequency that still counts as a match.
const CentsTolerance = 50.0

// ClassifyLyre maps f to the nearest entry of LyreSet within
// CentsTolerance cents. It returns ("", false) if f is outside tolerance of
// every lyre string.
func ClassifyLyre(f float64) (string, bool) {
	if f <= 0 {
		return "", false
	}

	best := ""
	bestAbsCents := math.Inf(1)
	for _, name := range LyreSet {
		ref := lyreFrequencies[name]
		c := math.Abs(Cents(f, ref))
		if c < bestAbsCents {
			bestAbsCents = c
			best = name
		}
	}

	if bestAbsCents > CentsTolerance {
		return "", false
	}
	return best, true
}

// IsLyreNote reports whether name is one of the 19 lyre strings.
func IsLyreNote(name string) bool {
	_, ok := lyreFrequencies[name]
	return ok
}

// MustLookup is a test/tooling helper that panics on an unknown note name.
func MustLookup(name string) float64 {
	f, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("notetable: unknown note %q", name))
	}
	return f
}
