// Package teeth defines the fixed set of tooth positions evaluated per image.
//
// Labels follow FDI two-digit notation: the first digit is the quadrant
// (1-4) and the second the position within the quadrant (1-8).
package teeth

import (
	"fmt"
	"strconv"
)

const (
	// Quadrants is the number of dental quadrants.
	Quadrants = 4
	// PerQuadrant is the number of tooth positions in each quadrant.
	PerQuadrant = 8
	// Count is the number of tooth slots evaluated per image.
	Count = Quadrants * PerQuadrant
)

// Label identifies one tooth slot, e.g. "11" or "48".
type Label string

// catalog is built once; Catalog hands out copies.
var catalog = buildCatalog()

func buildCatalog() []Label {
	out := make([]Label, 0, Count)
	for q := 1; q <= Quadrants; q++ {
		for p := 1; p <= PerQuadrant; p++ {
			out = append(out, Label(strconv.Itoa(q)+strconv.Itoa(p)))
		}
	}
	return out
}

// Catalog returns the 32 tooth labels in quadrant-major order
// (11..18, 21..28, 31..38, 41..48). The caller owns the returned slice.
func Catalog() []Label {
	out := make([]Label, len(catalog))
	copy(out, catalog)
	return out
}

// Parse validates s as a tooth label.
func Parse(s string) (Label, error) {
	if len(s) != 2 {
		return "", fmt.Errorf("invalid tooth label %q: want two digits", s)
	}
	q, p := int(s[0]-'0'), int(s[1]-'0')
	if q < 1 || q > Quadrants {
		return "", fmt.Errorf("invalid tooth label %q: quadrant %d out of range", s, q)
	}
	if p < 1 || p > PerQuadrant {
		return "", fmt.Errorf("invalid tooth label %q: position %d out of range", s, p)
	}
	return Label(s), nil
}

// Valid reports whether l is one of the catalogued labels.
func (l Label) Valid() bool {
	_, err := Parse(string(l))
	return err == nil
}

// Quadrant returns the quadrant digit, or 0 for an invalid label.
func (l Label) Quadrant() int {
	if !l.Valid() {
		return 0
	}
	return int(l[0] - '0')
}

// Position returns the position digit, or 0 for an invalid label.
func (l Label) Position() int {
	if !l.Valid() {
		return 0
	}
	return int(l[1] - '0')
}

func (l Label) String() string { return string(l) }
