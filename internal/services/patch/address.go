// Package patch computes DMX addresses and sequence numbers for
// matched fixtures and manages in-memory analysis sessions.
package patch

import (
	"sort"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

// CalculateAddresses resolves each selected attribute present in the
// fixture's mode to its absolute address and (universe, channel) pair.
// Selected attributes absent from the mode are omitted, not errors.
// Fixtures that aren't matched are left untouched.
func CalculateAddresses(f *fixture.FixtureMatch, selected []string) {
	if !f.Matched() {
		return
	}
	f.AbsoluteAddresses = make(map[string]fixture.Address)
	for _, attr := range selected {
		offset, ok := f.AttributeOffsets[attr]
		if !ok {
			continue
		}
		absolute := f.BaseAddress + (offset - 1)
		f.AbsoluteAddresses[attr] = fixture.SplitAddress(absolute)
	}
}

// CalculateAll computes addresses for every fixture using the
// per-declared-type attribute selection.
func CalculateAll(c *fixture.Collection, selections map[string][]string) {
	for _, f := range c.All() {
		CalculateAddresses(f, selections[f.DeclaredType])
	}
}

// ConflictSide names one half of an address collision.
type ConflictSide struct {
	FixtureID   int    `json:"fixtureId"`
	FixtureName string `json:"fixtureName"`
	Attribute   string `json:"attribute"`
}

// Conflict reports two (fixture, attribute) pairs sharing an absolute
// address. Conflicts are advisory and never block export.
type Conflict struct {
	Absolute int          `json:"absolute"`
	A        ConflictSide `json:"a"`
	B        ConflictSide `json:"b"`
}

// FindConflicts scans every fixture's resolved addresses for
// collisions. Each colliding pair is reported once, in scan order.
func FindConflicts(c *fixture.Collection) []Conflict {
	type occupant struct {
		side ConflictSide
	}
	var conflicts []Conflict
	seen := make(map[int][]occupant)

	for _, f := range c.All() {
		attrs := make([]string, 0, len(f.AbsoluteAddresses))
		for attr := range f.AbsoluteAddresses {
			attrs = append(attrs, attr)
		}
		sort.Strings(attrs)
		for _, attr := range attrs {
			addr := f.AbsoluteAddresses[attr]
			side := ConflictSide{FixtureID: f.FixtureID, FixtureName: f.Name, Attribute: attr}
			for _, prev := range seen[addr.Absolute] {
				conflicts = append(conflicts, Conflict{
					Absolute: addr.Absolute,
					A:        prev.side,
					B:        side,
				})
			}
			seen[addr.Absolute] = append(seen[addr.Absolute], occupant{side: side})
		}
	}
	return conflicts
}
