package patch

import (
	"github.com/patchlink/patchlink-go/internal/fixture"
)

// AssignSequences numbers (fixture, attribute) pairs from a single
// global counter starting at start, in three ordered passes:
//
//  1. masters, in collection order, each attribute in its type's
//     selection order, so a master's attributes occupy a contiguous
//     block;
//  2. every master's sequence map is copied verbatim onto each of its
//     linked remotes; remotes inherit, they never number themselves;
//  3. remaining fixtures (remotes without a linked master's numbers
//     and unassigned fixtures), in collection order, continue from the
//     same counter.
//
// Re-running with the same start and ordering reproduces identical
// numbers.
func AssignSequences(c *fixture.Collection, selections map[string][]string, start int) {
	next := start

	// Numbers from any previous run are discarded wholesale so one
	// call always reflects the current links and selections.
	for _, f := range c.All() {
		f.AttributeSequences = nil
	}

	// Pass 1: masters.
	for _, f := range c.All() {
		if f.Role != fixture.RoleMaster || !f.Matched() {
			continue
		}
		next = assignFixture(f, selections[f.DeclaredType], next)
	}

	// Pass 2: remotes inherit their master's numbering exactly.
	inherited := make(map[int]bool)
	for _, f := range c.All() {
		if f.Role != fixture.RoleMaster || len(f.AttributeSequences) == 0 {
			continue
		}
		for remoteID := range f.LinkedFixtureIDs {
			remote := c.ByID(remoteID)
			if remote == nil || !remote.Matched() {
				continue
			}
			remote.AttributeSequences = make(map[string]int, len(f.AttributeSequences))
			for attr, seq := range f.AttributeSequences {
				remote.AttributeSequences[attr] = seq
			}
			inherited[remoteID] = true
		}
	}

	// Pass 3: everything still unnumbered.
	for _, f := range c.All() {
		if f.Role == fixture.RoleMaster || !f.Matched() || inherited[f.FixtureID] {
			continue
		}
		next = assignFixture(f, selections[f.DeclaredType], next)
	}
}

// assignFixture numbers the fixture's selected attributes in selection
// order, returning the advanced counter.
func assignFixture(f *fixture.FixtureMatch, selected []string, next int) int {
	f.AttributeSequences = make(map[string]int)
	for _, attr := range selected {
		if _, ok := f.AttributeOffsets[attr]; !ok {
			continue
		}
		f.AttributeSequences[attr] = next
		next++
	}
	return next
}
