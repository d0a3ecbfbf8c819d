// Package export renders a matched, addressed, sequenced fixture
// collection into the four downstream formats: plain text, CSV, JSON,
// and the MA3 console's GMA3 XML dialect (DMX remotes or full
// sequences).
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

var (
	// ErrNoMatchedFixtures is returned when an export is requested
	// before any fixture has been matched.
	ErrNoMatchedFixtures = errors.New("no matched fixtures to export")

	// ErrMissingConfig is returned by the MA3 remote export when no
	// configuration was supplied.
	ErrMissingConfig = errors.New("ma3 export requires a configuration")
)

// Row is one (fixture, attribute) line of an export. Every renderer
// consumes the same row extraction so the formats stay consistent.
type Row struct {
	FixtureName     string
	FixtureID       int
	Attribute       string
	Address         fixture.Address
	Sequence        int
	Role            fixture.Role
	MasterFixtureID int
	ActivationGroup string
}

// AddressString formats the row's address the way the MA3 console
// expects it, e.g. "2.015" for universe 2 channel 15.
func (r Row) AddressString() string {
	return fmt.Sprintf("%d.%03d", r.Address.Universe, r.Address.Channel)
}

// Rows extracts export rows from the collection: matched fixtures
// sorted by fixture id, each contributing one row per selected
// attribute present in its mode, ordered by channel offset. Selections
// are keyed by declared fixture type. Attributes without a resolved
// address are skipped; the address step decides what is exportable.
// Returns ErrNoMatchedFixtures when nothing is matched.
func Rows(c *fixture.Collection, selections map[string][]string) ([]Row, error) {
	matched := matchedSorted(c)
	if len(matched) == 0 {
		return nil, ErrNoMatchedFixtures
	}

	var rows []Row
	for _, f := range matched {
		for _, attr := range selectedAttributes(f, selections[f.DeclaredType]) {
			addr, ok := f.AbsoluteAddresses[attr]
			if !ok {
				continue
			}
			row := Row{
				FixtureName: f.Name,
				FixtureID:   f.FixtureID,
				Attribute:   attr,
				Address:     addr,
				Sequence:    f.AttributeSequences[attr],
				Role:        f.Role,
			}
			if f.Role == fixture.RoleRemote && f.MasterFixtureID != 0 {
				row.MasterFixtureID = f.MasterFixtureID
			}
			if f.MatchedMode != nil {
				row.ActivationGroup = f.MatchedMode.ActivationGroups[attr]
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func matchedSorted(c *fixture.Collection) []*fixture.FixtureMatch {
	var matched []*fixture.FixtureMatch
	for _, f := range c.All() {
		if f.Matched() {
			matched = append(matched, f)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].FixtureID < matched[j].FixtureID
	})
	return matched
}

// selectedAttributes filters the selection down to attributes the
// fixture's mode actually carries, ordered by channel offset.
func selectedAttributes(f *fixture.FixtureMatch, selected []string) []string {
	var attrs []string
	for _, attr := range selected {
		if _, ok := f.AttributeOffsets[attr]; ok {
			attrs = append(attrs, attr)
		}
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return f.AttributeOffsets[attrs[i]] < f.AttributeOffsets[attrs[j]]
	})
	return attrs
}

// RenderText produces the human-readable report: one block per matched
// fixture with its id, name, and role, then one line per attribute.
func RenderText(c *fixture.Collection, selections map[string][]string) (string, error) {
	rows, err := Rows(c, selections)
	if err != nil {
		return "", err
	}

	lines := []string{
		"Fixture Address Export",
		strings.Repeat("=", 40),
		"",
	}

	currentID := -1
	for _, r := range rows {
		if r.FixtureID != currentID {
			if currentID != -1 {
				lines = append(lines, "")
			}
			currentID = r.FixtureID
			header := fmt.Sprintf("Fixture: %s (ID: %d) (%s)", r.FixtureName, r.FixtureID, titleRole(r.Role))
			if r.MasterFixtureID != 0 {
				header += fmt.Sprintf(" -> Master ID: %d", r.MasterFixtureID)
			}
			lines = append(lines, header, strings.Repeat("-", 30))
		}
		line := fmt.Sprintf("  %-15s Address: %-5s Sequence: %d", r.Attribute, r.AddressString(), r.Sequence)
		if r.ActivationGroup != "" {
			line += fmt.Sprintf(" ActivationGroup: %s", r.ActivationGroup)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func titleRole(r fixture.Role) string {
	s := r.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// RenderCSV produces the flat per-attribute table. The master column
// stays empty unless the fixture is a linked remote.
func RenderCSV(c *fixture.Collection, selections map[string][]string) (string, error) {
	rows, err := Rows(c, selections)
	if err != nil {
		return "", err
	}

	lines := []string{"fixture_name,fixture_id,attribute,address,sequence,role,master_fixture_id"}
	for _, r := range rows {
		masterID := ""
		if r.MasterFixtureID != 0 {
			masterID = fmt.Sprintf("%d", r.MasterFixtureID)
		}
		lines = append(lines, fmt.Sprintf("%s,%d,%s,%s,%d,%s,%s",
			r.FixtureName, r.FixtureID, r.Attribute, r.AddressString(), r.Sequence, r.Role, masterID))
	}
	return strings.Join(lines, "\n"), nil
}

type jsonAttribute struct {
	Address  string `json:"address"`
	Sequence int    `json:"sequence"`
}

type jsonFixture struct {
	Name       string                   `json:"name"`
	FixtureID  int                      `json:"fixture_id"`
	Attributes map[string]jsonAttribute `json:"attributes"`
}

// RenderJSON produces an array of fixture objects with nested
// per-attribute address/sequence entries. Fixtures are grouped under a
// synthetic "name_fixtureId" key so duplicate names cannot collide.
func RenderJSON(c *fixture.Collection, selections map[string][]string) (string, error) {
	rows, err := Rows(c, selections)
	if err != nil {
		return "", err
	}

	var order []string
	grouped := make(map[string]*jsonFixture)
	for _, r := range rows {
		key := fmt.Sprintf("%s_%d", r.FixtureName, r.FixtureID)
		entry, ok := grouped[key]
		if !ok {
			entry = &jsonFixture{
				Name:       r.FixtureName,
				FixtureID:  r.FixtureID,
				Attributes: make(map[string]jsonAttribute),
			}
			grouped[key] = entry
			order = append(order, key)
		}
		entry.Attributes[r.Attribute] = jsonAttribute{
			Address:  r.AddressString(),
			Sequence: r.Sequence,
		}
	}

	out := make([]*jsonFixture, 0, len(order))
	for _, key := range order {
		out = append(out, grouped[key])
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	return string(data), nil
}
