// Package fixture defines the shared data model for patch analysis:
// GDTF profiles, their DMX modes, raw imported fixture records, and the
// matched fixture working unit that flows through matching, addressing,
// and sequence assignment.
package fixture

import "fmt"

// UniverseSize is the DMX addressing constant: one universe holds 512
// channels, 1-based throughout.
const UniverseSize = 512

// ProfileSource tags where a profile was loaded from. Matching ignores
// it; it exists so callers can group library profiles separately from
// ones embedded in a show file.
type ProfileSource string

const (
	SourceMVR      ProfileSource = "mvr"
	SourceExternal ProfileSource = "external"
)

// Profile is a device type definition parsed from a GDTF package.
// Immutable once parsed.
type Profile struct {
	Name   string           `json:"name"`
	Modes  map[string]*Mode `json:"modes"`
	Source ProfileSource    `json:"source"`

	// ModeOrder preserves document order from the GDTF description so
	// "first mode" fallbacks are deterministic.
	ModeOrder []string `json:"modeOrder,omitempty"`
}

// AddMode registers a mode, appending it to the document order.
func (p *Profile) AddMode(m *Mode) {
	if p.Modes == nil {
		p.Modes = make(map[string]*Mode)
	}
	if _, ok := p.Modes[m.Name]; !ok {
		p.ModeOrder = append(p.ModeOrder, m.Name)
	}
	p.Modes[m.Name] = m
}

// FirstMode returns the profile's first mode in document order, or nil
// if the profile has none. Used by the lenient mode-resolution fallback.
func (p *Profile) FirstMode() *Mode {
	for _, name := range p.ModeOrder {
		if m, ok := p.Modes[name]; ok {
			return m
		}
	}
	for _, m := range p.Modes {
		return m
	}
	return nil
}

// Mode is one DMX personality of a profile. Channels maps a resolved
// attribute name to its 1-based channel offset; ActivationGroups maps a
// subset of those attributes to their GDTF activation group tag.
type Mode struct {
	Name             string            `json:"name"`
	Channels         map[string]int    `json:"channels"`
	ActivationGroups map[string]string `json:"activationGroups,omitempty"`
	TotalChannels    int               `json:"totalChannels"`
}

// ChannelCount returns TotalChannels when set, else the number of
// usable channels in the mode.
func (m *Mode) ChannelCount() int {
	if m.TotalChannels > 0 {
		return m.TotalChannels
	}
	return len(m.Channels)
}

// RawFixture is the source-agnostic record every importer produces.
// DeclaredType and DeclaredMode are free text straight from the source
// file; BaseAddress is the 1-based absolute DMX address of the
// fixture's first channel.
type RawFixture struct {
	Name         string `json:"name"`
	UUID         string `json:"uuid,omitempty"`
	DeclaredType string `json:"declaredType"`
	DeclaredMode string `json:"declaredMode"`
	BaseAddress  int    `json:"baseAddress"`
	FixtureID    int    `json:"fixtureId"`
}

// MatchStatus is the terminal state of profile/mode resolution for one
// fixture. Match failures are states, not errors.
type MatchStatus int

const (
	StatusProfileMissing MatchStatus = iota
	StatusModeMissing
	StatusMatched
	StatusError
)

func (s MatchStatus) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusProfileMissing:
		return "profile_missing"
	case StatusModeMissing:
		return "mode_missing"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("MatchStatus(%d)", int(s))
}

// MarshalJSON emits the status as its canonical string.
func (s MatchStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Role is a fixture's position in a master/remote link. Remotes inherit
// their master's sequence numbers instead of receiving their own.
type Role int

const (
	RoleUnassigned Role = iota
	RoleMaster
	RoleRemote
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleRemote:
		return "remote"
	}
	return "unassigned"
}

// MarshalJSON emits the role as its canonical string.
func (r Role) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// Address is one attribute's resolved DMX location.
type Address struct {
	Universe int `json:"universe"`
	Channel  int `json:"channel"`
	Absolute int `json:"absolute"`
}

// AbsoluteAddress converts a 1-based (universe, channel) pair to the
// absolute address used throughout the system.
func AbsoluteAddress(universe, channel int) int {
	return (universe-1)*UniverseSize + channel
}

// SplitAddress is the inverse of AbsoluteAddress.
func SplitAddress(absolute int) Address {
	return Address{
		Universe: ((absolute - 1) / UniverseSize) + 1,
		Channel:  ((absolute - 1) % UniverseSize) + 1,
		Absolute: absolute,
	}
}

// FixtureMatch is the working unit downstream of matching. It is
// created from a RawFixture, mutated in place by matching, address
// calculation, sequence assignment, and linking, and never deleted:
// unmatched fixtures persist as error-reporting placeholders until
// re-matched.
type FixtureMatch struct {
	Name         string `json:"name"`
	UUID         string `json:"uuid,omitempty"`
	DeclaredType string `json:"declaredType"`
	DeclaredMode string `json:"declaredMode"`
	BaseAddress  int    `json:"baseAddress"`
	FixtureID    int    `json:"fixtureId"`

	MatchedProfile *Profile    `json:"matchedProfile,omitempty"`
	MatchedMode    *Mode       `json:"matchedMode,omitempty"`
	MatchStatus    MatchStatus `json:"matchStatus"`

	AttributeOffsets   map[string]int     `json:"attributeOffsets,omitempty"`
	AbsoluteAddresses  map[string]Address `json:"absoluteAddresses,omitempty"`
	AttributeSequences map[string]int     `json:"attributeSequences,omitempty"`

	Role             Role             `json:"role"`
	MasterFixtureID  int              `json:"masterFixtureId,omitempty"`
	LinkedFixtureIDs map[int]struct{} `json:"-"`
}

// FromRaw builds an unmatched FixtureMatch from an imported record.
func FromRaw(r RawFixture) *FixtureMatch {
	return &FixtureMatch{
		Name:         r.Name,
		UUID:         r.UUID,
		DeclaredType: r.DeclaredType,
		DeclaredMode: r.DeclaredMode,
		BaseAddress:  r.BaseAddress,
		FixtureID:    r.FixtureID,
		MatchStatus:  StatusProfileMissing,
	}
}

// ClearMatch resets every match-derived field, including addresses and
// sequences computed under a previous match. Role links survive.
func (f *FixtureMatch) ClearMatch() {
	f.MatchedProfile = nil
	f.MatchedMode = nil
	f.MatchStatus = StatusProfileMissing
	f.AttributeOffsets = nil
	f.AbsoluteAddresses = nil
	f.AttributeSequences = nil
}

// SetMatch records a successful profile+mode resolution, copying the
// mode's channel map so later edits to the fixture never touch the
// shared profile.
func (f *FixtureMatch) SetMatch(p *Profile, m *Mode) {
	f.ClearMatch()
	f.MatchedProfile = p
	f.MatchedMode = m
	f.MatchStatus = StatusMatched
	f.AttributeOffsets = make(map[string]int, len(m.Channels))
	for attr, offset := range m.Channels {
		f.AttributeOffsets[attr] = offset
	}
}

// Matched reports whether the fixture carries a resolved profile+mode.
func (f *FixtureMatch) Matched() bool {
	return f.MatchStatus == StatusMatched
}
