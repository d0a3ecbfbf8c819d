// Package match resolves imported fixtures against GDTF profiles.
// Profile resolution is exact-first, then fuzzy with a fixed
// similarity heuristic; mode resolution is lenient and falls back to
// the profile's first mode.
package match

import (
	"sort"
	"strings"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

// Acceptance thresholds. Profile matching is strict, mode matching is
// lenient because a wrong mode is recoverable in the UI while a wrong
// profile silently mis-addresses every attribute.
const (
	profileThreshold = 0.7
	modeThreshold    = 0.5
)

// Registry is a read-only set of profiles keyed by name. Library and
// show-embedded profiles coexist; matching treats them uniformly.
// Insertion order is preserved so fuzzy tie-breaks are deterministic.
type Registry struct {
	keys     []string
	profiles map[string]*fixture.Profile
}

func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*fixture.Profile)}
}

// Add registers a profile under key. Re-adding an existing key
// replaces the profile but keeps its original position.
func (r *Registry) Add(key string, p *fixture.Profile) {
	if _, ok := r.profiles[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.profiles[key] = p
}

// AddAll registers profiles under their own names.
func (r *Registry) AddAll(profiles []*fixture.Profile) {
	for _, p := range profiles {
		r.Add(p.Name, p)
	}
}

// Merge copies every entry of other into r.
func (r *Registry) Merge(other map[string]*fixture.Profile) {
	// Deterministic order: sorted keys of the incoming map.
	keys := make([]string, 0, len(other))
	for k := range other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Add(k, other[k])
	}
}

func (r *Registry) Get(key string) *fixture.Profile {
	return r.profiles[key]
}

func (r *Registry) Keys() []string {
	return r.keys
}

func (r *Registry) Len() int {
	return len(r.profiles)
}

// Clone returns a shallow copy sharing the (immutable) profiles, for
// sessions that extend the shared library with embedded profiles.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for _, k := range r.keys {
		c.Add(k, r.profiles[k])
	}
	return c
}

// Normalize lowers the string and strips every non-alphanumeric rune.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity scores two normalized strings: 1.0 when equal, 0.8 when
// one contains the other, else the count of position-wise matching
// bytes divided by the longer length. The heuristic is intentionally
// positional rather than edit-distance based; changing it changes
// which profiles auto-match in existing shows.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	matches := 0
	for i := 0; i < len(shorter); i++ {
		if shorter[i] == longer[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(longer))
}

// Match resolves f's declared type and mode against the registry,
// overwriting any previous match including stale address and sequence
// data.
func Match(f *fixture.FixtureMatch, reg *Registry) {
	f.ClearMatch()

	profile := findExact(f.DeclaredType, reg)
	if profile == nil {
		profile = findFuzzy(f.DeclaredType, reg)
	}
	if profile == nil {
		f.MatchStatus = fixture.StatusProfileMissing
		return
	}

	mode := findBestMode(f.DeclaredMode, profile)
	if mode == nil {
		f.MatchedProfile = profile
		f.MatchStatus = fixture.StatusModeMissing
		return
	}
	f.SetMatch(profile, mode)
}

// Apply records a caller-selected profile and mode, bypassing the
// similarity heuristics. Used for manual overrides.
func Apply(f *fixture.FixtureMatch, profile *fixture.Profile, modeName string) bool {
	f.ClearMatch()
	if profile == nil {
		return false
	}
	mode, ok := profile.Modes[modeName]
	if !ok {
		f.MatchedProfile = profile
		f.MatchStatus = fixture.StatusModeMissing
		return false
	}
	f.SetMatch(profile, mode)
	return true
}

// MatchAll matches every fixture in the collection and returns counts
// per terminal status.
func MatchAll(c *fixture.Collection, reg *Registry) Summary {
	var s Summary
	for _, f := range c.All() {
		Match(f, reg)
		switch f.MatchStatus {
		case fixture.StatusMatched:
			s.Matched++
		case fixture.StatusModeMissing:
			s.ModeMissing++
		case fixture.StatusError:
			s.Errors++
		default:
			s.ProfileMissing++
		}
	}
	s.Total = c.Len()
	return s
}

// Summary reports matching results over a collection.
type Summary struct {
	Total          int `json:"total"`
	Matched        int `json:"matched"`
	ProfileMissing int `json:"profileMissing"`
	ModeMissing    int `json:"modeMissing"`
	Errors         int `json:"errors"`
}

// MatchRate returns matched fixtures as a percentage of the total.
func (s Summary) MatchRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total) * 100
}

// findExact matches the declared type against registry keys first,
// then against profile display names.
func findExact(declaredType string, reg *Registry) *fixture.Profile {
	if p := reg.Get(declaredType); p != nil {
		return p
	}
	for _, key := range reg.Keys() {
		if reg.Get(key).Name == declaredType {
			return reg.Get(key)
		}
	}
	return nil
}

// findFuzzy scores the declared type against every registry key and
// profile name, keeping the first highest scorer. Accepts only scores
// strictly above the profile threshold.
func findFuzzy(declaredType string, reg *Registry) *fixture.Profile {
	if declaredType == "" {
		return nil
	}
	normalized := Normalize(declaredType)

	var best *fixture.Profile
	bestScore := 0.0
	for _, key := range reg.Keys() {
		p := reg.Get(key)
		if score := Similarity(normalized, Normalize(key)); score > bestScore {
			bestScore = score
			best = p
		}
		if score := Similarity(normalized, Normalize(p.Name)); score > bestScore {
			bestScore = score
			best = p
		}
	}
	if bestScore > profileThreshold {
		return best
	}
	return nil
}

// findBestMode resolves the declared mode within a profile. Empty
// declared mode takes the first mode immediately; a fuzzy score at or
// below the threshold also falls back to the first mode. Returns nil
// only when the profile has no modes at all.
func findBestMode(declaredMode string, p *fixture.Profile) *fixture.Mode {
	first := p.FirstMode()
	if first == nil {
		return nil
	}
	if declaredMode == "" {
		return first
	}
	if m, ok := p.Modes[declaredMode]; ok {
		return m
	}

	normalized := Normalize(declaredMode)
	var best *fixture.Mode
	bestScore := 0.0
	for _, name := range p.ModeOrder {
		if score := Similarity(normalized, Normalize(name)); score > bestScore {
			bestScore = score
			best = p.Modes[name]
		}
	}
	if bestScore > modeThreshold {
		return best
	}
	return first
}
