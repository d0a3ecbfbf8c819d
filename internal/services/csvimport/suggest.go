package csvimport

import "strings"

// suggestionPatterns pair each logical field with header spellings
// seen in real fixture schedules.
var suggestionPatterns = map[string][]string{
	FieldName:        {"name", "description", "fixture name", "fixture"},
	FieldSpace:       {"space", "room", "studio", "location", "area"},
	FieldDescription: {"description", "desc", "location", "position"},
	FieldZone:        {"arch zone", "zone", "architectural zone", "arch_zone"},
	FieldDeskChannel: {"desk chan", "desk channel", "channel", "chan", "desk"},
	FieldUniverse:    {"univ", "universe", "uni", "dmx universe"},
	FieldAddress:     {"dmx", "dmx address", "address", "dmx_address", "dmx_addr"},
	FieldMode:        {"mode", "fixture mode", "dmx mode", "channel mode"},
	FieldType:        {"fixture type", "type", "fixture_type", "model", "manufacturer"},
	FieldNote:        {"note", "notes", "comment", "comments", "remark"},
}

// SuggestMapping guesses a column mapping from header names. Exact
// matches beat substring matches beat shared words. Best-effort only;
// the caller reviews the result before importing.
func SuggestMapping(headers []string) ColumnMapping {
	mapping := make(ColumnMapping)
	for field, patterns := range suggestionPatterns {
		bestIdx, bestScore := -1, 0
		for i, header := range headers {
			h := strings.ToLower(strings.TrimSpace(header))
			if h == "" {
				continue
			}
			for _, pattern := range patterns {
				score := 0
				switch {
				case h == pattern:
					score = 100
				case strings.Contains(h, pattern) || strings.Contains(pattern, h):
					score = 50
				case sharesWord(h, pattern):
					score = 25
				}
				if score > bestScore {
					bestScore = score
					bestIdx = i
				}
			}
		}
		if bestIdx >= 0 {
			mapping[field] = bestIdx
		}
	}
	return mapping
}

func sharesWord(header, pattern string) bool {
	for _, word := range strings.Fields(pattern) {
		if strings.Contains(header, word) {
			return true
		}
	}
	return false
}
