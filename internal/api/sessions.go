package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/patchlink/patchlink-go/internal/fixture"
	"github.com/patchlink/patchlink-go/internal/services/csvimport"
	"github.com/patchlink/patchlink-go/internal/services/export"
	"github.com/patchlink/patchlink-go/internal/services/ma3patch"
	"github.com/patchlink/patchlink-go/internal/services/match"
	"github.com/patchlink/patchlink-go/internal/services/mvr"
	"github.com/patchlink/patchlink-go/internal/services/patch"
	"github.com/patchlink/patchlink-go/internal/services/pubsub"
)

// sessionView is the JSON shape of a session including its fixtures.
type sessionView struct {
	*patch.Session
	Fixtures []*fixture.FixtureMatch `json:"fixtures"`
}

func viewOf(s *patch.Session) sessionView {
	return sessionView{Session: s, Fixtures: s.Fixtures.All()}
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.List())
}

// createSession imports a show file (MVR, CSV, or MA3 patch XML) into
// a new analysis session. The source kind is inferred from the file
// extension.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	file, header, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	registry := h.libraryRegistry().Clone()
	var raws []fixture.RawFixture
	var source string

	switch ext := strings.ToLower(filepath.Ext(header.Filename)); ext {
	case ".mvr":
		source = "mvr"
		result, err := mvr.Parse(data)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to parse MVR file: %v", err))
			return
		}
		registry.Merge(result.EmbeddedProfiles)
		raws = result.Fixtures
	case ".csv", ".txt":
		source = "csv"
		raws, err = h.parseCSVUpload(r, data)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case ".xml":
		source = "ma3"
		raws, err = ma3patch.Parse(data)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to parse MA3 patch: %v", err))
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	s := h.sessions.Create(name, source, raws, registry, h.cfg.SequenceStart)
	log.Printf("🎭 Created session %s from %s (%d fixtures)", s.ID, header.Filename, s.Fixtures.Len())
	h.events.Publish(pubsub.TopicSessionUpdated, s.ID, viewOf(s))
	writeJSON(w, http.StatusCreated, viewOf(s))
}

// parseCSVUpload parses CSV bytes with the caller-supplied column
// mapping and id strategy, falling back to header-based suggestion.
func (h *Handler) parseCSVUpload(r *http.Request, data []byte) ([]fixture.RawFixture, error) {
	var mapping csvimport.ColumnMapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return nil, fmt.Errorf("invalid column mapping: %w", err)
		}
	}
	if mapping == nil {
		// First pass only to recover the headers for suggestion.
		probe, err := csvimport.Parse(data, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV file: %w", err)
		}
		mapping = csvimport.SuggestMapping(probe.Headers)
	}

	startNumber := 1
	if raw := r.FormValue("id_start"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			startNumber = n
		}
	}
	ids := csvimport.StrategyFor(r.FormValue("id_method"), startNumber)

	result, err := csvimport.Parse(data, mapping, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if result.SkippedRows > 0 {
		log.Printf("Warning: skipped %d CSV rows without a usable name", result.SkippedRows)
	}
	return result.Fixtures, nil
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Lock()
	defer s.Unlock()
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.sessions.Delete(id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// matchSession runs profile matching over every fixture.
func (h *Handler) matchSession(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Lock()
	defer s.Unlock()
	summary := match.MatchAll(s.Fixtures, s.Registry)

	h.events.Publish(pubsub.TopicMatchProgress, s.ID, summary)
	h.events.Publish(pubsub.TopicSessionUpdated, s.ID, summary)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":  summary,
		"fixtures": s.Fixtures.All(),
	})
}

// overrideMatch applies a manual profile/mode choice to one fixture.
func (h *Handler) overrideMatch(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	fixtureID, err := strconv.Atoi(chi.URLParam(r, "fixtureID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fixture id")
		return
	}

	var req struct {
		Profile string `json:"profile"`
		Mode    string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.Lock()
	defer s.Unlock()
	f := s.Fixtures.ByID(fixtureID)
	if f == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("fixture %d not found", fixtureID))
		return
	}
	profile := s.Registry.Get(req.Profile)
	if profile == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("profile %q not found", req.Profile))
		return
	}
	if !match.Apply(f, profile, req.Mode) {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("profile %q has no mode %q", req.Profile, req.Mode))
		return
	}
	h.events.Publish(pubsub.TopicSessionUpdated, s.ID, f)
	writeJSON(w, http.StatusOK, f)
}

// setSelections stores the per-fixture-type attribute selections used
// by addressing, sequencing, and export.
func (h *Handler) setSelections(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var selections map[string][]string
	if err := json.NewDecoder(r.Body).Decode(&selections); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.Lock()
	s.Selections = selections
	s.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"selections": selections})
}

func (h *Handler) calculateAddresses(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Lock()
	defer s.Unlock()
	patch.CalculateAll(s.Fixtures, s.Selections)
	conflicts := patch.FindConflicts(s.Fixtures)

	h.events.Publish(pubsub.TopicSessionUpdated, s.ID, viewOf(s))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fixtures":  s.Fixtures.All(),
		"conflicts": conflicts,
	})
}

func (h *Handler) assignSequences(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		Start *int `json:"start"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	s.Lock()
	defer s.Unlock()
	start := s.SequenceStart
	if req.Start != nil {
		start = *req.Start
		s.SequenceStart = start
	}
	patch.AssignSequences(s.Fixtures, s.Selections, start)

	h.events.Publish(pubsub.TopicSessionUpdated, s.ID, viewOf(s))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"start":    start,
		"fixtures": s.Fixtures.All(),
	})
}

func (h *Handler) linkFixtures(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req struct {
		MasterID int `json:"masterId"`
		RemoteID int `json:"remoteId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.Lock()
	err := s.Fixtures.Link(req.MasterID, req.RemoteID)
	s.Unlock()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"masterId": req.MasterID, "remoteId": req.RemoteID})
}

func (h *Handler) unlinkFixture(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	remoteID, err := strconv.Atoi(chi.URLParam(r, "remoteID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fixture id")
		return
	}
	s.Lock()
	err = s.Fixtures.Unlink(remoteID)
	s.Unlock()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unlinked": remoteID})
}

func (h *Handler) getConflicts(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Lock()
	conflicts := patch.FindConflicts(s.Fixtures)
	s.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"conflicts": conflicts})
}

func (h *Handler) validateSession(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Lock()
	issues := s.Fixtures.Validate()
	s.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

// exportSession renders the session in the requested format. MA3
// trigger/range parameters default from server configuration and may
// be overridden per request via query parameters.
func (h *Handler) exportSession(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "text"
	}

	s.Lock()
	defer s.Unlock()

	var out, contentType, filename string
	var err error
	switch format {
	case "text":
		contentType, filename = "text/plain; charset=utf-8", "patch.txt"
		out, err = export.RenderText(s.Fixtures, s.Selections)
	case "csv":
		contentType, filename = "text/csv; charset=utf-8", "patch.csv"
		out, err = export.RenderCSV(s.Fixtures, s.Selections)
	case "json":
		contentType, filename = "application/json", "patch.json"
		out, err = export.RenderJSON(s.Fixtures, s.Selections)
	case "ma3":
		contentType, filename = "application/xml", "patch_remotes.xml"
		cfg := h.ma3ConfigFromQuery(r)
		out, err = export.RenderMA3Remotes(s.Fixtures, s.Selections, &cfg)
	case "ma3seq":
		contentType, filename = "application/xml", "patch_sequences.xml"
		out, err = export.RenderMA3Sequences(s.Fixtures, s.Selections)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown export format %q", format))
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// ma3ConfigFromQuery builds the export configuration from server
// defaults plus per-request query overrides.
func (h *Handler) ma3ConfigFromQuery(r *http.Request) export.MA3Config {
	cfg := export.MA3Config{
		TriggerOn:  h.cfg.MA3TriggerOn,
		TriggerOff: h.cfg.MA3TriggerOff,
		InFrom:     h.cfg.MA3InFrom,
		InTo:       h.cfg.MA3InTo,
		OutFrom:    h.cfg.MA3OutFrom,
		OutTo:      h.cfg.MA3OutTo,
		Resolution: h.cfg.MA3Resolution,
	}
	q := r.URL.Query()
	intParam := func(key string, dst *int) {
		if v := q.Get(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	floatParam := func(key string, dst *float64) {
		if v := q.Get(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	intParam("trigger_on", &cfg.TriggerOn)
	intParam("trigger_off", &cfg.TriggerOff)
	intParam("in_from", &cfg.InFrom)
	intParam("in_to", &cfg.InTo)
	floatParam("out_from", &cfg.OutFrom)
	floatParam("out_to", &cfg.OutTo)
	if v := q.Get("resolution"); v != "" {
		cfg.Resolution = v
	}
	return cfg
}

// formFile fetches a named multipart file, with a friendlier error
// than the stdlib's.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("missing %q file upload: %w", field, err)
	}
	return file, header, nil
}
