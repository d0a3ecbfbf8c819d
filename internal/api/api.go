// Package api exposes the patch engine over a REST surface: profile
// library management, analysis sessions, and a websocket progress feed.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/patchlink/patchlink-go/internal/config"
	"github.com/patchlink/patchlink-go/internal/database/repositories"
	"github.com/patchlink/patchlink-go/internal/services/gdtf"
	"github.com/patchlink/patchlink-go/internal/services/match"
	"github.com/patchlink/patchlink-go/internal/services/patch"
	"github.com/patchlink/patchlink-go/internal/services/pubsub"
)

// Handler carries the dependencies of every route. The profile library
// registry is cached here and refreshed after imports; sessions clone
// it so later library changes never mutate a running analysis.
type Handler struct {
	cfg         *config.Config
	profileRepo *repositories.ProfileRepository
	loader      *gdtf.Loader
	sessions    *patch.Store
	events      *pubsub.PubSub

	libraryMu sync.RWMutex
	library   *match.Registry
}

// New builds a Handler around the shared services. library may be nil;
// an empty registry is used until the first import.
func New(cfg *config.Config, profileRepo *repositories.ProfileRepository, loader *gdtf.Loader, events *pubsub.PubSub, library *match.Registry) *Handler {
	if library == nil {
		library = match.NewRegistry()
	}
	return &Handler{
		cfg:         cfg,
		profileRepo: profileRepo,
		loader:      loader,
		sessions:    patch.NewStore(),
		events:      events,
		library:     library,
	}
}

// Routes mounts every API route on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/profiles", func(r chi.Router) {
		r.Get("/", h.listProfiles)
		r.Post("/", h.uploadProfile)
		r.Post("/import", h.importLibrary)
		r.Delete("/{name}", h.deleteProfile)
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.listSessions)
		r.Post("/", h.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/match", h.matchSession)
			r.Post("/match/{fixtureID}", h.overrideMatch)
			r.Post("/selections", h.setSelections)
			r.Post("/addresses", h.calculateAddresses)
			r.Post("/sequences", h.assignSequences)
			r.Post("/links", h.linkFixtures)
			r.Delete("/links/{remoteID}", h.unlinkFixture)
			r.Get("/conflicts", h.getConflicts)
			r.Get("/validate", h.validateSession)
			r.Get("/export", h.exportSession)
		})
	})

	r.Get("/ws", h.serveWS)
}

// libraryRegistry returns the cached library registry.
func (h *Handler) libraryRegistry() *match.Registry {
	h.libraryMu.RLock()
	defer h.libraryMu.RUnlock()
	return h.library
}

// setLibraryRegistry swaps in a freshly loaded registry.
func (h *Handler) setLibraryRegistry(reg *match.Registry) {
	h.libraryMu.Lock()
	h.library = reg
	h.libraryMu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// session resolves the sessionID route parameter, writing a 404 and
// returning nil when it is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *patch.Session {
	id := chi.URLParam(r, "sessionID")
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil
	}
	return s
}
