package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/patchlink/patchlink-go/internal/fixture"
	"github.com/patchlink/patchlink-go/internal/services/gdtf"
	"github.com/patchlink/patchlink-go/internal/services/match"
)

// maxUploadSize bounds multipart uploads (show files can embed many
// GDTF packages).
const maxUploadSize = 512 << 20

type profileSummary struct {
	Name   string                `json:"name"`
	Source fixture.ProfileSource `json:"source"`
	Modes  []string              `json:"modes"`
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileRepo.LoadAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load profiles: %v", err))
		return
	}

	out := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileSummary{
			Name:   p.Name,
			Source: p.Source,
			Modes:  p.ModeOrder,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// uploadProfile accepts a single .gdtf package as multipart form data
// and stores it in the library.
func (h *Handler) uploadProfile(w http.ResponseWriter, r *http.Request) {
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

	stem := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	profile, err := gdtf.Parse(data, stem)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to parse GDTF package: %v", err))
		return
	}

	if err := h.profileRepo.UpsertProfile(r.Context(), profile, stem); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store profile: %v", err))
		return
	}
	if err := h.reloadLibrary(r.Context()); err != nil {
		log.Printf("Warning: failed to refresh profile registry: %v", err)
	}

	log.Printf("📦 Imported profile %s (%d modes)", profile.Name, len(profile.Modes))
	writeJSON(w, http.StatusCreated, profileSummary{
		Name:   profile.Name,
		Source: profile.Source,
		Modes:  profile.ModeOrder,
	})
}

// importLibrary scans a directory of .gdtf files into the library. The
// directory defaults to the configured library path.
func (h *Handler) importLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
	}
	if r.Body != nil {
		// An empty body means "use the configured path".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	dir := req.Directory
	if dir == "" {
		dir = h.cfg.ProfileLibraryPath
	}

	status, err := h.loader.LoadDirectory(r.Context(), dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("library import failed: %v", err))
		return
	}
	if err := h.reloadLibrary(r.Context()); err != nil {
		log.Printf("Warning: failed to refresh profile registry: %v", err)
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.profileRepo.DeleteByName(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete profile: %v", err))
		return
	}
	if err := h.reloadLibrary(r.Context()); err != nil {
		log.Printf("Warning: failed to refresh profile registry: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

// reloadLibrary rebuilds the cached registry from the database.
func (h *Handler) reloadLibrary(ctx context.Context) error {
	profiles, err := h.profileRepo.LoadAll(ctx)
	if err != nil {
		return err
	}
	reg := match.NewRegistry()
	reg.AddAll(profiles)
	h.setLibraryRegistry(reg)
	return nil
}
