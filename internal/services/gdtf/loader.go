package gdtf

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patchlink/patchlink-go/internal/database/models"
	"github.com/patchlink/patchlink-go/internal/database/repositories"
	"github.com/patchlink/patchlink-go/internal/services/pubsub"
)

// ImportStatus tracks the outcome of a library import run.
type ImportStatus struct {
	SourcePath        string    `json:"sourcePath"`
	StartedAt         time.Time `json:"startedAt"`
	CompletedAt       time.Time `json:"completedAt"`
	TotalFiles        int       `json:"totalFiles"`
	SuccessfulImports int       `json:"successfulImports"`
	FailedImports     int       `json:"failedImports"`
	Errors            []string  `json:"errors,omitempty"`
}

// ImportProgress is published per file while a library import runs.
type ImportProgress struct {
	File      string `json:"file"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Failed    bool   `json:"failed"`
}

// Loader imports .gdtf files from a directory into the profile library.
type Loader struct {
	profileRepo *repositories.ProfileRepository
	events      *pubsub.PubSub
}

// NewLoader creates a new Loader. events may be nil when no progress
// feed is wanted.
func NewLoader(profileRepo *repositories.ProfileRepository, events *pubsub.PubSub) *Loader {
	return &Loader{
		profileRepo: profileRepo,
		events:      events,
	}
}

// NeedsImport reports whether the profile library is empty.
func (l *Loader) NeedsImport(ctx context.Context) (bool, error) {
	count, err := l.profileRepo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count == 0, nil
}

// LoadDirectory parses every .gdtf file under dir (non-recursive) and
// upserts the resulting profiles into the library. Individual files
// that fail to parse are recorded and skipped; only a missing or
// unreadable directory fails the whole call.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*ImportStatus, error) {
	log.Printf("📦 Importing GDTF profiles from %s...", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".gdtf") {
			files = append(files, e.Name())
		}
	}

	status := &ImportStatus{
		SourcePath: dir,
		StartedAt:  time.Now(),
		TotalFiles: len(files),
	}

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		profile, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Warning: skipping %s: %v", name, err)
			status.FailedImports++
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", name, err))
			l.publishProgress(name, i+1, len(files), true)
			continue
		}
		if err := l.profileRepo.UpsertProfile(ctx, profile, stem); err != nil {
			log.Printf("Warning: failed to store %s: %v", name, err)
			status.FailedImports++
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", name, err))
			l.publishProgress(name, i+1, len(files), true)
			continue
		}
		status.SuccessfulImports++
		l.publishProgress(name, i+1, len(files), false)
	}

	status.CompletedAt = time.Now()
	if err := l.saveImportMeta(ctx, status); err != nil {
		log.Printf("Warning: failed to save import status: %v", err)
	}

	log.Printf("✅ Profile import complete: %d imported, %d failed of %d files",
		status.SuccessfulImports, status.FailedImports, status.TotalFiles)
	return status, nil
}

func (l *Loader) publishProgress(file string, processed, total int, failed bool) {
	if l.events == nil {
		return
	}
	l.events.PublishAll(pubsub.TopicLibraryImport, ImportProgress{
		File:      file,
		Processed: processed,
		Total:     total,
		Failed:    failed,
	})
}

func (l *Loader) saveImportMeta(ctx context.Context, status *ImportStatus) error {
	meta := &models.LibraryImportMeta{
		SourcePath:        status.SourcePath,
		StartedAt:         status.StartedAt,
		CompletedAt:       status.CompletedAt,
		TotalFiles:        status.TotalFiles,
		SuccessfulImports: status.SuccessfulImports,
		FailedImports:     status.FailedImports,
	}
	if len(status.Errors) > 0 {
		msg := strings.Join(status.Errors, "; ")
		meta.ErrorMessage = &msg
	}
	return l.profileRepo.CreateImportMeta(ctx, meta)
}
