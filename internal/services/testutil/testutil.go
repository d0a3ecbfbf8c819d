// Package testutil provides shared test utilities for integration tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/patchlink/patchlink-go/internal/database/models"
	"github.com/patchlink/patchlink-go/internal/database/repositories"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB          *gorm.DB
	ProfileRepo *repositories.ProfileRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	// Create in-memory SQLite database
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Auto-migrate all models
	err = db.AutoMigrate(
		&models.ProfileDefinition{},
		&models.ProfileMode{},
		&models.ModeChannel{},
		&models.LibraryImportMeta{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:          db,
		ProfileRepo: repositories.NewProfileRepository(db),
	}

	// Cleanup function - close the database connection
	cleanup := func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}

	return testDB, cleanup
}

// UniqueProfileName generates a unique profile name for testing.
// This ensures tests don't conflict with each other.
func UniqueProfileName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
