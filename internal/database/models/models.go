// Package models contains the database model definitions.
// These models map directly to the SQLite tables backing the GDTF
// profile library.
package models

import (
	"time"
)

// ProfileDefinition represents a GDTF profile in the library.
// Table: profile_definitions
type ProfileDefinition struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex"`
	Source    string    `gorm:"column:source;default:external"` // ProfileSource: mvr, external
	FileStem  *string   `gorm:"column:file_stem"`               // Archive name the profile came from
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relations (loaded separately)
	Modes []ProfileMode `gorm:"foreignKey:ProfileID"`
}

func (ProfileDefinition) TableName() string { return "profile_definitions" }

// ProfileMode represents one DMX mode of a profile.
// Table: profile_modes
type ProfileMode struct {
	ID           string `gorm:"column:id;primaryKey"`
	Name         string `gorm:"column:name"`
	ProfileID    string `gorm:"column:profile_id;index"`
	Position     int    `gorm:"column:position"` // Document order within the profile
	ChannelCount int    `gorm:"column:channel_count"`

	// Relations
	Channels []ModeChannel `gorm:"foreignKey:ModeID"`
}

func (ProfileMode) TableName() string { return "profile_modes" }

// ModeChannel represents one attribute channel within a mode.
// Table: mode_channels
type ModeChannel struct {
	ID              string  `gorm:"column:id;primaryKey"`
	ModeID          string  `gorm:"column:mode_id;index"`
	Attribute       string  `gorm:"column:attribute"`
	Offset          int     `gorm:"column:offset"`
	ActivationGroup *string `gorm:"column:activation_group"`
}

func (ModeChannel) TableName() string { return "mode_channels" }

// LibraryImportMeta tracks the history of profile library imports.
// Table: library_import_meta
type LibraryImportMeta struct {
	ID                string    `gorm:"column:id;primaryKey"`
	SourcePath        string    `gorm:"column:source_path"`
	StartedAt         time.Time `gorm:"column:started_at"`
	CompletedAt       time.Time `gorm:"column:completed_at"`
	TotalFiles        int       `gorm:"column:total_files"`
	SuccessfulImports int       `gorm:"column:successful_imports"`
	FailedImports     int       `gorm:"column:failed_imports"`
	ErrorMessage      *string   `gorm:"column:error_message"`
}

func (LibraryImportMeta) TableName() string { return "library_import_meta" }
