// Package config provides configuration management for the PatchLink server.
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Profile library import
	ProfileLibraryPath    string // Directory of .gdtf files imported on startup
	ProfileImportEnabled  bool   // Enable automatic library import on startup
	ProfileImportReimport bool   // Re-import even when the library is already populated

	// Sequence assignment
	SequenceStart int // First sequence number handed out

	// MA3 export defaults, overridable per export request
	MA3TriggerOn  int
	MA3TriggerOff int
	MA3InFrom     int
	MA3InTo       int
	MA3OutFrom    float64
	MA3OutTo      float64
	MA3Resolution string

	// CORS configuration
	CORSOrigin string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./patchlink.db"),

		// Profile library
		ProfileLibraryPath:    getEnv("PROFILE_LIBRARY_PATH", "./profiles"),
		ProfileImportEnabled:  getEnvBool("PROFILE_IMPORT_ENABLED", true),
		ProfileImportReimport: getEnvBool("PROFILE_IMPORT_REIMPORT", false),

		// Sequences
		SequenceStart: getEnvInt("SEQUENCE_START", 1),

		// MA3 export defaults
		MA3TriggerOn:  getEnvInt("MA3_TRIGGER_ON", 255),
		MA3TriggerOff: getEnvInt("MA3_TRIGGER_OFF", 0),
		MA3InFrom:     getEnvInt("MA3_IN_FROM", 0),
		MA3InTo:       getEnvInt("MA3_IN_TO", 255),
		MA3OutFrom:    getEnvFloat("MA3_OUT_FROM", 0.0),
		MA3OutTo:      getEnvFloat("MA3_OUT_TO", 100.0),
		MA3Resolution: getEnv("MA3_RESOLUTION", "16bit"),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the float value of an environment variable or a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
