package config

import (
	"testing"
)

func TestLoad_CustomEnvironment(t *testing.T) {
	// Set custom environment variables using t.Setenv (auto cleanup)
	t.Setenv("PORT", "8080")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "file:./prod.db")
	t.Setenv("PROFILE_LIBRARY_PATH", "/opt/profiles")
	t.Setenv("PROFILE_IMPORT_ENABLED", "false")
	t.Setenv("PROFILE_IMPORT_REIMPORT", "true")
	t.Setenv("SEQUENCE_START", "100")
	t.Setenv("MA3_TRIGGER_ON", "200")
	t.Setenv("MA3_TRIGGER_OFF", "10")
	t.Setenv("MA3_IN_FROM", "5")
	t.Setenv("MA3_IN_TO", "250")
	t.Setenv("MA3_OUT_FROM", "2.5")
	t.Setenv("MA3_OUT_TO", "97.5")
	t.Setenv("MA3_RESOLUTION", "24bit")
	t.Setenv("CORS_ORIGIN", "http://example.com")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected Port to be '8080', got '%s'", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Expected Env to be 'production', got '%s'", cfg.Env)
	}
	if cfg.DatabaseURL != "file:./prod.db" {
		t.Errorf("Expected DatabaseURL to be 'file:./prod.db', got '%s'", cfg.DatabaseURL)
	}
	if cfg.ProfileLibraryPath != "/opt/profiles" {
		t.Errorf("Expected ProfileLibraryPath to be '/opt/profiles', got '%s'", cfg.ProfileLibraryPath)
	}
	if cfg.ProfileImportEnabled != false {
		t.Errorf("Expected ProfileImportEnabled to be false, got %v", cfg.ProfileImportEnabled)
	}
	if cfg.ProfileImportReimport != true {
		t.Errorf("Expected ProfileImportReimport to be true, got %v", cfg.ProfileImportReimport)
	}
	if cfg.SequenceStart != 100 {
		t.Errorf("Expected SequenceStart to be 100, got %d", cfg.SequenceStart)
	}
	if cfg.MA3TriggerOn != 200 {
		t.Errorf("Expected MA3TriggerOn to be 200, got %d", cfg.MA3TriggerOn)
	}
	if cfg.MA3TriggerOff != 10 {
		t.Errorf("Expected MA3TriggerOff to be 10, got %d", cfg.MA3TriggerOff)
	}
	if cfg.MA3InFrom != 5 {
		t.Errorf("Expected MA3InFrom to be 5, got %d", cfg.MA3InFrom)
	}
	if cfg.MA3InTo != 250 {
		t.Errorf("Expected MA3InTo to be 250, got %d", cfg.MA3InTo)
	}
	if cfg.MA3OutFrom != 2.5 {
		t.Errorf("Expected MA3OutFrom to be 2.5, got %g", cfg.MA3OutFrom)
	}
	if cfg.MA3OutTo != 97.5 {
		t.Errorf("Expected MA3OutTo to be 97.5, got %g", cfg.MA3OutTo)
	}
	if cfg.MA3Resolution != "24bit" {
		t.Errorf("Expected MA3Resolution to be '24bit', got '%s'", cfg.MA3Resolution)
	}
	if cfg.CORSOrigin != "http://example.com" {
		t.Errorf("Expected CORSOrigin to be 'http://example.com', got '%s'", cfg.CORSOrigin)
	}
}

func TestLoad_MA3Defaults(t *testing.T) {
	cfg := Load()

	if cfg.MA3TriggerOn != 255 {
		t.Errorf("Expected MA3TriggerOn default 255, got %d", cfg.MA3TriggerOn)
	}
	if cfg.MA3TriggerOff != 0 {
		t.Errorf("Expected MA3TriggerOff default 0, got %d", cfg.MA3TriggerOff)
	}
	if cfg.MA3InTo != 255 {
		t.Errorf("Expected MA3InTo default 255, got %d", cfg.MA3InTo)
	}
	if cfg.MA3OutTo != 100.0 {
		t.Errorf("Expected MA3OutTo default 100, got %g", cfg.MA3OutTo)
	}
	if cfg.MA3Resolution != "16bit" {
		t.Errorf("Expected MA3Resolution default '16bit', got '%s'", cfg.MA3Resolution)
	}
	if cfg.SequenceStart != 1 {
		t.Errorf("Expected SequenceStart default 1, got %d", cfg.SequenceStart)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.expected {
				t.Errorf("IsDevelopment() = %v, want %v for env '%s'", got, tt.expected, tt.env)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v for env '%s'", got, tt.expected, tt.env)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	// Test with existing env var
	t.Setenv("TEST_GET_ENV", "custom_value")

	result := getEnv("TEST_GET_ENV", "default")
	if result != "custom_value" {
		t.Errorf("Expected 'custom_value', got '%s'", result)
	}

	// Test with non-existing env var (use a unique key that won't be set)
	result = getEnv("NON_EXISTING_VAR_12345_UNIQUE", "default_value")
	if result != "default_value" {
		t.Errorf("Expected 'default_value', got '%s'", result)
	}
}

func TestGetEnvInt(t *testing.T) {
	// Test with valid int
	t.Setenv("TEST_INT_VAR", "42")

	result := getEnvInt("TEST_INT_VAR", 10)
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	// Test with invalid int (should return default)
	t.Setenv("TEST_INVALID_INT", "not_a_number")

	result = getEnvInt("TEST_INVALID_INT", 10)
	if result != 10 {
		t.Errorf("Expected default 10 for invalid int, got %d", result)
	}

	// Test with non-existing env var
	result = getEnvInt("NON_EXISTING_INT_VAR_12345_UNIQUE", 100)
	if result != 100 {
		t.Errorf("Expected default 100, got %d", result)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT_VAR", "12.75")

	result := getEnvFloat("TEST_FLOAT_VAR", 1.0)
	if result != 12.75 {
		t.Errorf("Expected 12.75, got %g", result)
	}

	t.Setenv("TEST_INVALID_FLOAT", "not_a_number")

	result = getEnvFloat("TEST_INVALID_FLOAT", 3.5)
	if result != 3.5 {
		t.Errorf("Expected default 3.5 for invalid float, got %g", result)
	}

	result = getEnvFloat("NON_EXISTING_FLOAT_VAR_12345_UNIQUE", 50.0)
	if result != 50.0 {
		t.Errorf("Expected default 50, got %g", result)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
		setEnv       bool
	}{
		{"true_string", "true", false, true, true},
		{"false_string", "false", true, false, true},
		{"1_string", "1", false, true, true},
		{"0_string", "0", true, false, true},
		{"invalid_string_returns_default", "invalid", true, true, true},
		{"non_existing_returns_default_true", "", true, true, false},
		{"non_existing_returns_default_false", "", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Use a unique env key for each test
			envKey := "TEST_BOOL_VAR_" + tt.name + "_UNIQUE"
			if tt.setEnv {
				t.Setenv(envKey, tt.envValue)
			}

			result := getEnvBool(envKey, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("getEnvBool(%s, %v) = %v, want %v", envKey, tt.defaultValue, result, tt.expected)
			}
		})
	}
}

func TestGetEnvInt_ZeroValue(t *testing.T) {
	t.Setenv("TEST_ZERO_INT", "0")

	result := getEnvInt("TEST_ZERO_INT", 10)
	if result != 0 {
		t.Errorf("Expected 0, got %d", result)
	}
}
