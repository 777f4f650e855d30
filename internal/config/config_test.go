package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{Database: DatabaseConfig{Path: "path"}}
	cfg.applyDefaults()
	return cfg
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	t.Setenv("PCBOOKING_DB", filepath.Join(tmpDir, "test.db"))

	yamlContent := `
database:
  path: "${PCBOOKING_DB}"
booking:
  resources: ["PC 1", " PC 2 "]
  max_total_days: 20
trust:
  origins: ["10.0.0.0/24", "192.168.1.7"]
  bypass_records_pin: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != filepath.Join(tmpDir, "test.db") {
		t.Errorf("expected env-expanded database path, got %s", cfg.Database.Path)
	}
	if len(cfg.Booking.Resources) != 2 || cfg.Booking.Resources[1] != "PC 2" {
		t.Errorf("expected trimmed resources, got %v", cfg.Booking.Resources)
	}
	if cfg.Booking.MaxTotalDays != 20 {
		t.Errorf("expected max_total_days 20, got %d", cfg.Booking.MaxTotalDays)
	}
	if cfg.Booking.MaxInitialDays != DefaultMaxInitialDays {
		t.Errorf("expected default max_initial_days, got %d", cfg.Booking.MaxInitialDays)
	}
	if !cfg.Trust.BypassRecordPIN || len(cfg.Trust.Origins) != 2 {
		t.Errorf("unexpected trust config: %+v", cfg.Trust)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("database: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if _, err := Load(configPath); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "duplicate resource", mutate: func(c *Config) { c.Booking.Resources = []string{"PC 1", "PC 1"} }, wantErr: true},
		{name: "total below initial", mutate: func(c *Config) { c.Booking.MaxTotalDays = 5 }, wantErr: true},
		{name: "extension bounds reversed", mutate: func(c *Config) {
			c.Booking.ExtendMinDays = 10
			c.Booking.ExtendMaxDays = 2
		}, wantErr: true},
		{name: "bad pin pattern", mutate: func(c *Config) { c.Pin.Pattern = "([" }, wantErr: true},
		{name: "hmac without key", mutate: func(c *Config) { c.Pin.Algorithm = "hmac" }, wantErr: true},
		{name: "hmac with key", mutate: func(c *Config) {
			c.Pin.Algorithm = "hmac"
			c.Pin.HMACKey = "secret"
		}},
		{name: "bad origin", mutate: func(c *Config) { c.Trust.Origins = []string{"lab-router"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if len(cfg.Booking.Resources) != len(DefaultResources) {
		t.Errorf("expected default roster, got %v", cfg.Booking.Resources)
	}
	if cfg.Booking.MaxTotalDays != 30 || cfg.Booking.ExtendMinDays != 1 || cfg.Booking.ExtendMaxDays != 15 {
		t.Errorf("unexpected booking defaults: %+v", cfg.Booking)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Pin.Pattern != DefaultPinPattern {
		t.Errorf("expected default pin pattern, got %s", cfg.Pin.Pattern)
	}
	if cfg.Sweep.RetentionDays != 30 {
		t.Errorf("expected default sweep retention 30, got %d", cfg.Sweep.RetentionDays)
	}

	// defaults must not alias the package roster
	cfg.Booking.Resources[0] = "changed"
	if DefaultResources[0] == "changed" {
		t.Error("applyDefaults aliased DefaultResources")
	}
}

func TestValidateOrigins(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"ipv4", []string{"192.168.0.10"}, false},
		{"ipv6", []string{"::1"}, false},
		{"cidr", []string{"10.0.0.0/8"}, false},
		{"bad cidr", []string{"10.0.0.0/99"}, true},
		{"hostname", []string{"localhost"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigins(tt.origins)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrigins() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
