package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxInitialDays = 15
	DefaultMaxTotalDays   = 30
	DefaultExtendMinDays  = 1
	DefaultExtendMaxDays  = 15
	DefaultPinPattern     = `^[0-9]{4,8}$`
)

// DefaultResources is the lab roster used when none is configured.
var DefaultResources = []string{"PC 094", "PC 095", "PC 083", "PC 084", "PC 085"}

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Pin        PinConfig        `yaml:"pin"`
	Trust      TrustConfig      `yaml:"trust"`
}

type BookingConfig struct {
	Resources      []string `yaml:"resources"`
	MaxInitialDays int      `yaml:"max_initial_days"`
	MaxTotalDays   int      `yaml:"max_total_days"`
	ExtendMinDays  int      `yaml:"extend_min_days"`
	ExtendMaxDays  int      `yaml:"extend_max_days"`
}

type PinConfig struct {
	Algorithm     string `yaml:"algorithm"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
	HMACKey       string `yaml:"hmac_key"`
	Pattern       string `yaml:"pattern"`
	MaxAttempts   int    `yaml:"max_attempts"`
	AttemptWindow int    `yaml:"attempt_window"` // seconds
}

// TrustConfig describes the trusted-origin PIN bypass. It is a convenience
// for the lab network, not an access control boundary.
type TrustConfig struct {
	Origins         []string `yaml:"origins"`
	BypassCode      string   `yaml:"bypass_code"`
	BypassRecordPIN bool     `yaml:"bypass_records_pin"`
}

type APIConfig struct {
	Enabled           bool               `yaml:"enabled"`
	HTTP              APIHTTPConfig      `yaml:"http"`
	Auth              APIAuthConfig      `yaml:"auth"`
	RateLimit         APIRateLimitConfig `yaml:"rate_limit"`
	TrustForwardedFor bool               `yaml:"trust_forwarded_for"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type SweepConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Interval      string `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if err := ValidateResources(c.Booking.Resources); err != nil {
		return err
	}

	b := c.Booking
	if b.MaxInitialDays < 1 || b.MaxTotalDays < b.MaxInitialDays {
		return fmt.Errorf("booking limits invalid: max_initial_days=%d max_total_days=%d", b.MaxInitialDays, b.MaxTotalDays)
	}
	if b.ExtendMinDays < 1 || b.ExtendMaxDays < b.ExtendMinDays {
		return fmt.Errorf("extension bounds invalid: [%d, %d]", b.ExtendMinDays, b.ExtendMaxDays)
	}

	if _, err := regexp.Compile(c.Pin.Pattern); err != nil {
		return fmt.Errorf("pin pattern invalid: %w", err)
	}
	if strings.EqualFold(c.Pin.Algorithm, "hmac") && c.Pin.HMACKey == "" {
		return errors.New("pin.hmac_key is required when pin.algorithm is hmac")
	}

	return ValidateOrigins(c.Trust.Origins)
}

func ValidateResources(resources []string) error {
	if len(resources) == 0 {
		return errors.New("at least one bookable resource is required")
	}
	seen := make(map[string]bool, len(resources))
	for _, r := range resources {
		name := strings.TrimSpace(r)
		if name == "" {
			return errors.New("resource name must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate resource found: %s", name)
		}
		seen[name] = true
	}
	return nil
}

// ValidateOrigins accepts plain IPs and CIDR blocks.
func ValidateOrigins(origins []string) error {
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if strings.Contains(o, "/") {
			if _, _, err := net.ParseCIDR(o); err != nil {
				return fmt.Errorf("trusted origin %q: %w", o, err)
			}
			continue
		}
		if net.ParseIP(o) == nil {
			return fmt.Errorf("trusted origin %q is not an IP or CIDR", o)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "pcbooking"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if len(c.Booking.Resources) == 0 {
		c.Booking.Resources = append([]string(nil), DefaultResources...)
	}
	for i, r := range c.Booking.Resources {
		c.Booking.Resources[i] = strings.TrimSpace(r)
	}
	if c.Booking.MaxInitialDays == 0 {
		c.Booking.MaxInitialDays = DefaultMaxInitialDays
	}
	if c.Booking.MaxTotalDays == 0 {
		c.Booking.MaxTotalDays = DefaultMaxTotalDays
	}
	if c.Booking.ExtendMinDays == 0 {
		c.Booking.ExtendMinDays = DefaultExtendMinDays
	}
	if c.Booking.ExtendMaxDays == 0 {
		c.Booking.ExtendMaxDays = DefaultExtendMaxDays
	}

	if c.Pin.Pattern == "" {
		c.Pin.Pattern = DefaultPinPattern
	}
	if c.Pin.MaxAttempts == 0 {
		c.Pin.MaxAttempts = 10
	}
	if c.Pin.AttemptWindow == 0 {
		c.Pin.AttemptWindow = 15 * 60
	}

	if c.Sweep.Interval == "" {
		c.Sweep.Interval = "24h"
	}
	if c.Sweep.RetentionDays == 0 {
		c.Sweep.RetentionDays = 30
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "24h"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
