package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RosterPostgres = "postgres"
	RosterAPI      = "api"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RosterSource      string        `mapstructure:"ROSTER_SOURCE"`
	PatientAPIURL     string        `mapstructure:"PATIENT_API_URL"`
	PatientAPIToken   string        `mapstructure:"PATIENT_API_TOKEN"`
	PatientAPITimeout time.Duration `mapstructure:"PATIENT_API_TIMEOUT"`
	PatientAPIRetries int           `mapstructure:"PATIENT_API_RETRIES"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	MatchThreshold      float64 `mapstructure:"MATCH_THRESHOLD"`
	MatchLimit          int     `mapstructure:"MATCH_LIMIT"`
	MatchToothPolicy    string  `mapstructure:"MATCH_TOOTH_POLICY"`
	MatchToothTolerance int     `mapstructure:"MATCH_TOOTH_TOLERANCE"`

	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"ROSTER_SOURCE", "PATIENT_API_URL", "PATIENT_API_TOKEN", "PATIENT_API_TIMEOUT", "PATIENT_API_RETRIES",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"MATCH_THRESHOLD", "MATCH_LIMIT", "MATCH_TOOTH_POLICY", "MATCH_TOOTH_TOLERANCE",
	"MIGRATIONS_DIR",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ROSTER_SOURCE", RosterPostgres)
	v.SetDefault("PATIENT_API_TIMEOUT", "15s")
	v.SetDefault("PATIENT_API_RETRIES", 3)
	v.SetDefault("MATCH_THRESHOLD", 50)
	v.SetDefault("MATCH_LIMIT", 0)
	v.SetDefault("MATCH_TOOTH_POLICY", "exact")
	v.SetDefault("MATCH_TOOTH_TOLERANCE", 4)
	v.SetDefault("MIGRATIONS_DIR", "migrations")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.RosterSource = strings.ToLower(strings.TrimSpace(cfg.RosterSource))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings the server needs to start.
func (c *Config) Validate() error {
	switch c.RosterSource {
	case RosterPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ROSTER_SOURCE is %q", RosterPostgres)
		}
	case RosterAPI:
		if c.PatientAPIURL == "" {
			return fmt.Errorf("PATIENT_API_URL is required when ROSTER_SOURCE is %q", RosterAPI)
		}
	default:
		return fmt.Errorf("ROSTER_SOURCE must be %q or %q, got %q", RosterPostgres, RosterAPI, c.RosterSource)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0,100], got %v", c.MatchThreshold)
	}
	if c.MatchLimit < 0 {
		return fmt.Errorf("MATCH_LIMIT must not be negative, got %d", c.MatchLimit)
	}

	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set outside development (ENV=%q)", c.Env)
	}
	return nil
}
