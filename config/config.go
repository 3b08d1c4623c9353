// Package config loads server settings from defaults, an optional TOML file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"smartplanr/logging"
)

// DefaultConfigFile is read from the working directory when SMARTPLANR_CONFIG is unset.
const DefaultConfigFile = "smartplanr.toml"

type Config struct {
	Port     string `toml:"port"`
	Store    string `toml:"store"` // "firestore" or "memory"
	LogLevel string `toml:"log_level"`

	CredentialsFile string `toml:"credentials_file"`
	FirebaseAuth    bool   `toml:"firebase_auth"`

	JWTSecret        string `toml:"-"`
	JWTRefreshSecret string `toml:"-"`

	Gemini  GeminiConfig  `toml:"gemini"`
	Planner PlannerConfig `toml:"planner"`
	SMTP    SMTPConfig    `toml:"smtp"`
	Captcha CaptchaConfig `toml:"captcha"`
}

type GeminiConfig struct {
	APIKey        string   `toml:"-"`
	BaseURL       string   `toml:"base_url"`
	PrimaryModel  string   `toml:"primary_model"`
	FallbackModel string   `toml:"fallback_model"`
	Timeout       Duration `toml:"timeout"`
}

type PlannerConfig struct {
	Timezone string `toml:"timezone"`
}

// Location resolves Timezone, falling back to the local zone. Load rejects
// unknown zones, so the fallback only applies to hand-built configs.
func (p PlannerConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"-"`
}

// Enabled reports whether every SMTP setting is present.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.Username != "" && s.Password != ""
}

type CaptchaConfig struct {
	ProjectID       string `toml:"project_id"`
	SiteKey         string `toml:"site_key"`
	CredentialsFile string `toml:"credentials_file"`
}

// Enabled reports whether signup should require a reCAPTCHA token.
func (c CaptchaConfig) Enabled() bool {
	return c.ProjectID != "" && c.SiteKey != ""
}

// Duration lets TOML files use strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:     "8080",
		Store:    "firestore",
		LogLevel: "info",
		Gemini: GeminiConfig{
			BaseURL:       "https://generativelanguage.googleapis.com/v1beta",
			PrimaryModel:  "gemini-1.5-flash-latest",
			FallbackModel: "gemini-1.5-pro-latest",
			Timeout:       Duration{60 * time.Second},
		},
	}
}

// Load builds the configuration. A missing config file or .env file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("SMARTPLANR_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := loadFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Logger.Warn("ignoring .env file", "err", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func loadFromEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Store, "SMARTPLANR_STORE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS_1")
	setString(&cfg.JWTSecret, "JWT_SECRET_KEY")
	setString(&cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET_KEY")

	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.Gemini.PrimaryModel, "GEMINI_PRIMARY_MODEL")
	setString(&cfg.Gemini.FallbackModel, "GEMINI_FALLBACK_MODEL")
	if v := os.Getenv("GEMINI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GEMINI_TIMEOUT %q: %w", v, err)
		}
		cfg.Gemini.Timeout = Duration{d}
	}
	setString(&cfg.Planner.Timezone, "PLANNER_TIMEZONE")
	if tz := cfg.Planner.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid planner timezone %q: %w", tz, err)
		}
	}

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")

	setString(&cfg.Captcha.ProjectID, "GOOGLE_CLOUD_PROJECT_ID")
	setString(&cfg.Captcha.SiteKey, "RECAPTCHA_SITE_KEY")
	setString(&cfg.Captcha.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS_2")

	if v := os.Getenv("FIREBASE_AUTH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FIREBASE_AUTH %q: %w", v, err)
		}
		cfg.FirebaseAuth = b
	}

	switch cfg.Store {
	case "firestore", "memory":
	default:
		return fmt.Errorf("unknown store %q (want firestore or memory)", cfg.Store)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
