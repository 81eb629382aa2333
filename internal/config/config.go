// Package config loads bridge configuration from an optional local TOML
// file layered under environment variables, with env always winning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/nevindra/chatbridge"
)

// Config holds every tunable the bridge accepts.
type Config struct {
	BotToken       string        `toml:"-"`
	ChatID         string        `toml:"-"`
	WorkDir        string        `toml:"work_dir"`
	Verbose        bool          `toml:"verbose"`
	Model          string        `toml:"model"`
	MaxBudgetUSD   float64       `toml:"max_budget_usd"`
	SessionTimeout time.Duration `toml:"-"`
	UpdateInterval time.Duration `toml:"-"`
}

// Default returns a Config with every field at its documented default.
func Default() Config {
	wd, _ := os.Getwd()
	return Config{
		WorkDir:        wd,
		SessionTimeout: time.Hour,
		UpdateInterval: 2 * time.Second,
	}
}

// Load reads config: defaults -> optional TOML file at path -> env vars
// (env always wins). Secrets (BOT_TOKEN, CHAT_ID) are env-only and never
// read from the file, so API keys never end up in a checked-in TOML.
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "bridge.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg struct {
			WorkDir               string  `toml:"work_dir"`
			Verbose               bool    `toml:"verbose"`
			Model                 string  `toml:"model"`
			MaxBudgetUSD          float64 `toml:"max_budget_usd"`
			SessionTimeoutSeconds int     `toml:"session_timeout_seconds"`
			UpdateIntervalSeconds float64 `toml:"update_interval_seconds"`
		}
		if err := toml.Unmarshal(data, &fileCfg); err == nil {
			if fileCfg.WorkDir != "" {
				cfg.WorkDir = fileCfg.WorkDir
			}
			if fileCfg.Verbose {
				cfg.Verbose = true
			}
			if fileCfg.Model != "" {
				cfg.Model = fileCfg.Model
			}
			if fileCfg.MaxBudgetUSD > 0 {
				cfg.MaxBudgetUSD = fileCfg.MaxBudgetUSD
			}
			if fileCfg.SessionTimeoutSeconds > 0 {
				cfg.SessionTimeout = time.Duration(fileCfg.SessionTimeoutSeconds) * time.Second
			}
			if fileCfg.UpdateIntervalSeconds > 0 {
				cfg.UpdateInterval = time.Duration(fileCfg.UpdateIntervalSeconds * float64(time.Second))
			}
		}
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("CHAT_ID"); v != "" {
		cfg.ChatID = v
	}
	if v := os.Getenv("WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("VERBOSE"); v != "" {
		cfg.Verbose = v == "1" || v == "true"
	}
	if v := os.Getenv("MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MAX_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MaxBudgetUSD = f
		}
	}
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.SessionTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("UPDATE_INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.UpdateInterval = time.Duration(f * float64(time.Second))
		}
	}

	return cfg
}

// Validate returns the list of validation errors; empty means valid.
func (c Config) Validate() []error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, &chatbridge.ErrConfig{Field: "BOT_TOKEN", Message: "is required"})
	}
	if c.ChatID == "" {
		errs = append(errs, &chatbridge.ErrConfig{Field: "CHAT_ID", Message: "is required"})
	}
	if fi, err := os.Stat(c.WorkDir); err != nil || !fi.IsDir() {
		errs = append(errs, &chatbridge.ErrConfig{Field: "WORK_DIR", Message: fmt.Sprintf("%q is not a directory", c.WorkDir)})
	}
	return errs
}
