package config

import (
	"fmt"
	"time"

	"github.com/rpattn/courtdata/internal/db"
	"github.com/spf13/viper"
)

// ImportConfig carries the pipeline tuning knobs.
type ImportConfig struct {
	Workers           int
	RetryBudget       int
	ProgressFlushRows int
	PreviewTTL        time.Duration
	PreviewRowCap     int
	SessionIdle       time.Duration
	AutoCreateCourts  bool
	AutoCreateTypes   bool
}

// ServerConfig carries the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// Config is the full application configuration.
type Config struct {
	Database db.Config
	Import   ImportConfig
	Server   ServerConfig
}

// DefaultImportConfig returns the pipeline defaults.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		Workers:           4,
		RetryBudget:       3,
		ProgressFlushRows: 25,
		PreviewTTL:        15 * time.Minute,
		PreviewRowCap:     10,
		SessionIdle:       30 * time.Minute,
		AutoCreateCourts:  false,
		AutoCreateTypes:   false,
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Import:   DefaultImportConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("COURTDATA")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("import.workers")
	v.BindEnv("import.retry_budget")
	v.BindEnv("server.addr")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("import.workers") {
		cfg.Import.Workers = v.GetInt("import.workers")
	}
	if v.IsSet("import.retry_budget") {
		cfg.Import.RetryBudget = v.GetInt("import.retry_budget")
	}
	if v.IsSet("import.progress_flush_rows") {
		cfg.Import.ProgressFlushRows = v.GetInt("import.progress_flush_rows")
	}
	if v.IsSet("import.preview_ttl") {
		cfg.Import.PreviewTTL = v.GetDuration("import.preview_ttl")
	}
	if v.IsSet("import.preview_row_cap") {
		cfg.Import.PreviewRowCap = v.GetInt("import.preview_row_cap")
	}
	if v.IsSet("import.session_idle") {
		cfg.Import.SessionIdle = v.GetDuration("import.session_idle")
	}
	if v.IsSet("import.auto_create_courts") {
		cfg.Import.AutoCreateCourts = v.GetBool("import.auto_create_courts")
	}
	if v.IsSet("import.auto_create_case_types") {
		cfg.Import.AutoCreateTypes = v.GetBool("import.auto_create_case_types")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	return cfg, nil
}
