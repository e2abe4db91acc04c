package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/syssam/csmap/viewgen"
)

// Config holds the CLI configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Views    ViewsConfig    `mapstructure:"views"`
	Database DatabaseConfig `mapstructure:"database"`
	Pregen   PregenConfig   `mapstructure:"pregen"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ViewsConfig is the cell group computation configuration.
type ViewsConfig struct {
	Mode                string `mapstructure:"mode"`
	ViewsForEachType    bool   `mapstructure:"views_for_each_type"`
	UpdateViews         bool   `mapstructure:"update_views"`
	ValidateUpdateViews bool   `mapstructure:"validate_update_views"`
	Workers             int    `mapstructure:"workers"`
}

// DatabaseConfig locates a live database to inspect.
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
	Schema  string `mapstructure:"schema"`
}

// PregenConfig configures generated view files.
type PregenConfig struct {
	Package string `mapstructure:"package"`
	Output  string `mapstructure:"output"`
}

// loadConfig reads the configuration file (if any) and CSMAP_ environment
// variables into v.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".csmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("CSMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("views.mode", viewgen.ModeQueryViews.String())
	v.SetDefault("views.views_for_each_type", false)
	v.SetDefault("views.update_views", true)
	v.SetDefault("views.validate_update_views", true)
	v.SetDefault("views.workers", 0)

	v.SetDefault("database.dialect", "sqlite3")

	v.SetDefault("pregen.package", "views")
	v.SetDefault("pregen.output", "views_gen.go")
}

// viewConfig converts the views section into a cell group configuration.
func (c *Config) viewConfig() (viewgen.Config, error) {
	mode, err := viewgen.ParseMode(c.Views.Mode)
	if err != nil {
		return viewgen.Config{}, err
	}
	opts := []viewgen.ConfigOption{
		viewgen.WithMode(mode),
		viewgen.WithUpdateViews(c.Views.UpdateViews),
		viewgen.WithUpdateViewValidation(c.Views.ValidateUpdateViews),
	}
	if c.Views.ViewsForEachType {
		opts = append(opts, viewgen.WithViewsForEachType())
	}
	return viewgen.NewConfig(opts...)
}

// newLogger returns a logger writing to w per the logging section.
func (c *Config) newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Logging.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
}
