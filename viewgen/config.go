package viewgen

import "fmt"

// Mode selects which views a cell group computation is for.
type Mode uint8

const (
	// ModeQueryViews computes cells for query views (store to conceptual).
	ModeQueryViews Mode = iota
	// ModeUpdateViews computes cells for update views (conceptual to store).
	ModeUpdateViews
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeQueryViews:
		return "query"
	case ModeUpdateViews:
		return "update"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode parses "query" or "update".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "query", "":
		return ModeQueryViews, nil
	case "update":
		return ModeUpdateViews, nil
	default:
		return 0, fmt.Errorf("viewgen: unknown mode %q; use query or update", s)
	}
}

// Config is the view generation configuration. It is a comparable value
// and part of the cell group cache key.
type Config struct {
	// GenerateViewsForEachType lists a type query view target for every
	// type a cell covers.
	GenerateViewsForEachType bool
	// GenerateUpdateViews enables cells in update mode. A container mapping
	// may still opt out through its own GenerateUpdateViews flag.
	GenerateUpdateViews bool
	// ValidateUpdateViews validates the mapping before computing update
	// view cells.
	ValidateUpdateViews bool
	// Mode selects query or update views.
	Mode Mode
}

// ConfigOption configures a Config.
type ConfigOption func(*Config) error

// NewConfig returns the default configuration (query views, update views
// enabled and validated) with opts applied.
//
// Example:
//
//	cfg, err := viewgen.NewConfig(
//	    viewgen.WithMode(viewgen.ModeUpdateViews),
//	    viewgen.WithViewsForEachType(),
//	)
func NewConfig(opts ...ConfigOption) (Config, error) {
	cfg := Config{
		GenerateUpdateViews: true,
		ValidateUpdateViews: true,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// WithMode sets the view mode.
func WithMode(m Mode) ConfigOption {
	return func(c *Config) error {
		if m != ModeQueryViews && m != ModeUpdateViews {
			return fmt.Errorf("viewgen: invalid mode %s", m)
		}
		c.Mode = m
		return nil
	}
}

// WithViewsForEachType enables per-type view targets.
func WithViewsForEachType() ConfigOption {
	return func(c *Config) error {
		c.GenerateViewsForEachType = true
		return nil
	}
}

// WithUpdateViews enables or disables update view cells.
func WithUpdateViews(enabled bool) ConfigOption {
	return func(c *Config) error {
		c.GenerateUpdateViews = enabled
		return nil
	}
}

// WithUpdateViewValidation enables or disables mapping validation in
// update mode.
func WithUpdateViewValidation(enabled bool) ConfigOption {
	return func(c *Config) error {
		c.ValidateUpdateViews = enabled
		return nil
	}
}
