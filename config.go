package notepress

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	urlkit "github.com/goliatone/go-urlkit"
)

// DatabaseConfig selects the bun backend. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// LoggingConfig configures the go-logger provider.
type LoggingConfig struct {
	Level     string   `json:"level"`
	Format    string   `json:"format"`
	AddSource bool     `json:"add_source"`
	Focus     []string `json:"focus,omitempty"`
}

// RendererConfig configures the external HTML export tool.
type RendererConfig struct {
	Command   string        `json:"command"`
	Args      []string      `json:"args,omitempty"`
	Timeout   time.Duration `json:"timeout"`
	MaxOutput int           `json:"max_output"`
}

// SyncConfig bounds the sync pipeline.
type SyncConfig struct {
	// CloneTimeout bounds the git checkout; AttemptTimeout bounds one whole
	// clone-render-ingest attempt.
	CloneTimeout   time.Duration `json:"clone_timeout"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
	// MaxTreeDepth caps block tree traversal; zero keeps the default.
	MaxTreeDepth int `json:"max_tree_depth,omitempty"`
}

// LinksConfig controls the URL layout of page and tag links emitted by the
// rewriter. Routes is a go-urlkit route configuration; when nil the default
// layout applies (/:workspace/:slug and /:workspace/tags/:tag). Group names
// the route group to resolve against within Routes.
type LinksConfig struct {
	Routes *urlkit.Config `json:"routes,omitempty"`
	Group  string         `json:"group,omitempty"`
}

// Config is the module configuration.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Renderer RendererConfig `json:"renderer"`
	Sync     SyncConfig     `json:"sync"`
	Links    LinksConfig    `json:"links"`
}

// DefaultConfig returns a configuration suitable for local development:
// on-disk sqlite, json logging, and conservative pipeline timeouts.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:notepress.db?cache=shared&_fk=1",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Renderer: RendererConfig{
			Timeout:   60 * time.Second,
			MaxOutput: 1 << 20,
		},
		Sync: SyncConfig{
			CloneTimeout:   2 * time.Minute,
			AttemptTimeout: 10 * time.Minute,
		},
	}
}

// Validate checks the configuration at the boundary. A missing renderer
// command is fatal here rather than at first sync.
func (c Config) Validate() error {
	return validation.Errors{
		"database.driver":  validation.Validate(c.Database.Driver, validation.Required, validation.In("sqlite", "postgres")),
		"database.dsn":     validation.Validate(c.Database.DSN, validation.Required),
		"renderer.command": validation.Validate(c.Renderer.Command, validation.Required),
	}.Filter()
}
