// Package notepress publishes a git-hosted outline notebook as a persisted,
// navigable content graph: it clones the workspace repository, renders and
// rewrites its markdown, and serves reassembled block trees per page.
package notepress

import (
	"database/sql"
	"fmt"
	nethttp "net/http"

	"github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"

	_ "github.com/mattn/go-sqlite3"

	"github.com/notepress/notepress/graph"
	"github.com/notepress/notepress/ingest"
	"github.com/notepress/notepress/internal/gitrepo"
	notehttp "github.com/notepress/notepress/internal/http"
	"github.com/notepress/notepress/internal/logging"
	"github.com/notepress/notepress/internal/markup"
	"github.com/notepress/notepress/internal/logging/gologger"
	"github.com/notepress/notepress/internal/render"
	"github.com/notepress/notepress/pkg/interfaces"
	"github.com/notepress/notepress/sync"
)

// Module wires the full pipeline: stores, renderer adapter, assembler,
// orchestrator, traversal service, and the webhook endpoint.
type Module struct {
	cfg      Config
	db       *bun.DB
	provider interfaces.LoggerProvider

	Nodes       graph.NodeStore
	Trees       *graph.TreeService
	Ingestor    *ingest.Service
	Syncs       *sync.Service
	Deployments sync.DeploymentStore
	Webhook     nethttp.Handler
}

type options struct {
	db           *bun.DB
	provider     interfaces.LoggerProvider
	blobs        interfaces.BlobStore
	blockCache   interfaces.BlockCache
	cacheService cache.CacheService
	serializer   cache.KeySerializer
}

// Option customises module construction.
type Option func(*options)

// WithDB supplies an externally managed bun DB instead of opening one from
// the database configuration.
func WithDB(db *bun.DB) Option {
	return func(o *options) { o.db = db }
}

// WithLoggerProvider supplies the logger provider; by default a go-logger
// provider is built from the logging configuration.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithBlobStore enables asset uploads during ingestion.
func WithBlobStore(blobs interfaces.BlobStore) Option {
	return func(o *options) { o.blobs = blobs }
}

// WithBlockCache enables the fast block HTML cache for ingestion warm-up and
// page-view reads.
func WithBlockCache(blockCache interfaces.BlockCache) Option {
	return func(o *options) { o.blockCache = blockCache }
}

// WithRepositoryCache wraps node repository reads in go-repository-cache.
func WithRepositoryCache(service cache.CacheService, serializer cache.KeySerializer) Option {
	return func(o *options) {
		o.cacheService = service
		o.serializer = serializer
	}
}

// New validates the configuration and wires the module.
func New(cfg Config, opts ...Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("notepress: invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db := o.db
	if db == nil {
		opened, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		db = opened
	}

	provider := o.provider
	if provider == nil {
		built, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.AddSource,
			Focus:     cfg.Logging.Focus,
		})
		if err != nil {
			return nil, err
		}
		provider = built
	}

	nodes := graph.NewBunNodeStoreWithCache(db, o.cacheService, o.serializer)

	runner := render.NewRunner(render.Config{
		Command:   cfg.Renderer.Command,
		Args:      cfg.Renderer.Args,
		Timeout:   cfg.Renderer.Timeout,
		MaxOutput: cfg.Renderer.MaxOutput,
	}, logging.RenderLogger(provider))

	ingestor, err := ingest.New(ingest.Config{
		Nodes:    nodes,
		Renderer: runner,
		Blobs:    o.blobs,
		Cache:    o.blockCache,
		Links:    markup.NewLinks(cfg.Links.Routes, cfg.Links.Group),
		Logger:   logging.IngestLogger(provider),
	})
	if err != nil {
		return nil, err
	}

	syncLogger := logging.SyncLogger(provider)
	cloner := gitrepo.NewCloner(gitrepo.Config{Timeout: cfg.Sync.CloneTimeout}, syncLogger)
	deployments := sync.NewBunDeploymentStore(db)

	syncs, err := sync.NewService(sync.Config{
		Repos:       sync.NewBunRepositoryStore(db),
		Deployments: deployments,
		Cloner:      cloner,
		Ingestor:    ingestor,
		Logger:      syncLogger,
		Timeout:     cfg.Sync.AttemptTimeout,
	})
	if err != nil {
		return nil, err
	}

	trees := graph.NewTreeService(graph.TreeServiceConfig{
		Nodes:    nodes,
		Cache:    o.blockCache,
		Logger:   logging.GraphLogger(provider),
		MaxDepth: cfg.Sync.MaxTreeDepth,
	})

	return &Module{
		cfg:         cfg,
		db:          db,
		provider:    provider,
		Nodes:       nodes,
		Trees:       trees,
		Ingestor:    ingestor,
		Syncs:       syncs,
		Deployments: deployments,
		Webhook:     notehttp.NewWebhookHandler(syncs, syncLogger),
	}, nil
}

// DB exposes the underlying bun DB, mainly for migrations.
func (m *Module) DB() *bun.DB {
	return m.db
}

// Close releases the database handle.
func (m *Module) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

func openDatabase(cfg DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		sqldb, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("notepress: open sqlite: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("notepress: unsupported database driver %q", cfg.Driver)
	}
}
