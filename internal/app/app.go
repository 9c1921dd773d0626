// Package app wires the service's components together: database pool,
// blob store, file content cache with its sweeper, resolver and the
// persistence stores. cmd/ builds an App and hands it to the API server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/quillchat/quill/internal/activity"
	"github.com/quillchat/quill/internal/appconfig"
	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/blob"
	"github.com/quillchat/quill/internal/chat"
	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/database"
	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/extract"
	"github.com/quillchat/quill/internal/filecache"
	"github.com/quillchat/quill/internal/filecontext"
	"github.com/quillchat/quill/internal/log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds every wired component for one running service instance.
type App struct {
	Config        *config.Config
	Logger        log.Logger
	Pool          *pgxpool.Pool
	Blob          *blob.Store
	Cache         *filecache.Store
	Resolver      *filecontext.Resolver
	Authenticator auth.Authenticator
	Chats         *chat.Store
	Documents     *document.Store
	AppConfig     *appconfig.Store
	Activity      *activity.Recorder

	sweeperCancel context.CancelFunc
}

// Setup wires all components. The returned App owns the database pool and
// the cache sweeper goroutine; callers must Close it.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	pool, err := database.NewPool(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	blobStore, err := blob.New(blob.Config{
		Endpoint:  cfg.BlobEndpoint,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Bucket:    cfg.BlobBucket,
		UseSSL:    cfg.BlobUseSSL,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	if err := blobStore.EnsureBucket(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring blob bucket: %w", err)
	}

	cache := filecache.New(cfg.CacheMaxEntries, logger)
	sweepCtx, cancel := context.WithCancel(context.Background())
	cache.StartSweeper(sweepCtx, cfg.CacheSweepInterval)

	extractor := extract.New(&http.Client{Timeout: extract.FetchTimeout}, logger)
	resolver, err := filecontext.New(cache, blobStore, extractor, logger)
	if err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	authenticator, err := auth.New(pool, logger)
	if err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}
	chats, err := chat.New(pool, logger)
	if err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("creating chat store: %w", err)
	}
	documents, err := document.New(pool, logger)
	if err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("creating document store: %w", err)
	}
	appConfig, err := appconfig.New(pool, logger)
	if err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("creating app config store: %w", err)
	}
	recorder, err := activity.New(pool, logger)
	if err != nil {
		cancel()
		pool.Close()
		return nil, fmt.Errorf("creating activity recorder: %w", err)
	}

	logger.Info("application wired",
		"listen_addr", cfg.ListenAddr,
		"cache_max_entries", cfg.CacheMaxEntries,
		"cache_sweep_interval", cfg.CacheSweepInterval)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		Blob:          blobStore,
		Cache:         cache,
		Resolver:      resolver,
		Authenticator: authenticator,
		Chats:         chats,
		Documents:     documents,
		AppConfig:     appConfig,
		Activity:      recorder,
		sweeperCancel: cancel,
	}, nil
}

// Close stops the sweeper and releases the database pool.
func (a *App) Close() {
	if a.sweeperCancel != nil {
		a.sweeperCancel()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
