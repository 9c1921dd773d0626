// Package api exposes the service over HTTP: file retrieval through the
// content cache, file upload and deletion, chat and document CRUD, and
// admin endpoints for runtime config, audit trail and cache stats.
//
// Handlers depend on small consumer-side interfaces so tests run against
// in-memory fakes; the concrete stores satisfy them in production wiring.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/log"
)

// Server timeouts.
const (
	ReadTimeout     = 30 * time.Second
	WriteTimeout    = 60 * time.Second
	IdleTimeout     = 120 * time.Second
	ShutdownTimeout = 10 * time.Second
)

// ServerConfig contains everything needed to build the API server.
type ServerConfig struct {
	Logger        log.Logger
	Authenticator auth.Authenticator // Required
	Resolver      FileResolver       // Required
	Blob          FileBlobStore      // Required
	Cache         CacheInspector     // Required
	Chats         ChatStore          // Required
	Documents     DocumentStore      // Required
	Config        ConfigStore        // Required
	Activity      ActivityRecorder   // Required
	Pool          *pgxpool.Pool      // Optional: nil disables pool stats in /ready
	RetrieveRate  float64            // Retrieve tokens per second per user (0 = default 2)
	RetrieveBurst int                // Retrieve burst per user (0 = default 10)
}

// ActivityRecorder combines audit recording and admin listing.
type ActivityRecorder interface {
	ActivityLog
	ActivityLister
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Resolver == nil || cfg.Blob == nil || cfg.Cache == nil {
		return nil, errors.New("resolver, blob store and cache are required")
	}
	if cfg.Chats == nil || cfg.Documents == nil || cfg.Config == nil || cfg.Activity == nil {
		return nil, errors.New("chat, document, config and activity stores are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	rps := cfg.RetrieveRate
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.RetrieveBurst
	if burst <= 0 {
		burst = 10
	}

	fh := &filesHandler{
		resolver: cfg.Resolver,
		blob:     cfg.Blob,
		cache:    cfg.Cache,
		activity: cfg.Activity,
		limiter:  newRateLimiter(rps, burst),
		logger:   logger,
	}
	ch := &chatsHandler{store: cfg.Chats, activity: cfg.Activity, logger: logger}
	dh := &documentsHandler{store: cfg.Documents, logger: logger}
	ah := &adminHandler{config: cfg.Config, activity: cfg.Activity, recorder: cfg.Activity, logger: logger}

	mux := http.NewServeMux()

	// Files
	mux.HandleFunc("POST /api/files/retrieve", fh.retrieve)
	mux.HandleFunc("DELETE /api/files", fh.delete)
	mux.HandleFunc("POST /api/files/upload", fh.upload)
	mux.HandleFunc("GET /api/files/cache/stats", requireAdmin(logger, fh.cacheStats))

	// Chats
	mux.HandleFunc("POST /api/chats", ch.create)
	mux.HandleFunc("GET /api/chats", ch.list)
	mux.HandleFunc("GET /api/chats/{id}", ch.get)
	mux.HandleFunc("PATCH /api/chats/{id}", ch.rename)
	mux.HandleFunc("DELETE /api/chats/{id}", ch.delete)
	mux.HandleFunc("POST /api/chats/{id}/messages", ch.addMessages)
	mux.HandleFunc("GET /api/chats/{id}/messages", ch.messages)
	mux.HandleFunc("GET /api/chats/{id}/documents", dh.listByChat)

	// Documents
	mux.HandleFunc("POST /api/documents", dh.save)
	mux.HandleFunc("GET /api/documents/{id}", dh.get)
	mux.HandleFunc("DELETE /api/documents/{id}", dh.delete)

	// Admin
	mux.HandleFunc("GET /api/admin/config", requireAdmin(logger, ah.listConfig))
	mux.HandleFunc("GET /api/admin/config/{key}", requireAdmin(logger, ah.getConfig))
	mux.HandleFunc("PUT /api/admin/config/{key}", requireAdmin(logger, ah.setConfig))
	mux.HandleFunc("DELETE /api/admin/config/{key}", requireAdmin(logger, ah.deleteConfig))
	mux.HandleFunc("GET /api/admin/activity", requireAdmin(logger, ah.listActivity))

	// Middleware stack (outermost first): Recovery → Logging → Auth → Routes
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Authenticator, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass authentication.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
