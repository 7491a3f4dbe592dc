package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/teemow/resender/internal/config"
	"github.com/teemow/resender/internal/exclusion"
	"github.com/teemow/resender/internal/gmail"
	"github.com/teemow/resender/internal/google"
	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/logging"
)

// ServerContext holds the shared state of the MCP server: settings, the
// exclusion list and a lazily created Gmail client.
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         *config.Config
	tokens      google.TokenProvider
	exclusions  *exclusion.Store
	gmailClient *gmail.Client
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      logging.Logger
	mu          sync.RWMutex
	shutdown    bool
}

// NewServerContext loads the exclusion list named by cfg. The Gmail client
// is created on first use so the server starts without a token.
func NewServerContext(ctx context.Context, cfg *config.Config, tokens google.TokenProvider) (*ServerContext, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	store, err := exclusion.Load(cfg.ExclusionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load exclusion list: %w", err)
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		cfg:        cfg,
		tokens:     tokens,
		exclusions: store,
		logger:     logging.DefaultLogger(),
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the run settings.
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// Exclusions returns the exclusion list.
func (sc *ServerContext) Exclusions() *exclusion.Store {
	return sc.exclusions
}

// HasToken reports whether an OAuth token is available.
func (sc *ServerContext) HasToken() bool {
	return sc.tokens != nil && sc.tokens.HasToken()
}

// GmailClient returns the Gmail client, creating and caching it on first
// use.
func (sc *ServerContext) GmailClient() (*gmail.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.gmailClient != nil {
		return sc.gmailClient, nil
	}
	if sc.tokens == nil || !sc.tokens.HasToken() {
		return nil, fmt.Errorf("%w: run 'resender auth' first", google.ErrNoToken)
	}

	httpClient, err := sc.tokens.HTTPClient(sc.ctx)
	if err != nil {
		return nil, err
	}

	client, err := gmail.NewClient(sc.ctx, httpClient,
		gmail.WithMetrics(sc.metrics),
		gmail.WithLogger(sc.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}

	sc.gmailClient = client
	return client, nil
}

// CurrentGmailClient returns the Gmail client if one was created.
func (sc *ServerContext) CurrentGmailClient() *gmail.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.gmailClient
}

// SetLogger sets the logger passed to the Gmail client.
func (sc *ServerContext) SetLogger(logger logging.Logger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if logger != nil {
		sc.logger = logger
	}
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() logging.Logger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.logger
}

// SetMetrics sets the metrics recorder used by tools and the Gmail client.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder (may be nil)
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger for tool invocations.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger (may be nil)
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
