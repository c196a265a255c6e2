// Package server wires together the dashboard subsystems and exposes the
// HTTP server. main() builds a Server, calls Run, done.
package server

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/SeanM743/PersonalWebsite-sub006/internal/audit"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/auth"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/config"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/metrics"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/users"
)

// Version info injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const auditMemoryLimit = 1000

// Server is the assembled dashboard backend.
type Server struct {
	cfg    config.Config
	logger *zap.Logger

	userStore  *users.Store
	auditStore *audit.Store

	codec      *auth.TokenCodec
	authSvc    *auth.Service
	authFilter *auth.Middleware
	policy     *auth.Policy
	limiter    *auth.RateLimiter

	metrics *metrics.Metrics
	sweeper *cron.Cron

	httpServer *http.Server
	startTime  time.Time
}

// New builds the server from configuration. Fails fast on a weak or
// missing signing key.
func New(cfg config.Config, logger *zap.Logger) (*Server, error) {
	key, err := cfg.DecodeSigningKey()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.ParseTokenTTL()
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewTokenCodec(key, ttl)
	if err != nil {
		return nil, err
	}

	userStore, err := users.NewStore(filepath.Join(cfg.DataDir, "users.db"))
	if err != nil {
		return nil, err
	}

	auditStore, err := audit.NewStore(filepath.Join(cfg.DataDir, "audit.db"), auditMemoryLimit)
	if err != nil {
		userStore.Close()
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		userStore:  userStore,
		auditStore: auditStore,
		codec:      codec,
		metrics:    metrics.New(),
		startTime:  time.Now().UTC(),
	}

	s.authSvc = auth.NewService(userStore, codec, logger.Named("auth"))
	s.authFilter = auth.NewMiddleware(codec, logger.Named("filter"))
	s.authFilter.SetRejectionRecorder(&rejectionRecorder{metrics: s.metrics, audit: auditStore})
	s.limiter = auth.NewRateLimiter(cfg.RateLimit.AttemptsPerMinute, time.Minute)
	s.policy = routePolicy()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// Request pipeline: metrics → authentication filter → authorization
	// policy → routes. The filter only shapes the context; the policy is
	// what rejects.
	var handler http.Handler = s.policy.Wrap(mux)
	handler = s.authFilter.Wrap(handler)
	handler = s.metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.sweeper = cron.New()
	retention := cfg.AuditRetention()
	if _, err := s.sweeper.AddFunc("@hourly", func() {
		n, err := s.auditStore.Sweep(retention)
		if err != nil {
			s.logger.Warn("audit sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("audit sweep", zap.Int("deleted", n))
		}
	}); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Bootstrap seeds the admin account when the user store is empty.
// Returns the generated password when one was created without a
// configured password, so main can log it once.
func (s *Server) Bootstrap() (created bool, password string, err error) {
	password = s.cfg.BootstrapAdminPassword
	generated := false
	if password == "" {
		password, err = generatePassword()
		if err != nil {
			return false, "", err
		}
		generated = true
	}

	created, err = s.userStore.Bootstrap(password)
	if err != nil {
		return false, "", err
	}
	if !created || !generated {
		return created, "", nil
	}
	return true, password, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.sweeper.Start()

	s.logger.Info("starting dashboard server",
		zap.String("addr", s.cfg.ListenAddr),
		zap.String("version", Version),
		zap.Duration("token_ttl", s.codec.TTL()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Close releases all resources.
func (s *Server) Close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.auditStore != nil {
		s.auditStore.Close()
	}
	if s.userStore != nil {
		s.userStore.Close()
	}
}

// rejectionRecorder fans token rejections out to metrics and the audit log.
type rejectionRecorder struct {
	metrics *metrics.Metrics
	audit   *audit.Store
}

func (r *rejectionRecorder) TokenRejected(kind string) {
	r.metrics.TokenRejected(kind)
	r.audit.Emit(audit.EventTokenRejected, "", "Bearer token rejected: "+kind)
}
