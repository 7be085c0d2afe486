// Package api exposes splits and group assignment over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/sprida/internal/audit"
	"github.com/TimurManjosov/sprida/internal/auth"
	"github.com/TimurManjosov/sprida/internal/logging"
	"github.com/TimurManjosov/sprida/internal/snapshot"
	"github.com/TimurManjosov/sprida/internal/store"
	"github.com/TimurManjosov/sprida/internal/telemetry"
	"github.com/TimurManjosov/sprida/internal/webhook"
)

const requestTimeout = 5 * time.Second

// AuditLogger receives a record of every split change and rejected admin call.
type AuditLogger interface {
	Log(event audit.Event)
}

// WebhookDispatcher receives an event for every split change.
type WebhookDispatcher interface {
	Dispatch(event webhook.Event)
}

// Server serves one environment of a split store.
type Server struct {
	store     store.Store
	env       string
	auth      *auth.Authenticator
	apiKeys   []auth.Key
	logger    zerolog.Logger
	rateLimit int // requests per minute per IP, 0 disables
	audit     AuditLogger
	webhooks  WebhookDispatcher

	rebuildMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access logs and background errors.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit limits each client IP to perMinute requests per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithAPIKeys accepts the given bcrypt-hashed keys next to the admin key.
func WithAPIKeys(keys []auth.Key) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// WithAudit records split changes with a.
func WithAudit(a AuditLogger) Option {
	return func(s *Server) { s.audit = a }
}

// WithWebhooks notifies d of split changes.
func WithWebhooks(d WebhookDispatcher) Option {
	return func(s *Server) { s.webhooks = d }
}

func NewServer(st store.Store, env, adminKey string, opts ...Option) *Server {
	s := &Server{store: st, env: env, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.auth = auth.NewAuthenticator(adminKey, s.apiKeys)
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(logging.AccessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware)
	if s.rateLimit > 0 {
		r.Use(httprate.Limit(s.rateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(RateLimitedError),
		))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// long-lived, so outside the request timeout
	r.Get("/v1/splits/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/v1/splits", s.handleListSplits)
		r.Get("/v1/splits/{key}", s.handleGetSplit)
		r.Put("/v1/splits/{key}", s.authAdmin(s.handleUpsertSplit))
		r.Delete("/v1/splits/{key}", s.authAdmin(s.handleDeleteSplit))

		r.Post("/v1/assign", s.handleAssign)
		r.Get("/v1/assign", s.handleAssignGET)
		r.Get("/v1/assign/{key}", s.handleAssignOne)
		r.Post("/v1/groups", s.handleGroups)
	})

	return r
}

// RebuildSnapshot loads the splits of the served environment and swaps the
// atomic snapshot. Splits that no longer compile are logged and left out.
func (s *Server) RebuildSnapshot(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	splits, err := s.store.ListSplits(ctx, s.env)
	if err != nil {
		return err
	}

	snap, buildErr := snapshot.Build(splits)
	if buildErr != nil {
		s.logger.Warn().Err(buildErr).Str("env", s.env).Msg("skipped invalid splits")
	}
	snapshot.Update(snap)
	telemetry.SnapshotSplits.Set(float64(len(snap.Splits)))
	return nil
}
