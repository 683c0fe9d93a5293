// Package httpapi exposes the user and session operations over HTTP.
//
// Responses use a uniform JSON envelope. Credentials are delivered both in
// the body and as HttpOnly cookies; protected routes accept either the
// accessToken cookie or an "Authorization: Bearer" header.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/logging"
	"github.com/dmitrijs2005/gophtube/internal/server/metrics"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"github.com/dmitrijs2005/gophtube/internal/server/services"
)

// Sessions is the credential side of the API.
type Sessions interface {
	Login(ctx context.Context, userName, email, password string) (*models.User, *services.TokenPair, error)
	Rotate(ctx context.Context, presented string) (*services.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
	Authenticate(token string) (string, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Users is the account side of the API.
type Users interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateAvatar(ctx context.Context, userID, localPath string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.User, error)
}

// Config tunes the HTTP surface.
type Config struct {
	SecureCookies      bool
	UploadDir          string
	MaxUploadBytes     int64
	RateLimitPerSecond int
	RateLimitBurst     int
	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

const maxJSONBytes = 1 << 20

type API struct {
	mux      *http.ServeMux
	sessions Sessions
	users    Users
	cfg      Config
	log      logging.Logger
	metrics  *metrics.Metrics
	limiter  *ipLimiter
}

// New wires the routes. m may be nil, in which case /metrics is not served.
func New(sessions Sessions, users Users, cfg Config, log logging.Logger, m *metrics.Metrics) *API {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	a := &API{
		mux:      http.NewServeMux(),
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		limiter:  newIPLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	a.routes()
	return a
}

func (a *API) routes() {
	const base = "/api/v1/users/"

	a.mux.HandleFunc("GET /api/v1/healthcheck", a.healthcheck)
	if a.metrics != nil {
		a.mux.Handle("GET /metrics", a.metrics.Handler())
	}

	a.mux.Handle("POST "+base+"register", a.rateLimit(a.maxBytes(a.cfg.MaxUploadBytes, http.HandlerFunc(a.register))))
	a.mux.Handle("POST "+base+"login", a.rateLimit(a.maxBytes(maxJSONBytes, http.HandlerFunc(a.login))))
	a.mux.Handle("POST "+base+"refresh-token", a.rateLimit(a.maxBytes(maxJSONBytes, http.HandlerFunc(a.refreshToken))))

	a.mux.Handle("POST "+base+"logout", a.guard(http.HandlerFunc(a.logout)))
	a.mux.Handle("POST "+base+"change-password", a.guard(a.maxBytes(maxJSONBytes, http.HandlerFunc(a.changePassword))))
	a.mux.Handle("GET "+base+"current-user", a.guard(http.HandlerFunc(a.currentUser)))
	a.mux.Handle("PATCH "+base+"update-account", a.guard(a.maxBytes(maxJSONBytes, http.HandlerFunc(a.updateAccount))))
	a.mux.Handle("PATCH "+base+"avatar", a.guard(a.maxBytes(a.cfg.MaxUploadBytes, http.HandlerFunc(a.updateAvatar))))
	a.mux.Handle("PATCH "+base+"cover-image", a.guard(a.maxBytes(a.cfg.MaxUploadBytes, http.HandlerFunc(a.updateCoverImage))))
}

// Handler returns the full middleware chain. Instrument wraps the mux
// directly so it can read the matched pattern.
func (a *API) Handler() http.Handler {
	return a.requestID(a.logging(a.metrics.Instrument(a.mux)))
}

// Run serves the API on addr until ctx is cancelled.
func (a *API) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	a.log.Info(ctx, "starting HTTP server", "address", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}
