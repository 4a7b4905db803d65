package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"clipstream.dev/internal/auth"
	"clipstream.dev/internal/obs"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options configures the HTTP layer.
type Options struct {
	Logger        *zap.Logger
	Cookies       CookieConfig
	Version       string
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
	CORSOrigins   []string
}

// API is the HTTP layer over the session service.
type API struct {
	sessions   *auth.Service
	readyProbe ReadyProbe
	router     chi.Router
	log        *zap.Logger
	cookies    CookieConfig
	version    string
}

// New wires routes and middleware and returns the API.
func New(sessions *auth.Service, rp ReadyProbe, opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{
		sessions:   sessions,
		readyProbe: rp,
		log:        log,
		cookies:    opts.Cookies.withDefaults(),
		version:    opts.Version,
	}
	a.router = a.buildRouter(opts)
	return a
}

func (a *API) buildRouter(opts Options) chi.Router {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	burst, perSec := opts.RateBurst, opts.RatePerSecond
	if burst <= 0 {
		burst = 20
	}
	if perSec <= 0 {
		perSec = 10
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(a.log))
	r.Use(SecurityHeaders)
	r.Use(CORS(opts.CORSOrigins))
	r.Use(MaxBodyBytes(maxBody))
	r.Use(RateLimit(burst, perSec))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/refresh-token", a.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)
			r.Post("/logout", a.handleLogout)
			r.Get("/current-user", a.handleCurrentUser)
			r.Post("/change-password", a.handleChangePassword)
			r.Patch("/update-account", a.handleUpdateAccount)
		})
	})

	return r
}

// Handler returns the root handler wrapped with metric instrumentation.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}
