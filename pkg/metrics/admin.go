package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultShutdownTimeout bounds the graceful shutdown of the admin server.
const DefaultShutdownTimeout = 5 * time.Second

// AdminConfig configures an Admin server.
type AdminConfig struct {
	// Collector provides metrics and the session list. Required.
	Collector *Collector

	// Ready, if set, is consulted by /healthz. A non-nil error reports the
	// service as unavailable.
	Ready func() error

	// ShutdownTimeout bounds the graceful shutdown. Default: DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Admin serves /metrics, /healthz and /sessions.
type Admin struct {
	config  AdminConfig
	started time.Time
	router  chi.Router
	log     logging.LeveledLogger
}

// sessionView is the JSON form of a session in /sessions.
type sessionView struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	Started    time.Time `json:"started"`
	Authorized bool      `json:"authorized"`
}

type healthView struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Uptime   string `json:"uptime"`
	Sessions int    `json:"sessions"`
}

// NewAdmin creates the admin server.
func NewAdmin(config AdminConfig) (*Admin, error) {
	if config.Collector == nil {
		return nil, ErrNoCollector
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	a := &Admin{
		config:  config,
		started: time.Now(),
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("admin")
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(config.Collector.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", a.getHealth)
	r.Get("/sessions", a.getSessions)
	a.router = r
	return a, nil
}

// Handler returns the HTTP handler.
func (a *Admin) Handler() http.Handler {
	return a.router
}

func (a *Admin) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthView{
		Status:   "ok",
		Uptime:   uptime(a.started),
		Sessions: len(a.config.Collector.Sessions()),
	}
	if a.config.Ready != nil {
		if err := a.config.Ready(); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			render.Status(r, http.StatusServiceUnavailable)
		}
	}
	render.JSON(w, r, resp)
}

func (a *Admin) getSessions(w http.ResponseWriter, r *http.Request) {
	infos := a.config.Collector.Sessions()
	out := make([]sessionView, 0, len(infos))
	for _, info := range infos {
		out = append(out, sessionView{
			ID:         info.ID,
			Channel:    info.Channel.String(),
			Started:    info.Started,
			Authorized: info.Authorized,
		})
	}
	render.JSON(w, r, out)
}

func uptime(since time.Time) string {
	return time.Since(since).Truncate(time.Second).String()
}

// Serve serves HTTP on ln until ctx is cancelled, then shuts down gracefully.
func (a *Admin) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	if a.log != nil {
		a.log.Infof("admin endpoint on http://%s", ln.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
