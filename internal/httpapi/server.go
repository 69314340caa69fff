// Package httpapi is the engine's HTTP surface: the consultation turn
// endpoint, conversation memory, the ticket lifecycle routes, dispatch, and
// the SSE event stream.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/williamfrack18-alt/anmar-engine/internal/advisor"
	"github.com/williamfrack18-alt/anmar-engine/internal/capabilities"
	"github.com/williamfrack18-alt/anmar-engine/internal/dispatch"
	"github.com/williamfrack18-alt/anmar-engine/internal/store"
	"github.com/williamfrack18-alt/anmar-engine/internal/store/postgres"
	"github.com/williamfrack18-alt/anmar-engine/internal/ticket"
	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

// defaultMaxRequestBodyBytes is the default limit for request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (frontend dev server on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string // if set, require X-API-Key header or query api_key
	DBDriver       string // "sqlite" (default) or "postgres"
	DBURL          string // for postgres: connection string (or set DATABASE_URL env)
	Engineers      []string
	QuotaMax       int // max active tickets per client; 0 disables the gate
	Advisor        advisor.Config
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server, SSE hub, store, and the engine components.
type App struct {
	Server       *http.Server
	Hub          *SSEHub
	Store        store.Store
	Tickets      *ticket.Manager
	Dispatch     *dispatch.Balancer
	Advisor      *advisor.Client
	Capabilities *capabilities.Registry // optional; loaded from env (e.g. SLACK_WEBHOOK_URL)
	Quota        capabilities.Quota
	Home         string

	convLocks *keyedLocks
	logger    *slog.Logger
}

// NewApp creates the HTTP app (server, hub, store, engine components) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()
	logger := slog.Default()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	manager, err := ticket.NewManager(st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engineers := opts.Engineers
	if len(engineers) == 0 {
		engineers = []string{"Maria P.", "Juan"}
	}

	reg := capabilities.NewRegistry()
	if u := os.Getenv("SLACK_WEBHOOK_URL"); u != "" {
		reg.Register("slack", capabilities.SlackWebhook{WebhookURL: u})
	}
	var quota capabilities.Quota = capabilities.OpenQuota{}
	if opts.QuotaMax > 0 {
		quota = capabilities.ActiveTicketQuota{Store: st, Max: opts.QuotaMax}
	}

	app := &App{
		Hub:          hub,
		Store:        st,
		Tickets:      manager,
		Dispatch:     dispatch.NewBalancer(engineers, st, manager, logger),
		Advisor:      advisor.New(opts.Advisor, logger),
		Capabilities: reg,
		Quota:        quota,
		Home:         opts.Home,
		convLocks:    newKeyedLocks(),
		logger:       logger,
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", app.handlePlainMetrics)
	}

	mux.HandleFunc("/stream", hub.Handler())

	mux.HandleFunc("/api/turn", methodOnly(http.MethodPost, app.handleTurn))
	mux.HandleFunc("/api/memory", methodOnly(http.MethodGet, app.handleGetMemory))
	mux.HandleFunc("/api/memory/reset", methodOnly(http.MethodPost, app.handleResetMemory))
	mux.HandleFunc("/api/history", methodOnly(http.MethodGet, app.handleHistory))

	mux.HandleFunc("/api/tickets", app.handleTickets)
	mux.HandleFunc("/api/tickets/accept", methodOnly(http.MethodPost, app.handleAcceptTicket))
	mux.HandleFunc("/api/tickets/deliver", methodOnly(http.MethodPost, app.handleDeliverTicket))
	mux.HandleFunc("/api/tickets/update", methodOnly(http.MethodPost, app.handleUpdateTicket))
	mux.HandleFunc("/api/queue", methodOnly(http.MethodGet, app.handleQueue))
	mux.HandleFunc("/api/dispatch/auto-assign", methodOnly(http.MethodPost, app.handleAutoAssign))
	mux.HandleFunc("/api/projects/", methodOnly(http.MethodGet, app.handleProjectStatus))

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "anmar-engine")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	app.Server = srv
	return app, nil
}

// handlePlainMetrics is the non-OTel fallback: a single queue gauge.
func (a *App) handlePlainMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	tickets, _ := a.Store.ListTickets(r.Context())
	counts := map[string]int{}
	for _, t := range tickets {
		counts[ticket.NormalizeStatus(t.Status)]++
	}
	_, _ = fmt.Fprintf(w, "# TYPE anmar_tickets_total gauge\n")
	for _, status := range []string{
		models.StatusPending, models.StatusAccepted, models.StatusDeveloping,
		models.StatusBlocked, models.StatusCompleted,
	} {
		_, _ = fmt.Fprintf(w, "anmar_tickets_total{status=%q} %d\n", status, counts[status])
	}
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
