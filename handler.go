package quotes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	cachecontrol "github.com/always-cache/quotes/pkg/cache-control"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// DefaultHitMaxAge is how long clients may reuse a quote served from a fresh snapshot.
const DefaultHitMaxAge = 30 * time.Second

type HandlerConfig struct {
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// max-age sent with quotes served from a fresh snapshot.
	HitMaxAge time.Duration
	// Value of Access-Control-Allow-Origin. Defaults to "*".
	AllowOrigin string
	// Clock for the cache. Defaults to time.Now.
	Now func() time.Time
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthBody struct {
	Snapshot SnapshotInfo `json:"snapshot"`
	Stats    Stats        `json:"stats"`
}

type handler struct {
	cache       *QuoteCache
	hitMaxAge   time.Duration
	allowOrigin string
	now         func() time.Time
}

// NewHandler returns the HTTP API serving quotes from the given cache.
//
//	GET     /api, /api/quotes    one random quote (?warmup=true forces a reload)
//	OPTIONS /api, /api/quotes    CORS preflight
//	GET     /healthz             snapshot info and counters
func NewHandler(cache *QuoteCache, config HandlerConfig) http.Handler {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "http").Logger()

	h := &handler{
		cache:       cache,
		hitMaxAge:   config.HitMaxAge,
		allowOrigin: config.AllowOrigin,
		now:         config.Now,
	}
	if h.hitMaxAge <= 0 {
		h.hitMaxAge = DefaultHitMaxAge
	}
	if h.allowOrigin == "" {
		h.allowOrigin = "*"
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(h.commonHeaders)
	r.Use(recoverer)

	r.MethodNotAllowed(methodNotAllowed)
	r.NotFound(notFound)
	for _, path := range []string{"/api", "/api/quotes"} {
		r.Get(path, h.serveQuote)
		r.Options(path, preflight)
	}
	r.Get("/healthz", h.serveHealth)
	return r
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request")
}

// commonHeaders sets the CORS and security headers every response carries.
func (h *handler) commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", h.allowOrigin)
		header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("X-XSS-Protection", "1; mode=block")
		header.Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into the generic error response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).WithLevel(zerolog.PanicLevel).Interface("error", rec).Msg("Panic while serving request")
				writeUnavailable(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *handler) serveQuote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.URL.Query().Get("warmup") == "true" {
		h.serveWarmup(w, r)
		return
	}

	now := h.now()
	q, status, err := h.cache.GetQuote(r.Context(), now)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not serve quote")
		writeUnavailable(w, r)
		return
	}
	snapshot := h.cache.Snapshot(now)
	q.ResponseTime = fmt.Sprintf("%.3fms", float64(time.Since(start))/float64(time.Millisecond))

	maxAge := time.Duration(0)
	if status == StatusHit {
		maxAge = h.hitMaxAge
	}
	cacheStatus := CacheStatusFor(status)
	header := w.Header()
	header.Set("Cache-Control", cachecontrol.Public(maxAge).String())
	header.Set("Cache-Status", cacheStatus.String())
	header.Set("X-Cache-Status", string(status))
	header.Set("X-Total-Quotes", strconv.Itoa(snapshot.Quotes))
	header.Set("X-Cache-Age", now.Sub(snapshot.FetchedAt).String())
	header.Set("X-Response-Time", q.ResponseTime)
	header.Set("Vary", "Accept-Encoding")

	hlog.FromRequest(r).Trace().Str("id", q.ID).Str("status", string(status)).Msg("Serving quote")
	writeJSON(w, r, http.StatusOK, q)
}

func (h *handler) serveWarmup(w http.ResponseWriter, r *http.Request) {
	res, err := h.cache.Warmup(r.Context(), h.now())
	w.Header().Set("Cache-Control", cachecontrol.Public(0).String())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Warmup failed")
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "Warmup failed"})
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	body := healthBody{
		Snapshot: h.cache.Snapshot(now),
		Stats:    h.cache.Stats(),
	}
	w.Header().Set("Cache-Control", cachecontrol.NoStore().String())
	writeJSON(w, r, http.StatusOK, body)
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, OPTIONS")
	writeJSON(w, r, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotFound, errorBody{Error: "Not found"})
}

func writeUnavailable(w http.ResponseWriter, r *http.Request) {
	cacheStatus := CacheStatusFor(StatusError)
	header := w.Header()
	header.Set("Cache-Control", cachecontrol.Public(0).String())
	header.Set("Cache-Status", cacheStatus.String())
	header.Set("X-Cache-Status", string(StatusError))
	writeJSON(w, r, http.StatusInternalServerError, errorBody{
		Error:   "Failed to fetch quote",
		Message: "Please try again later",
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Could not write response")
	}
}
