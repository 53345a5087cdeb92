package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/rfqnorm/backend/internal/api/handlers"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
	"github.com/wonny/rfqnorm/backend/pkg/metrics"
)

// Pinger reports storage health (database.DB)
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handlers and optional infrastructure behind the router.
// Catalog, Audit, Metrics, DB and Cache may be nil.
type Deps struct {
	Normalize *handlers.NormalizeHandler
	Stream    *handlers.StreamHandler
	Catalog   *handlers.CatalogHandler
	Audit     *handlers.AuditHandler
	Metrics   *metrics.Metrics
	DB        Pinger
	Cache     Pinger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps Deps, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(deps.DB, deps.Cache)).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	// Streaming
	if deps.Stream != nil {
		r.HandleFunc("/ws/normalize", deps.Stream.Serve).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/normalize", deps.Normalize.Normalize).Methods("POST")
	api.HandleFunc("/normalize/batch", deps.Normalize.Batch).Methods("POST")
	api.HandleFunc("/tools/normalize_inquiry", deps.Normalize.NormalizeInquiry).Methods("POST")
	api.HandleFunc("/tools/expire-date/{unit}", deps.Normalize.ExpireDate).Methods("GET")
	api.HandleFunc("/products/candidates", deps.Normalize.ProductCandidates).Methods("GET")

	if deps.Catalog != nil {
		api.HandleFunc("/catalog", deps.Catalog.Get).Methods("GET")
		api.HandleFunc("/catalog/sync", deps.Catalog.Sync).Methods("POST")
	}
	if deps.Audit != nil {
		api.HandleFunc("/audit/inquiries", deps.Audit.List).Methods("GET")
		api.HandleFunc("/audit/inquiries/{id:[0-9]+}", deps.Audit.Get).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log, deps.Metrics))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status. The audit database and
// the variety cache are optional; a configured one that fails to answer
// degrades the service.
func healthCheckHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]interface{}{
			"status":  "ok",
			"service": "rfqnorm-api",
			"audit":   db != nil,
			"cache":   cache != nil,
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, p := range map[string]Pinger{"database": db, "redis": cache} {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the status code; Hijack is passed through for websockets
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests and feeds the request metrics
func loggingMiddleware(log *logger.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			elapsed := time.Since(start)
			if m != nil {
				m.ObserveHTTP(route, r.Method, rec.status, elapsed)
			}

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"route":    route,
				"status":   rec.status,
				"duration": elapsed,
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
