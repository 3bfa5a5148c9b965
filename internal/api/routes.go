package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
)

// NewRouter builds the full Control API mux, wired per spec §6.1's
// endpoint table, grounded on kubilitics-backend/cmd/server/main.go's
// router/subrouter/middleware/CORS assembly.
func NewRouter(h *Handler, bearerToken string, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/services", h.handleListServices).Methods(http.MethodGet)
	api.HandleFunc("/services/{name}/enable", h.handleEnableService).Methods(http.MethodPost)
	api.HandleFunc("/services/{name}/disable", h.handleDisableService).Methods(http.MethodPost)
	api.HandleFunc("/services/{name}/wake", h.handleWakeService).Methods(http.MethodPost)
	api.HandleFunc("/services/{name}/sleep", h.handleSleepService).Methods(http.MethodPost)
	api.HandleFunc("/virtual-servers", h.handleListVirtualServers).Methods(http.MethodGet)
	api.HandleFunc("/virtual-servers/{name}/tools", h.handleVirtualServerTools).Methods(http.MethodGet)
	api.HandleFunc("/router/execute", h.handleRouterExecute).Methods(http.MethodPost)
	api.HandleFunc("/router/metrics", h.handleRouterMetrics).Methods(http.MethodGet)
	api.HandleFunc("/router/health", h.handleRouterHealth).Methods(http.MethodGet)
	api.HandleFunc("/metrics/system", h.handleSystemMetrics).Methods(http.MethodGet)
	api.HandleFunc("/flags", h.handleListFlags).Methods(http.MethodGet)
	api.HandleFunc("/flags/{name}", h.handleSetFlag).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, gwerr.New(gwerr.NotFound, "no such route"))
	})

	r.Use(tracingMiddleware)
	r.Use(bearerAuth(bearerToken))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return corsHandler.Handler(r)
}

// bearerAuth enforces the Control API's bearer-credential requirement
// (spec §4.12 "every endpoint requires a bearer credential whose
// validation is delegated"). /health and /metrics are exempt so the
// liveness probe and the Prometheus scrape never need a credential.
func bearerAuth(expected string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearer(r)
			if token == "" || token != expected {
				writeError(w, gwerr.New(gwerr.Unauthorized, "missing or invalid bearer credential"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
