package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"FileCatalog/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled   bool
	MetricsTokenHash string
}

// NewHandler wraps the catalog routes with request ids, access logs, panic
// recovery and, when a registry is given, HTTP metrics plus a guarded
// /metrics endpoint.
func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID, chimw.CleanPath, kit.Logging(deps.Log))

	if deps.Registry != nil {
		r.Use(kit.NewMetrics(deps.Registry).Middleware(deps.Service, kit.ChiRoutePatternOrPath))
	}
	// Inside the metrics middleware so recovered panics are counted as 500s.
	r.Use(kit.Recoverer(deps.Log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		kit.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	if deps.Registry != nil && deps.MetricsEnabled {
		r.With(kit.MetricsAuth(deps.MetricsTokenHash)).
			Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))
	}

	r.Mount("/", s.Routes())
	return r
}
