package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/immcad/backend/internal/caselaw"
	"github.com/immcad/backend/internal/chat"
	"github.com/immcad/backend/internal/config"
	"github.com/immcad/backend/internal/ingest"
	"github.com/immcad/backend/internal/middleware"
	"github.com/immcad/backend/internal/provider"
	"github.com/immcad/backend/internal/sources"
	"github.com/immcad/backend/internal/telemetry"
)

// Server wires the service layer onto the HTTP routes.
type Server struct {
	cfg         *config.Settings
	chat        *chat.Service
	search      *caselaw.SearchService
	research    *caselaw.ResearchService
	registry    *sources.Registry
	policies    *sources.PolicySet
	checkpoints *ingest.CheckpointStore
	router      *provider.Router
	metrics     *telemetry.Metrics
	auditor     *telemetry.Auditor
	limiter     middleware.RateLimiter
	promReg     *prometheus.Registry
	exportHTTP  *http.Client
	logger      *log.Logger
}

// Deps carries everything the server composes. Optional fields may be nil;
// the matching routes then answer with SOURCE_UNAVAILABLE.
type Deps struct {
	Config      *config.Settings
	Chat        *chat.Service
	Search      *caselaw.SearchService
	Research    *caselaw.ResearchService
	Registry    *sources.Registry
	Policies    *sources.PolicySet
	Checkpoints *ingest.CheckpointStore
	Router      *provider.Router
	Metrics     *telemetry.Metrics
	Auditor     *telemetry.Auditor
	Limiter     middleware.RateLimiter
	PromReg     *prometheus.Registry
	ExportHTTP  *http.Client
}

// NewServer builds the HTTP server from its dependencies.
func NewServer(d Deps) *Server {
	if d.Limiter == nil {
		d.Limiter = middleware.NewMemoryRateLimiter(0)
	}
	return &Server{
		cfg:         d.Config,
		chat:        d.Chat,
		search:      d.Search,
		research:    d.Research,
		registry:    d.Registry,
		policies:    d.Policies,
		checkpoints: d.Checkpoints,
		router:      d.Router,
		metrics:     d.Metrics,
		auditor:     d.Auditor,
		limiter:     d.Limiter,
		promReg:     d.PromReg,
		exportHTTP:  d.ExportHTTP,
		logger:      log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

// Routes assembles the router with middleware applied in order: trace id,
// request metrics, then per-group rate limiting and auth.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Trace)
	r.Use(s.observe)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RateLimit(s.limiter))
	api.HandleFunc("/chat", s.handleChat()).Methods(http.MethodPost)
	api.HandleFunc("/search/cases", s.handleSearchCases()).Methods(http.MethodPost)
	api.HandleFunc("/research/lawyer-cases", s.handleResearchCases()).Methods(http.MethodPost)
	api.HandleFunc("/export/cases", s.handleExportCases()).Methods(http.MethodPost)
	api.HandleFunc("/sources/transparency", s.handleTransparency()).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealthz()).Methods(http.MethodGet)

	ops := r.PathPrefix("/ops").Subrouter()
	if s.cfg != nil && s.cfg.IsProduction() {
		ops.Use(middleware.BearerAuth(s.cfg.APIBearerToken))
	}
	ops.HandleFunc("/metrics", s.handleMetricsSnapshot()).Methods(http.MethodGet)
	if s.promReg != nil {
		ops.Handle("/metrics/prometheus", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.NotFoundHandler = middleware.Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeValidationError, "unknown route", "")
	}))

	return r
}

// observe records request counters and latency samples.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if s.metrics != nil {
			s.metrics.RecordAPIRequest(sw.status, time.Since(start))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
