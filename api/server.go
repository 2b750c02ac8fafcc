package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/cache"
	"wb-seller-stats/tenants"
	"wb-seller-stats/wbapi"
)

// Runner starts report runs and serves their results
type Runner interface {
	Tenants() []string
	Start(ctx context.Context, tenant string) (string, error)
	LatestReport(ctx context.Context, tenant string) (cache.CachedReport, bool, error)
}

// StatsSource is the provider surface behind the ad-hoc stats endpoints
type StatsSource interface {
	FunnelProducts(ctx context.Context, token string, ids []int64, period wbapi.Period) ([]wbapi.FunnelProduct, error)
	LegacyFunnelCards(ctx context.Context, token string, ids []int64, period wbapi.Period) ([]wbapi.FunnelProduct, error)
	RegionSales(ctx context.Context, token string, period wbapi.Period) ([]wbapi.RegionSale, error)
}

// FinanceWriter fetches a tenant's finance report and writes it to the
// tenant's workbook; written is false when the report was empty
type FinanceWriter interface {
	WriteFinanceReport(ctx context.Context, tenant string, period wbapi.Period) (rows []wbapi.FinanceRow, written bool, err error)
}

// TenantSource resolves a tenant name to its token and tracked articles
type TenantSource interface {
	Get(name string) (tenants.Tenant, bool)
}

// Server handles HTTP API requests
type Server struct {
	ctx     context.Context // outlives requests; background runs use it
	runner  Runner
	stats   StatsSource
	finance FinanceWriter
	tenants TenantSource
	events  http.Handler
	loc     *time.Location
	now     func() time.Time
	log     logrus.FieldLogger

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer creates a new API server instance. ctx bounds the runs the
// server starts; events serves the SSE stream.
func NewServer(ctx context.Context, runner Runner, stats StatsSource, finance FinanceWriter, src TenantSource, events http.Handler, loc *time.Location, log logrus.FieldLogger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{
		ctx:     ctx,
		runner:  runner,
		stats:   stats,
		finance: finance,
		tenants: src,
		events:  events,
		loc:     loc,
		now:     time.Now,
		log:     log,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/events", s.events) // SSE Endpoint
	mux.HandleFunc("GET /api/tenants", s.handleGetTenants)
	mux.HandleFunc("POST /api/runs/{tenant}", s.handleStartRun)
	mux.HandleFunc("GET /api/reports/{tenant}", s.handleGetReport)
	mux.HandleFunc("GET /api/funnel-stats", s.handleFunnelStats)
	mux.HandleFunc("GET /api/region-sales", s.handleRegionSales)
	mux.HandleFunc("GET /api/finance-report", s.handleFinanceReport)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start starts the HTTP server on the specified port and blocks until Shutdown
func (s *Server) Start(port int) error {
	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	s.log.WithField("addr", serverAddr).Info("API Server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"took":   time.Since(start),
		}).Debug("HTTP request")
	})
}

// Handlers are distributed across multiple files:
// - handlers_runs.go: health, tenants, run trigger, latest report
// - handlers_stats.go: funnel stats and region sales straight from the provider
// - handlers_finance.go: finance report fetch and sheet write
