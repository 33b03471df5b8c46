package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/console/handler"
)

// ViewServer — локальный HTTP API, через который рендер получает состояние экранов.
type ViewServer struct {
	router   *chi.Mux
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	screenHandler *handler.ScreenHandler // /api/v1/screens
	alertHandler  *handler.AlertHandler  // /api/v1/alerts, /api/v1/blocklist
	threatHandler *handler.ThreatHandler // /api/v1/reputation, /api/v1/reports
}

func NewViewServer(
	logger *zap.Logger,
	gatherer prometheus.Gatherer,
	screenH *handler.ScreenHandler,
	alertH *handler.AlertHandler,
	threatH *handler.ThreatHandler,
) *ViewServer {
	s := &ViewServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("view-api"),
		gatherer:      gatherer,
		screenHandler: screenH,
		alertHandler:  alertH,
		threatHandler: threatH,
	}

	s.routes()
	return s
}

func (s *ViewServer) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/screens", func(r chi.Router) {
			r.Get("/dashboard", s.screenHandler.Dashboard)
			r.Get("/monitor", s.screenHandler.Monitor)
			r.Post("/monitor/retry", s.screenHandler.RetryMonitor)
		})

		// Модалка угрозы и решения пользователя
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/demo", s.alertHandler.ShowDemo)
			r.Get("/active", s.alertHandler.Active)
			r.Post("/block", s.alertHandler.Block)
			r.Post("/allow", s.alertHandler.Allow)
			r.Get("/decisions", s.alertHandler.Decisions)
		})
		r.Route("/blocklist", func(r chi.Router) {
			r.Get("/", s.alertHandler.Blocked)
			r.Delete("/{ip}", s.alertHandler.Unblock)
		})

		r.Get("/reputation", s.threatHandler.Reputation)
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", s.threatHandler.Report)
			r.Get("/app/{app}", s.threatHandler.ReportsForApp)
			r.Get("/{ip}", s.threatHandler.ReportsForIP)
			r.Get("/{ip}/count", s.threatHandler.ReportCount)
		})
	})
}

// ServeHTTP позволяет использовать ViewServer как стандартный http.Handler
func (s *ViewServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
