package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gatewise/traffic-report/internal/config"
	"github.com/gatewise/traffic-report/internal/database"
	"github.com/gatewise/traffic-report/internal/metrics"
	"github.com/gatewise/traffic-report/internal/middleware"
	"github.com/gatewise/traffic-report/internal/report"
	"github.com/gatewise/traffic-report/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers around the report service.
type Server struct {
	reports   *report.Service
	campaigns storage.CampaignRepo
	deps      *Dependencies
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	cfg := deps.Config

	loc, err := cfg.Report.Location()
	if err != nil {
		deps.Logger.Warn("falling back to UTC report timezone", zap.Error(err))
		loc = time.UTC
	}

	// Campaigns always come from PostgreSQL when it is available; the
	// store backend setting only switches the traffic event queries.
	var campaignRepo storage.CampaignRepo
	if deps.DB != nil {
		campaignRepo = storage.NewPostgresCampaignRepo(deps.DB.Pool)
	} else {
		campaignRepo = storage.NewInMemoryCampaignRepo()
	}

	var trafficStore storage.TrafficStore
	switch {
	case cfg.Storage.Backend == config.BackendClickHouse && deps.ClickHouse != nil:
		trafficStore = storage.NewClickHouseTrafficStore(deps.ClickHouse.Conn)
	case cfg.Storage.Backend == config.BackendPostgres && deps.DB != nil:
		trafficStore = storage.NewPostgresTrafficStore(deps.DB.Pool)
	default:
		if cfg.Storage.Backend != config.BackendMemory {
			deps.Logger.Warn("store backend unavailable, using in-memory traffic store",
				zap.String("backend", cfg.Storage.Backend))
		}
		trafficStore = storage.NewInMemoryTrafficStore(loc)
	}

	s := &Server{
		reports:   report.NewService(campaignRepo, trafficStore, loc, deps.Logger),
		campaigns: campaignRepo,
		deps:      deps,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	mux.HandleFunc("/campaigns", s.handleCampaigns)
	mux.HandleFunc("/campaigns/", s.handleCampaignRoutes)

	// Middleware chain, innermost first.
	var redisClient *redis.Client
	if deps.Redis != nil {
		redisClient = deps.Redis.Client
	}
	var handler http.Handler = mux
	handler = middleware.NewRateLimitMiddleware(cfg.RateLimit, redisClient, deps.Logger, deps.Metrics).Handler(handler)
	handler = middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics).Handler(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)

	return handler
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	if s.deps.DB != nil {
		if err := s.deps.DB.Health(ctx); err != nil {
			status["postgres"] = "unreachable"
			status["status"] = "degraded"
		} else {
			status["postgres"] = "ok"
		}
	}
	if s.deps.ClickHouse != nil {
		if err := s.deps.ClickHouse.Health(ctx); err != nil {
			status["clickhouse"] = "unreachable"
			status["status"] = "degraded"
		} else {
			status["clickhouse"] = "ok"
		}
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Health(ctx); err != nil {
			status["redis"] = "unreachable"
			status["status"] = "degraded"
		} else {
			status["redis"] = "ok"
		}
	}

	s.jsonResponse(w, status)
}

// ---- Campaigns ----

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := s.campaigns.ListCampaigns(r.Context())
	if err != nil {
		s.logger.Error("failed to list campaigns", zap.Error(err))
		s.errorResponse(w, "failed to list campaigns", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, list)
}

func (s *Server) handleCampaignRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/campaigns/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	switch sub {
	case "":
		s.handleCampaignByID(w, r, id)
	case "report":
		s.handleReport(w, r, id)
	case "events":
		s.handleEvents(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request, id string) {
	c, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get campaign", zap.Error(err), zap.String("campaign_id", id))
		s.errorResponse(w, "failed to get campaign", http.StatusInternalServerError)
		return
	}
	if c == nil {
		s.errorResponse(w, "campaign not found", http.StatusNotFound)
		return
	}
	s.jsonResponse(w, c)
}

// ---- Report ----

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id string) {
	req := reportRequest(r)
	start := time.Now()

	rep, err := s.reports.BuildReport(r.Context(), id, req)
	duration := time.Since(start)

	metricPreset := req.Preset
	if !report.KnownPreset(metricPreset) {
		metricPreset = "unknown"
	}

	if err != nil {
		if errors.Is(err, report.ErrCampaignNotFound) {
			s.metrics.RecordReport(metricPreset, "not_found", duration)
			s.errorResponse(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to build report",
			zap.Error(err),
			zap.String("campaign_id", id),
			zap.String("preset", req.Preset),
		)
		s.metrics.RecordReport(metricPreset, "error", duration)
		s.metrics.RecordStoreError("build_report")
		s.errorResponse(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordReport(metricPreset, "ok", duration)
	s.jsonResponse(w, rep)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, id string) {
	events, err := s.reports.RecentEvents(r.Context(), id, reportRequest(r))
	if err != nil {
		if errors.Is(err, report.ErrCampaignNotFound) {
			s.errorResponse(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to fetch events", zap.Error(err), zap.String("campaign_id", id))
		s.metrics.RecordStoreError("recent_events")
		s.errorResponse(w, "failed to fetch events", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, events)
}

func reportRequest(r *http.Request) report.Request {
	q := r.URL.Query()
	preset := q.Get("preset")
	if preset == "" {
		preset = string(report.PresetToday)
	}
	return report.Request{
		Preset:    preset,
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
}

// ---- Helpers ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
