// Package api exposes the narrow operational HTTP surface for triggering
// and inspecting optimizer runs: health, run submission, and run/decision
// lookup. It is not the booking/admin UI, which remains an external
// collaborator.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
	"cleanopt/pkg/orchestrator"
	"cleanopt/pkg/storage"
)

// Server is the ops HTTP surface; its collaborators are injected at
// construction time.
type Server struct {
	config       *config.Config
	orchestrator *orchestrator.Orchestrator
	runs         storage.RunStore
	decisions    DecisionReader
	logger       *slog.Logger
	server       *http.Server
}

// DecisionReader is the read-side query surface GET /runs/:run_id/decisions
// needs; pkg/storage.PostgresStore implements it alongside RunStore and
// DecisionSink.
type DecisionReader interface {
	ListDecisions(ctx context.Context, runID string, offset, limit int) ([]domain.DecisionEvent, error)
}

// NewServer wires a Server from its collaborators.
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, runs storage.RunStore, decisions DecisionReader, logger *slog.Logger) *Server {
	return &Server{config: cfg, orchestrator: orch, runs: runs, decisions: decisions, logger: logger}
}

// Start runs the HTTP server until the context is cancelled or it errors.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         s.config.API.Listen,
		Handler:      router,
		ReadTimeout:  s.config.API.ReadTimeout,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting ops API", "address", s.config.API.Listen)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping ops API")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRouter() *gin.Engine {
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(s.loggingMiddleware())
	router.Use(gin.Recovery())
	router.Use(s.requestSizeMiddleware())

	router.GET("/health", s.healthHandler)

	runs := router.Group("/runs")
	{
		runs.POST("", s.createRunHandler)
		runs.GET("/:run_id", s.getRunHandler)
		runs.GET("/:run_id/decisions", s.listDecisionsHandler)
	}

	return router
}

// healthChecker is implemented by storage.PostgresStore and
// storage.RedisWorkspaceStore. healthHandler checks only the run store,
// and only when that store implements it.
type healthChecker interface {
	Health(ctx context.Context) storage.ComponentHealth
}

func (s *Server) healthHandler(c *gin.Context) {
	overall := "healthy"
	components := gin.H{}

	if checker, ok := s.runs.(healthChecker); ok {
		h := checker.Health(c.Request.Context())
		components["postgres"] = h
		if h.Status != "healthy" {
			overall = "degraded"
		}
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": overall, "timestamp": time.Now(), "components": components})
}

// createRunTaskRequest and friends mirror domain.Task/domain.Cleaner but
// accept dynamically-typed booleans at the ingestion boundary.
type createRunTaskRequest struct {
	ID              int              `json:"id" binding:"required"`
	LogisticCode    int              `json:"logistic_code"`
	Lat             float64          `json:"lat"`
	Lon             float64          `json:"lon"`
	ClientID        int              `json:"client_id"`
	Premium         domain.FlexBool  `json:"premium"`
	Straordinaria   domain.FlexBool  `json:"straordinaria"`
	ApartmentType   string           `json:"apartment_type"`
	Priority        string           `json:"priority"`
	DurationMinutes int              `json:"duration_minutes"`
	CheckoutMinute  *int             `json:"checkout_minute"`
	CheckinMinute   *int             `json:"checkin_minute"`
}

type createRunCleanerRequest struct {
	ID                 int             `json:"id" binding:"required"`
	Name               string          `json:"name"`
	Role               string          `json:"role"`
	Contract           string          `json:"contract"`
	CanDoStraordinaria domain.FlexBool `json:"can_do_straordinaria"`
	PreferredCustomers []int           `json:"preferred_customers"`
	DayStartMinute     int             `json:"day_start_minute"`
}

type createRunRequest struct {
	WorkDate         string                    `json:"work_date" binding:"required"`
	AlgorithmVersion string                    `json:"algorithm_version"`
	Tasks            []createRunTaskRequest    `json:"tasks"`
	Cleaners         []createRunCleanerRequest `json:"cleaners"`
}

func (s *Server) createRunHandler(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	input := orchestrator.RunInput{
		WorkDate:         req.WorkDate,
		AlgorithmVersion: req.AlgorithmVersion,
		Tasks:            make([]domain.Task, len(req.Tasks)),
		Cleaners:         make([]domain.Cleaner, len(req.Cleaners)),
	}
	if input.AlgorithmVersion == "" {
		input.AlgorithmVersion = "v1"
	}

	for i, t := range req.Tasks {
		input.Tasks[i] = domain.Task{
			ID:              t.ID,
			LogisticCode:    t.LogisticCode,
			Coordinates:     domain.Coordinates{Lat: t.Lat, Lon: t.Lon},
			ClientID:        t.ClientID,
			Premium:         t.Premium.Bool(),
			Straordinaria:   t.Straordinaria.Bool(),
			ApartmentType:   domain.ApartmentType(t.ApartmentType),
			Priority:        domain.Priority(t.Priority),
			DurationMinutes: t.DurationMinutes,
			CheckoutMinute:  t.CheckoutMinute,
			CheckinMinute:   t.CheckinMinute,
		}
	}
	for i, cl := range req.Cleaners {
		input.Cleaners[i] = domain.Cleaner{
			ID:                 cl.ID,
			Name:               cl.Name,
			Role:               domain.Role(cl.Role),
			Contract:           domain.ContractClass(cl.Contract),
			CanDoStraordinaria: cl.CanDoStraordinaria.Bool(),
			PreferredCustomers: cl.PreferredCustomers,
			DayStartMinute:     cl.DayStartMinute,
		}
	}

	result, err := s.orchestrator.RunOnce(c.Request.Context(), input)
	if err != nil {
		s.logger.Error("run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run_id":  result.RunID,
		"status":  result.Status,
		"summary": result.Summary,
	})
}

func (s *Server) getRunHandler(c *gin.Context) {
	runID := c.Param("run_id")
	run, found, err := s.fetchRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": fmt.Sprintf("no run %s", runID)})
		return
	}
	c.JSON(http.StatusOK, run)
}

// fetchRun is a seam RunStore doesn't need to expose directly: most
// deployments read run status back out through the same store that wrote
// it, so this delegates to a narrower reader interface satisfied by
// storage.PostgresStore.
func (s *Server) fetchRun(ctx context.Context, runID string) (any, bool, error) {
	type runReader interface {
		GetRun(ctx context.Context, runID string) (domain.Run, bool, error)
	}
	reader, ok := s.runs.(runReader)
	if !ok {
		return nil, false, fmt.Errorf("run store does not support lookup")
	}
	run, found, err := reader.GetRun(ctx, runID)
	return run, found, err
}

func (s *Server) listDecisionsHandler(c *gin.Context) {
	runID := c.Param("run_id")
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	decisionEvents, err := s.decisions.ListDecisions(c.Request.Context(), runID, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   runID,
		"offset":   offset,
		"limit":    limit,
		"decisions": decisionEvents,
	})
}
