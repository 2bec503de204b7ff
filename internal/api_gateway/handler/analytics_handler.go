package handler

import (
	"errors"
	"log/slog"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the derived, read-only views of a twin
type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	logger           *slog.Logger
}

func NewAnalyticsHandler(logger *slog.Logger, analyticsService service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

func (h *AnalyticsHandler) StressTest(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	var req StressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.analyticsService.StressTest(c.Request.Context(), id, analytics.StressParams{
		IncomeChangePct:  req.IncomeChangePct,
		ExpenseChangePct: req.ExpenseChangePct,
		OneTimeShock:     req.OneTimeShock,
	})
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondOK(c, res)
}

func (h *AnalyticsHandler) Anomalies(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	report, err := h.analyticsService.Anomalies(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondOK(c, report)
}

func (h *AnalyticsHandler) Benchmark(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	var params BenchmarkParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "age_band, income_band and region are required")
		return
	}

	b, err := h.analyticsService.Benchmark(c.Request.Context(), id, cohort.Key{
		AgeBand:    params.AgeBand,
		IncomeBand: params.IncomeBand,
		Region:     params.Region,
	})
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondOK(c, b)
}

func (h *AnalyticsHandler) Explain(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	var params ExplainParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "pillar is required")
		return
	}

	exp, err := h.analyticsService.Explain(c.Request.Context(), id, snapshot.PillarName(params.Pillar), params.Limit)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondOK(c, exp)
}

func (h *AnalyticsHandler) Narrative(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	n, err := h.analyticsService.Narrative(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound{}) {
			RespondServiceError(c, h.logger, err)
			return
		}
		h.logger.Error("Narrative collaborator failed", "twin_id", id.String(), "error", err)
		RespondUpstreamError(c, "Narrative generation is unavailable")
		return
	}
	RespondOK(c, n)
}
