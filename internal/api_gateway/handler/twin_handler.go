package handler

import (
	"log/slog"

	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader lets a caller retry regenerate without queueing twice
const IdempotencyKeyHeader = "Idempotency-Key"

// TwinHandler handles HTTP requests for twin profiles and snapshot history
type TwinHandler struct {
	twinService service.TwinService
	logger      *slog.Logger
}

// NewTwinHandler creates a new twin handler
func NewTwinHandler(logger *slog.Logger, twinService service.TwinService) *TwinHandler {
	return &TwinHandler{
		twinService: twinService,
		logger:      logger,
	}
}

// twinID parses the :twin_id path parameter, answering 400 when malformed
func twinID(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	raw := c.Param("twin_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid twin ID", "twin_id", raw, "error", err)
		RespondBadRequest(c, "Invalid twin ID")
		return uuid.Nil, false
	}
	return id, true
}

// Register links an aggregator item and queues the initial sync
func (h *TwinHandler) Register(c *gin.Context) {
	var req RegisterTwinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	t, err := h.twinService.RegisterTwin(c.Request.Context(), req.ItemID, req.AccessToken)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondCreated(c, mapTwinToResponse(t))
}

// Get returns the current profile; 404 only when no snapshot was ever produced
func (h *TwinHandler) Get(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	profile, err := h.twinService.GetProfile(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondOK(c, mapProfileToResponse(profile))
}

// Regenerate queues a rescore of the twin
func (h *TwinHandler) Regenerate(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	eventID, err := h.twinService.Regenerate(c.Request.Context(), id, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondAccepted(c, gin.H{
		"twin_id":  id.String(),
		"event_id": eventID,
		"status":   "QUEUED",
	})
}

// History lists snapshots newest first
func (h *TwinHandler) History(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	var params HistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid limit")
		return
	}
	limit := params.Limit
	if limit == 0 {
		limit = snapshotstore.DefaultHistoryLimit
	}

	snaps, err := h.twinService.History(c.Request.Context(), id, limit)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}

	data := make([]SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		data = append(data, mapSnapshotToResponse(s))
	}
	RespondWithList(c, data, limit, len(data))
}

// Snapshot returns one stored snapshot with its verification and integrity state
func (h *TwinHandler) Snapshot(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}
	snapshotID, err := uuid.Parse(c.Param("snapshot_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid snapshot ID")
		return
	}

	detail, err := h.twinService.Snapshot(c.Request.Context(), id, snapshotID)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}

	response := SnapshotDetailResponse{
		Snapshot:    mapSnapshotToResponse(detail.Snapshot),
		IntegrityOK: detail.IntegrityOK,
	}
	if detail.Verification != nil {
		v := mapVerificationToResponse(detail.Verification)
		response.Verification = &v
	}
	RespondOK(c, response)
}

// Ghost compares the current snapshot with its predecessor
func (h *TwinHandler) Ghost(c *gin.Context) {
	id, ok := twinID(c, h.logger)
	if !ok {
		return
	}

	ghost, err := h.twinService.Ghost(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}

	response := gin.H{
		"current":         mapSnapshotToResponse(ghost.Current),
		"pillar_delta":    ghost.PillarDelta,
		"overall_delta":   ghost.OverallDelta,
		"readiness_delta": ghost.ReadinessDelta,
	}
	if ghost.Previous != nil {
		response["previous"] = mapSnapshotToResponse(ghost.Previous)
	}
	RespondOK(c, response)
}
