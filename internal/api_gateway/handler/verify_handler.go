package handler

import (
	"log/slog"

	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/gin-gonic/gin"
)

// VerifyHandler serves public hash verification
type VerifyHandler struct {
	verificationService service.VerificationService
	logger              *slog.Logger
}

func NewVerifyHandler(logger *slog.Logger, verificationService service.VerificationService) *VerifyHandler {
	return &VerifyHandler{
		verificationService: verificationService,
		logger:              logger,
	}
}

// Verify reports whether the ledger holds the hash. An unknown hash is a 200 with valid=false.
func (h *VerifyHandler) Verify(c *gin.Context) {
	res, err := h.verificationService.Verify(c.Request.Context(), c.Param("content_hash"))
	if err != nil {
		RespondServiceError(c, h.logger, err)
		return
	}
	RespondOK(c, res)
}
