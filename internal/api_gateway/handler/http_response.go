package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/api_gateway/middleware"
	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes a bounded list
type MetaInfo struct {
	Limit int `json:"limit,omitempty"`
	Count int `json:"count"`
}

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Data: data,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithList sends a bounded list with its meta
func RespondWithList(c *gin.Context, data interface{}, limit, count int) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	response.Meta = &MetaInfo{Limit: limit, Count: count}
	c.JSON(http.StatusOK, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := NewErrorResponse(code, message)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondAccepted sends a 202 Accepted response with data.
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondNotFound sends a 404 Not Found response with an error
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondConflict sends a 409 Conflict response with an error
func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "CONFLICT", message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}

// RespondUpstreamError sends a 502 when a collaborator failed or timed out
func RespondUpstreamError(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadGateway, "UPSTREAM_ERROR", message)
}

// RespondServiceError maps domain errors onto status codes. Anything unmapped is logged and hidden behind a 500.
func RespondServiceError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validationErrs validation.Errors
		duplicate      twin.ErrDuplicateItem
	)

	switch {
	case errors.Is(err, twin.ErrTwinNotFound{}):
		RespondNotFound(c, "Twin not found")
	case errors.Is(err, snapshot.ErrSnapshotNotFound{}):
		RespondNotFound(c, "No snapshot available yet")
	case errors.Is(err, cohort.ErrCohortNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.As(err, &duplicate):
		RespondConflict(c, duplicate.Error())
	case errors.As(err, &validationErrs):
		RespondBadRequest(c, validationErrs.Error())
	case errors.Is(err, snapshotstore.ErrInvalidLimit),
		errors.Is(err, analytics.ErrInvalidExplainLimit),
		errors.Is(err, snapshot.ErrUnknownPillar),
		errors.Is(err, cohort.ErrInvalidKey),
		errors.Is(err, anchor.ErrInvalidHash),
		errors.Is(err, service.ErrUnsupportedWebhook):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, analytics.ErrNoComparableMetrics):
		RespondWithError(c, http.StatusUnprocessableEntity, "UNPROCESSABLE", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Request deadline exceeded", "path", c.FullPath(), "error", err)
		RespondWithError(c, http.StatusGatewayTimeout, "TIMEOUT", "The request timed out")
	default:
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
		RespondInternalError(c)
	}
}
