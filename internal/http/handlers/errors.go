package handlers

import (
	"errors"
	"net/http"

	"busbook/internal/domain"
	"busbook/internal/http/middleware"
	"busbook/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var (
		seats    domain.SeatConflictError
		points   domain.InsufficientPointsError
		mismatch domain.VerificationMismatchError
	)
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &seats):
		respondError(c, http.StatusConflict, "seat_conflict", "seats no longer available", gin.H{"seats": seats.Seats})
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.As(err, &points):
		respondError(c, http.StatusUnprocessableEntity, "insufficient_points", err.Error(),
			gin.H{"requested": points.Requested, "balance": points.Balance})
	case domain.IsPaymentGateway(err):
		_ = c.Error(err)
		respondError(c, http.StatusBadGateway, "payment_gateway_error", "payment provider unavailable, please retry", nil)
	case errors.As(err, &mismatch):
		c.JSON(http.StatusAccepted, gin.H{
			"status":     "under_review",
			"message":    "payment under review",
			"booking":    mismatch.BookingRef,
			"request_id": middleware.GetRequestID(c),
		})
	default:
		_ = c.Error(err)
		utils.LogError(c.Request.Context(), "http", "unhandled", err, zap.String("path", c.FullPath()))
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
