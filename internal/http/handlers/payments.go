package handlers

import (
	"errors"
	"io"
	"net/http"

	"busbook/internal/payments"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type approveRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Notes  string `json:"notes"`
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

// PUT /api/payment-validations/:id/approve
func (h *Handler) ApprovePaymentValidation(c *gin.Context) {
	var req approveRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Receipts.Approve(c.Request.Context(), c.Param("id"), req.Amount, req.Notes)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PUT /api/payment-validations/:id/reject
func (h *Handler) RejectPaymentValidation(c *gin.Context) {
	var req rejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	receipt, err := h.Receipts.Reject(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// POST /api/webhooks/:provider
//
// Any 2xx stops the gateway from retrying, so only transient failures
// answer with an error status.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "unreadable body", nil)
		return
	}
	res, err := h.Reconcile.HandleWebhook(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	switch {
	case errors.Is(err, payments.ErrIgnoredEvent):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case err != nil:
		RespondDomainError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "processed", "outcome": res.Outcome})
	}
}
