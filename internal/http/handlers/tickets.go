package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type verifyTicketRequest struct {
	Ticket string `json:"ticket" binding:"required"`
}

// POST /api/tickets/verify
//
// Scan outcomes, including invalid tickets, are answered with 200; the
// state field carries the decision.
func (h *Handler) VerifyTicket(c *gin.Context) {
	var req verifyTicketRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Tickets.Verify(c.Request.Context(), req.Ticket)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
