package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 50

// GET /api/loyalty/:userId?limit=
func (h *Handler) GetLoyaltyAccount(c *gin.Context) {
	if !authorizeAccount(c, c.Param("userId")) {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 500 {
			respondError(c, http.StatusBadRequest, "validation_error", "limit: must be between 0 and 500", nil)
			return
		}
		limit = n
	}
	acct, err := h.Loyalty.Account(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

type bonusRequest struct {
	Points      int64  `json:"points" binding:"required"`
	Description string `json:"description"`
}

// POST /api/admin/loyalty/:userId/bonus
func (h *Handler) GrantLoyaltyBonus(c *gin.Context) {
	var req bonusRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if req.Description == "" {
		req.Description = "bonus"
	}
	ctx := c.Request.Context()
	if err := h.Loyalty.Grant(ctx, c.Param("userId"), req.Points, req.Description); err != nil {
		RespondDomainError(c, err)
		return
	}
	acct, err := h.Loyalty.Account(ctx, c.Param("userId"), 0)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}
