package handlers

import (
	"net/http"

	"busbook/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "empty body", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", err.Error())
		return false
	}
	return true
}

// bindOptionalJSON parses a body when one was sent.
func bindOptionalJSON[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	return BindJSONOrError(c, dst)
}

// authorizeAccount lets a request touch the loyalty account of userID only
// when the caller is that traveler or staff.
func authorizeAccount(c *gin.Context, userID string) bool {
	if middleware.CanActFor(c, userID) {
		return true
	}
	if middleware.GetUserRole(c) == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized", "login required for a loyalty account", nil)
		return false
	}
	respondError(c, http.StatusForbidden, "forbidden", "not allowed to use this loyalty account", nil)
	return false
}
