package handlers

import (
	"net/http"
	"strings"
	"time"

	"busbook/internal/http/middleware"
	"busbook/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const staffTokenTTL = 12 * time.Hour

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	account, ok := h.Auth.Accounts[strings.ToLower(strings.TrimSpace(req.Username))]
	if !ok || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		utils.LogEvent(c.Request.Context(), "auth", "login", "login rejected", zap.String("username", req.Username))
		respondError(c, http.StatusUnauthorized, "unauthorized", "wrong username or password", nil)
		return
	}

	now := time.Now()
	token, err := middleware.IssueStaffToken(h.Auth.Secret, account.Username, account.Role, staffTokenTTL, now)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal_error", "could not create token", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": now.Add(staffTokenTTL).UTC(),
		"user":      gin.H{"username": account.Username, "role": account.Role},
	})
}
