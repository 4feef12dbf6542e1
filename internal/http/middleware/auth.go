package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey      = "userID"
	userRoleKey    = "userRole"
	staffIssuer    = "busbook-staff"
	travelerIssuer = "busbook-accounts"
	roleTraveler   = "traveler"
)

// StaffClaims is the body of a staff session token.
type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueStaffToken signs a session token for a staff login.
func IssueStaffToken(secret []byte, username, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    staffIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IssueTravelerToken signs a session token for a traveler account. The
// account service holds the same secret.
func IssueTravelerToken(secret []byte, userID string, ttl time.Duration, now time.Time) (string, error) {
	claims := StaffClaims{
		Role: roleTraveler,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    travelerIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Auth reads an optional bearer token. A valid token sets userID and
// userRole on the context; RequireRoles decides what is allowed.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: bearer token required"})
			return
		}
		var claims StaffClaims
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err == nil && !issuerAllows(claims) {
			err = jwt.ErrTokenInvalidIssuer
		}
		if err != nil {
			msg := "unauthorized: invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "unauthorized: token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// traveler tokens cannot carry a staff role and staff tokens cannot act as
// travelers
func issuerAllows(claims StaffClaims) bool {
	traveler := strings.EqualFold(strings.TrimSpace(claims.Role), roleTraveler)
	switch claims.Issuer {
	case staffIssuer:
		return !traveler
	case travelerIssuer:
		return traveler && claims.Subject != ""
	}
	return false
}

// GetUserID returns the authenticated username or traveler id, if any.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetUserRole returns the lower-cased role of the caller, or "".
func GetUserRole(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.GetString(userRoleKey)))
}

// CanActFor reports whether the caller may read or spend the loyalty
// account of userID: the traveler themself, or admin and counter staff.
func CanActFor(c *gin.Context, userID string) bool {
	switch GetUserRole(c) {
	case "admin", "staff":
		return true
	case roleTraveler:
		return userID != "" && GetUserID(c) == userID
	}
	return false
}
