package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEnv(t *testing.T) {
	env := DefaultEnv()

	assert.Equal(t, ":8080", env.AppAddr)
	assert.Equal(t, 6, env.MaxSeatsPerBooking)
	assert.Equal(t, 30*time.Minute, env.PendingTimeout)
	assert.Equal(t, 2*time.Hour, env.BoardingWindow)
	assert.Equal(t, 5*time.Minute, env.BoardingGrace)
	assert.Equal(t, 10*time.Second, env.PaymentTimeout)
	assert.Equal(t, "0.01", env.LoyaltyEarnRate)
	assert.Equal(t, int64(5<<20), env.ReceiptMaxBytes)
	assert.False(t, env.UsesMemoryStore())
}

func TestStaffAccounts(t *testing.T) {
	env := Env{StaffUsers: "Gate1:scanner:$2a$10$abc, admin:ADMIN:$2a$10$def,broken,nohash:admin:"}

	accounts := env.StaffAccounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "scanner", accounts["gate1"].Role)
	assert.Equal(t, "Gate1", accounts["gate1"].Username)
	assert.Equal(t, "$2a$10$def", accounts["admin"].PasswordHash)
	assert.Equal(t, "admin", accounts["admin"].Role)
}

func TestAllowedOrigins(t *testing.T) {
	env := Env{CORSOrigins: " http://a.test ,,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, env.AllowedOrigins())
}
