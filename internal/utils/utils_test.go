package utils

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "NGN 12,500", FormatAmount(12500, "ngn"))
	assert.Equal(t, "-1,000,000", FormatAmount(-1000000, ""))
	assert.Equal(t, "USD 0", FormatAmount(0, "usd"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1250000), ToMinorUnits(12500, 100))
	assert.True(t, FromMinorUnits(1250000, 100).Equal(decimal.NewFromInt(12500)))
	assert.True(t, FromMinorUnits(1250050, 100).Equal(decimal.RequireFromString("12500.5")))
	assert.Equal(t, int64(7), ToMinorUnits(7, 0))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 12,500 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12500), v)

	_, err = ParseAmount("")
	assert.Error(t, err)
}

func TestSeatHelpers(t *testing.T) {
	assert.Equal(t, []string{"A1", "B2", "A1"}, NormalizeSeats([]string{" a1", "", "b2 ", "A1"}))
	assert.Equal(t, []string{"A1"}, DuplicateSeats([]string{"A1", "B2", "A1"}))
	assert.Equal(t, []string{"A1", "A2", "C3"}, SplitSeatList("a1, a2;\nc3"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ada@example.com"))
	assert.False(t, ValidEmail("Ada <ada@example.com>"))
	assert.False(t, ValidEmail("not-an-email"))
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2025-03-01 08:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), got)

	got, err = ParseDateTime("2025-03-01T08:30:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01 07:30", FormatDateTime(got))
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "rid-1")
	assert.Equal(t, "rid-1", RequestIDFrom(ctx))
	assert.Equal(t, "", RequestIDFrom(context.Background()))
	LogEvent(ctx, "TEST", "noop", "logger falls back to nop")
}
