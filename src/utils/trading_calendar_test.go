package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fallbackCalendar() *TradingCalendar {
	return &TradingCalendar{Fallback: true, Timezone: time.UTC}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestFallbackSkipsWeekendsAndHolidays(t *testing.T) {
	tc := fallbackCalendar()
	assert.True(t, tc.IsTradingDay(day(2024, 3, 5)))
	assert.False(t, tc.IsTradingDay(day(2024, 3, 9)))
	assert.False(t, tc.IsTradingDay(day(2024, 5, 24)))
	assert.False(t, tc.IsTradingDay(day(2024, 1, 1)))
}

func TestHasTradingDaySince(t *testing.T) {
	tc := fallbackCalendar()

	// Friday -> Sunday: only a weekend elapsed
	assert.False(t, tc.HasTradingDaySince(day(2024, 3, 8), day(2024, 3, 10)))
	// Friday -> Monday
	assert.True(t, tc.HasTradingDaySince(day(2024, 3, 8), day(2024, 3, 11)))
	// same day
	assert.False(t, tc.HasTradingDaySince(day(2024, 3, 5), day(2024, 3, 5)))
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 2, 29, 23, 59, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), DateOnly(in))
}
