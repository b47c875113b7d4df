package utils

import (
	"time"

	"mse-pipeline/src/logger"

	"github.com/scmhub/calendar"
)

// MIC of the Macedonian Stock Exchange (ISO 10383).
const mseMIC = "xmae"

// Fixed-date public holidays in North Macedonia on which the exchange is closed.
// Movable feasts (Orthodox Easter, Ramadan Bayram) are not covered by the fallback.
var mseFixedHolidays = map[[2]int]bool{
	{1, 1}: true, {1, 2}: true, {1, 7}: true,
	{5, 1}: true, {5, 24}: true,
	{8, 2}: true, {9, 8}: true,
	{10, 11}: true, {10, 23}: true,
	{12, 8}: true,
}

// TradingCalendar calculates trading days using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar returns the exchange calendar, or a weekday calendar with the
// fixed national holidays in Europe/Skopje when the library has none for MSE.
func GetCalendar(log *logger.Logger) *TradingCalendar {
	if cal := calendar.GetCalendar(mseMIC); cal != nil {
		return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
	}

	log.Debug("No calendar for MIC '%s'. Using Mon-Fri with fixed holidays.", mseMIC)
	loc, err := time.LoadLocation("Europe/Skopje")
	if err != nil {
		loc = time.UTC
	}
	return &TradingCalendar{Fallback: true, Timezone: loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			return false
		}
		return !mseFixedHolidays[[2]int{int(date.Month()), date.Day()}]
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// HasTradingDaySince reports whether any trading day falls strictly after
// last and on or before now, comparing calendar dates only.
func (tc *TradingCalendar) HasTradingDaySince(last, now time.Time) bool {
	day := DateOnly(last).AddDate(0, 0, 1)
	end := DateOnly(now)
	for !day.After(end) {
		if tc.IsTradingDay(day.Add(12 * time.Hour)) {
			return true
		}
		day = day.AddDate(0, 0, 1)
	}
	return false
}

// -----------------------------------------------------------------------------

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
