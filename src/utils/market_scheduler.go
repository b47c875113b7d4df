package utils

import (
	"context"
	"fmt"
	"time"

	"mse-pipeline/src/logger"

	"github.com/go-co-op/gocron"
)

// MarketScheduler fires a job once per trading day at a fixed exchange-local
// time, typically after the close so the day's session is published.
type MarketScheduler struct {
	Calendar *TradingCalendar
	Hour     int
	Minute   int
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

// NewMarketScheduler parses at as "HH:MM".
func NewMarketScheduler(cal *TradingCalendar, at string, l *logger.Logger) (*MarketScheduler, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q, want HH:MM: %w", at, err)
	}
	return &MarketScheduler{Calendar: cal, Hour: t.Hour(), Minute: t.Minute(), Logger: l}, nil
}

// -----------------------------------------------------------------------------

// Next returns the first scheduled instant strictly after the given time
// that falls on a trading day.
func (ms *MarketScheduler) Next(after time.Time) time.Time {
	loc := ms.location()
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), ms.Hour, ms.Minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	// give up after a month of closed days
	for i := 0; i < 31 && ms.Calendar != nil && !ms.Calendar.IsTradingDay(next); i++ {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// -----------------------------------------------------------------------------

// Run fires job daily at the configured time until ctx is done, skipping
// days the exchange is closed. Runs never overlap; a slot that comes due
// while the previous job is still running is dropped.
func (ms *MarketScheduler) Run(ctx context.Context, job func(ctx context.Context)) error {
	s := gocron.NewScheduler(ms.location())
	s.SingletonModeAll()

	at := fmt.Sprintf("%02d:%02d", ms.Hour, ms.Minute)
	_, err := s.Every(1).Day().At(at).Do(func() {
		if ms.Calendar != nil && !ms.Calendar.IsTradingDay(time.Now()) {
			ms.Logger.Debug("MarketScheduler: exchange closed today, skipping")
			return
		}
		job(ctx)
		ms.Logger.Info("MarketScheduler: next run at %s", ms.Next(time.Now()).Format(time.RFC3339))
	})
	if err != nil {
		return fmt.Errorf("schedule daily job at %s: %w", at, err)
	}

	ms.Logger.Info("MarketScheduler: next run at %s", ms.Next(time.Now()).Format(time.RFC3339))
	s.StartAsync()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (ms *MarketScheduler) location() *time.Location {
	if ms.Calendar != nil && ms.Calendar.Timezone != nil {
		return ms.Calendar.Timezone
	}
	return time.UTC
}
