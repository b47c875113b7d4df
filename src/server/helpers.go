package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/models"
	"mse-pipeline/src/scraper"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Error Mapping
// -----------------------------------------------------------------------------

func (s *FastAPIServer) respondError(c *gin.Context, err error) {
	var cfgErr *helpers.ConfigurationError
	switch {
	case helpers.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// -----------------------------------------------------------------------------

// parseRequestDate accepts YYYY-MM-DD and M/D/YYYY.
func parseRequestDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := scraper.ParseDate(s)
	return t, err == nil
}

// -----------------------------------------------------------------------------
// Background Runs
// -----------------------------------------------------------------------------

// startRun runs fn in the background under a fresh run id, bracketed by
// run_started and run_finished events unless fn publishes its own.
func (s *FastAPIServer) startRun(kind string, selfReporting bool, fn func(ctx context.Context, runID string) error) string {
	runID := uuid.NewString()
	s.runs.Add(1)

	go func() {
		defer s.runs.Done()
		start := time.Now()
		if !selfReporting {
			s.Hub.Publish(models.MProgressEvent{RunID: runID, Kind: "run_started", Success: true, Message: kind, Timestamp: start.Unix()})
		}

		err := fn(s.runCtx, runID)
		if err != nil {
			s.Logger.Error("Run %s (%s) failed: %v", runID, kind, err)
		} else {
			s.Logger.Info("Run %s (%s) finished in %.2f seconds", runID, kind, time.Since(start).Seconds())
		}

		if !selfReporting {
			ev := models.MProgressEvent{RunID: runID, Kind: "run_finished", Success: err == nil, Message: kind, Timestamp: time.Now().Unix()}
			if err != nil {
				ev.Message = err.Error()
			}
			s.Hub.Publish(ev)
		}
	}()
	return runID
}
