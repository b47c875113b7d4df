package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Request Bodies
// -----------------------------------------------------------------------------

type fetchRequest struct {
	Symbol   string `json:"symbol"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Save     *bool  `json:"save"`
}

type fetchAllRequest struct {
	FromYear int `json:"from_year"`
	ToYear   int `json:"to_year"`
}

type newsRequest struct {
	Codes []string `json:"codes"`
}

type newsContentRequest struct {
	EmptyOnly bool `json:"empty_only"`
}

type importRequest struct {
	Dir string `json:"dir"`
}

// -----------------------------------------------------------------------------
// Read Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	st, err := s.Service.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.Hub.Connections(),
		"service":     st,
	})
}

// -----------------------------------------------------------------------------

// getEvents returns the most recent progress events, ?limit=N (default 50).
func (s *FastAPIServer) getEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.Hub.Recent(limit))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) listIssuers(c *gin.Context) {
	issuers, err := s.Service.ListIssuers(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuers)
}

func (s *FastAPIServer) getIssuer(c *gin.Context) {
	issuer, err := s.Service.GetIssuer(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuer)
}

func (s *FastAPIServer) getPrices(c *gin.Context) {
	prices, err := s.Service.GetPrices(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

func (s *FastAPIServer) getSummary(c *gin.Context) {
	summary, err := s.Service.Summary(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *FastAPIServer) getNews(c *gin.Context) {
	items, err := s.Service.ListNews(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// -----------------------------------------------------------------------------
// Pipeline Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) refreshSymbols(c *gin.Context) {
	codes, err := s.Service.RefreshSymbols(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(codes), "codes": codes})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) fetchSymbol(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	if req.Symbol == "" {
		badRequest(c, "symbol is required")
		return
	}
	from, ok := parseRequestDate(req.FromDate)
	if !ok {
		badRequest(c, "from_date must be YYYY-MM-DD or M/D/YYYY")
		return
	}
	to, ok := parseRequestDate(req.ToDate)
	if !ok {
		badRequest(c, "to_date must be YYYY-MM-DD or M/D/YYYY")
		return
	}
	if from.After(to) {
		badRequest(c, "from_date is after to_date")
		return
	}

	save := req.Save == nil || *req.Save
	res, err := s.Service.FetchSymbol(c.Request.Context(), req.Symbol, from, to, save)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) fetchStale(c *gin.Context) {
	runID := s.startRun("fetch-stale", false, func(ctx context.Context, _ string) error {
		_, err := s.Service.FetchStale(ctx)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *FastAPIServer) fetchAll(c *gin.Context) {
	var req fetchAllRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
	}
	if req.FromYear != 0 && req.ToYear != 0 && req.FromYear > req.ToYear {
		badRequest(c, "from_year is after to_year")
		return
	}

	runID := s.startRun("fetch-all", true, func(ctx context.Context, runID string) error {
		_, err := s.Service.FetchAll(ctx, runID, req.FromYear, req.ToYear)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) collectNews(c *gin.Context) {
	var req newsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
	}
	added, err := s.Service.CollectNews(c.Request.Context(), req.Codes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// fetchNewsContent renders news pages one by one, so it runs in the background.
func (s *FastAPIServer) fetchNewsContent(c *gin.Context) {
	var req newsContentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
	}
	runID := s.startRun("news-content", false, func(ctx context.Context, _ string) error {
		_, err := s.Service.FetchNewsContent(ctx, req.EmptyOnly)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *FastAPIServer) importCSV(c *gin.Context) {
	var req importRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
	}
	n, err := s.Service.ImportCSV(c.Request.Context(), req.Dir)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func (s *FastAPIServer) clearPrices(c *gin.Context) {
	n, err := s.Service.ClearPrices(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
