package models

import "time"

// MDateChunk is a bounded sub-range of a requested interval, both ends inclusive.
type MDateChunk struct {
	Symbol   string    `json:"symbol"`
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`
}

// Days returns the inclusive number of calendar days the chunk covers.
func (c MDateChunk) Days() int {
	return int(c.ToDate.Sub(c.FromDate).Hours()/24) + 1
}

// ChunkStatus tags the outcome of scraping one chunk.
type ChunkStatus string

const (
	ChunkOK     ChunkStatus = "ok"
	ChunkEmpty  ChunkStatus = "empty"
	ChunkFailed ChunkStatus = "failed"
)

// MChunkResult is the tagged per-chunk outcome.
type MChunkResult struct {
	Chunk  MDateChunk
	Status ChunkStatus
	Rows   []MPriceRow
	Err    error
}

// MFetchReport summarizes one Date-Chunked Fetcher call.
type MFetchReport struct {
	Symbol       string      `json:"symbol"`
	Rows         []MPriceRow `json:"rows"`
	ChunksTotal  int         `json:"chunks_total"`
	ChunksOK     int         `json:"chunks_ok"`
	ChunksEmpty  int         `json:"chunks_empty"`
	ChunksFailed int         `json:"chunks_failed"`
	// FirstFailed is the start of the earliest failed chunk, nil when none failed.
	FirstFailed  *time.Time  `json:"first_failed,omitempty"`
}

// MFetchRequest is the single-symbol input of the data fetch stage.
type MFetchRequest struct {
	Symbol   string
	Issuer   *MIssuer
	FromDate time.Time
	ToDate   time.Time
}

// MFetchResult is the single-symbol output of the data fetch stage.
type MFetchResult struct {
	Symbol  string       `json:"symbol"`
	Written int          `json:"written"`
	Report  MFetchReport `json:"report"`
	Err     error        `json:"-"`
}

// MFetchTask is one (symbol, year) unit of orchestrated work.
type MFetchTask struct {
	Symbol   string    `json:"symbol"`
	IssuerID int64     `json:"issuer_id"`
	Year     int       `json:"year"`
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`
}

// MTaskResult is the completion status of a MFetchTask.
type MTaskResult struct {
	Task    MFetchTask `json:"task"`
	Success bool       `json:"success"`
	Rows    int        `json:"rows"`
	Err     error      `json:"-"`
}

// MRunSummary aggregates succeeded/failed units of a run.
type MRunSummary struct {
	RunID     string  `json:"run_id"`
	Total     int     `json:"total"`
	Skipped   int     `json:"skipped"`
	Succeeded int     `json:"succeeded"`
	NoData    int     `json:"no_data"`
	Failed    int     `json:"failed"`
	Seconds   float64 `json:"seconds"`
}
