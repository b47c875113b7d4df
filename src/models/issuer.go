package models

import "time"

// MSymbol is one option of the exchange's symbol selector.
type MSymbol struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// MIssuer represents the stored issuer, unique on Code.
type MIssuer struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	LastUpdated *time.Time `json:"last_updated"`
}

// MIssuerNews is a news headline published for an issuer.
type MIssuerNews struct {
	ID            int64     `json:"id"`
	IssuerID      int64     `json:"issuer_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	PublishedDate time.Time `json:"published_date"`
	SourceURL     string    `json:"source_url"`
}
