package scraper

import (
	"fmt"
	"strings"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Canonical column names, shared by scraped tables and CSV artifacts.
const (
	FieldDate           = "date"
	FieldLastTradePrice = "last_trade_price"
	FieldMaxPrice       = "max_price"
	FieldMinPrice       = "min_price"
	FieldAvgPrice       = "avg_price"
	FieldPriceChange    = "price_change"
	FieldVolume         = "volume"
	FieldTurnoverBest   = "turnover_best"
	FieldTotalTurnover  = "total_turnover"
)

// Columns is the artifact column order.
var Columns = []string{
	FieldDate, FieldLastTradePrice, FieldMaxPrice, FieldMinPrice, FieldAvgPrice,
	FieldPriceChange, FieldVolume, FieldTurnoverBest, FieldTotalTurnover,
}

// headerFields maps lower-cased site headers to canonical names. Canonical
// names map to themselves so artifact headers go through the same lookup.
var headerFields = func() map[string]string {
	m := map[string]string{
		"date":                       FieldDate,
		"last trade price":           FieldLastTradePrice,
		"max":                        FieldMaxPrice,
		"min":                        FieldMinPrice,
		"avg. price":                 FieldAvgPrice,
		"%chg.":                      FieldPriceChange,
		"volume":                     FieldVolume,
		"turnover in best in denars": FieldTurnoverBest,
		"total turnover in denars":   FieldTotalTurnover,
	}
	for _, c := range Columns {
		m[c] = c
	}
	return m
}()

var dateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02"}

// -----------------------------------------------------------------------------

// CanonicalHeader maps a raw header to its field name. Unknown headers come
// back lower-cased and trimmed, and are ignored by NormalizeRow.
func CanonicalHeader(raw string) string {
	h := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if f, ok := headerFields[h]; ok {
		return f
	}
	return h
}

// -----------------------------------------------------------------------------

// ParseDate accepts the site's M/D/YYYY and the artifact's ISO form.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, helpers.NewParseFailureError(nil, "unrecognised date %q", s)
}

// -----------------------------------------------------------------------------

// Normalizer turns canonical-keyed cell maps into rows. Malformed numeric
// cells become zero and are logged; the row is kept.
type Normalizer struct {
	logger *logger.Logger
}

func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// -----------------------------------------------------------------------------

// Row builds one MPriceRow. ok is false only when the date cannot be parsed.
func (n *Normalizer) Row(cells map[string]string, context string) (row models.MPriceRow, ok bool) {
	date, err := ParseDate(cells[FieldDate])
	if err != nil {
		n.logger.Warning("%s: skipping row: %v", context, err)
		return row, false
	}
	row.Date = date

	row.LastTradePrice = n.decimal(cells, FieldLastTradePrice, context)
	row.MaxPrice = n.decimal(cells, FieldMaxPrice, context)
	row.MinPrice = n.decimal(cells, FieldMinPrice, context)
	row.AvgPrice = n.decimal(cells, FieldAvgPrice, context)
	row.PriceChange = n.decimal(cells, FieldPriceChange, context)
	row.Volume = n.decimal(cells, FieldVolume, context).IntPart()
	row.TurnoverBest = n.decimal(cells, FieldTurnoverBest, context)
	row.TotalTurnover = n.decimal(cells, FieldTotalTurnover, context)
	return row, true
}

// -----------------------------------------------------------------------------

func (n *Normalizer) decimal(cells map[string]string, field, context string) decimal.Decimal {
	raw := strings.TrimSpace(strings.ReplaceAll(cells[field], ",", ""))
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" || raw == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		n.logger.Warning("%s: %s=%q is not numeric, using 0", context, field, cells[field])
		return decimal.Zero
	}
	return d
}

// -----------------------------------------------------------------------------

// ParseTable reads the #resultsTable markup. A table without body rows
// yields an empty slice, not an error.
func (n *Normalizer) ParseTable(html, context string) ([]models.MPriceRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, helpers.NewParseFailureError(err, "%s: read results table", context)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, helpers.NewParseFailureError(nil, "%s: no table in markup", context)
	}

	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, CanonicalHeader(th.Text()))
	})
	if len(headers) == 0 {
		return nil, helpers.NewParseFailureError(nil, "%s: table has no header", context)
	}
	if !containsString(headers, FieldDate) {
		return nil, helpers.NewParseFailureError(nil, "%s: no date column in %v", context, headers)
	}

	rows := []models.MPriceRow{}
	table.Find("tbody tr").Each(func(i int, tr *goquery.Selection) {
		cells := make(map[string]string, len(headers))
		tr.Find("td").Each(func(j int, td *goquery.Selection) {
			if j < len(headers) {
				cells[headers[j]] = strings.TrimSpace(td.Text())
			}
		})
		if len(cells) == 0 {
			return
		}
		if row, ok := n.Row(cells, fmt.Sprintf("%s row %d", context, i+1)); ok {
			rows = append(rows, row)
		}
	})
	return rows, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
