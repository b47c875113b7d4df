package scraper

import (
	"context"
	"strings"
	"time"
	"unicode"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"github.com/PuerkitoBio/goquery"
)

// Element selectors of the symbol-history page.
const (
	SelCode     = "#Code"
	SelFromDate = "#FromDate"
	SelToDate   = "#ToDate"
	SelSubmit   = "input[type='submit'][value='Find']"
	SelResults  = "#resultsTable"
)

// -----------------------------------------------------------------------------

// SymbolLister reads the symbol catalog from the #Code selector.
type SymbolLister struct {
	pool    interfaces.ISessionPool
	pageURL string
	wait    time.Duration
	logger  *logger.Logger
}

func NewSymbolLister(pool interfaces.ISessionPool, pageURL string, wait time.Duration, log *logger.Logger) *SymbolLister {
	return &SymbolLister{pool: pool, pageURL: pageURL, wait: wait, logger: log}
}

// -----------------------------------------------------------------------------

// ListSymbols returns every option whose code has no digit, in page order.
func (l *SymbolLister) ListSymbols(ctx context.Context) ([]models.MSymbol, error) {
	sess, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	html, err := l.readSelect(ctx, sess)
	if err != nil {
		if helpers.IsSessionFailure(err) {
			l.pool.Discard(sess)
		} else {
			l.pool.Release(sess)
		}
		return nil, err
	}
	l.pool.Release(sess)

	options, err := ParseSymbolOptions(html)
	if err != nil {
		return nil, err
	}

	symbols := FilterSymbols(options)
	l.logger.Info("Found %d symbols (%d options on page)", len(symbols), len(options))
	return symbols, nil
}

// -----------------------------------------------------------------------------

func (l *SymbolLister) readSelect(ctx context.Context, sess interfaces.ISession) (string, error) {
	if err := sess.Navigate(ctx, l.pageURL); err != nil {
		return "", err
	}
	if err := sess.WaitVisible(ctx, SelCode, l.wait); err != nil {
		return "", err
	}
	return sess.OuterHTML(ctx, SelCode)
}

// -----------------------------------------------------------------------------

// ParseSymbolOptions extracts (value, text) from every <option> in the markup.
func ParseSymbolOptions(html string) ([]models.MSymbol, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, helpers.NewParseFailureError(err, "read symbol selector")
	}

	var out []models.MSymbol
	doc.Find("option").Each(func(_ int, opt *goquery.Selection) {
		code, ok := opt.Attr("value")
		if !ok {
			code = opt.Text()
		}
		out = append(out, models.MSymbol{
			Code:        strings.TrimSpace(code),
			DisplayName: strings.TrimSpace(opt.Text()),
		})
	})
	return out, nil
}

// -----------------------------------------------------------------------------

// FilterSymbols drops codes containing a digit (bond and numeric entries)
// and blank codes. Order is preserved; duplicates are not removed.
func FilterSymbols(in []models.MSymbol) []models.MSymbol {
	out := make([]models.MSymbol, 0, len(in))
	for _, s := range in {
		if s.Code == "" || strings.IndexFunc(s.Code, unicode.IsDigit) >= 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}
