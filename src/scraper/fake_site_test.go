package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
)

const noDataSel = ".no-results"

// fakeSite answers a submitted query. Returning html == "" means "no data".
type fakeSite func(code, from, to string) (html string, err error)

type fakeSession struct {
	id       string
	site     fakeSite
	options  string
	fields   map[string]string
	html     string
	err      error
	closed   atomic.Bool
	navigate error
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Navigate(context.Context, string) error {
	s.fields = map[string]string{}
	s.html, s.err = "", nil
	return s.navigate
}

func (s *fakeSession) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	if sel == SelCode && s.options == "" {
		return helpers.NewTimeoutError(nil, "wait for %s", sel)
	}
	return nil
}

func (s *fakeSession) SetValue(_ context.Context, sel, v string) error {
	s.fields[sel] = v
	return nil
}

func (s *fakeSession) Click(context.Context, string) error {
	s.html, s.err = s.site(s.fields[SelCode], s.fields[SelFromDate], s.fields[SelToDate])
	return nil
}

func (s *fakeSession) WaitAny(_ context.Context, sels []string, _ time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.html == "" {
		return sels[1], nil
	}
	return sels[0], nil
}

func (s *fakeSession) Evaluate(context.Context, string, interface{}) error { return nil }

func (s *fakeSession) OuterHTML(_ context.Context, sel string) (string, error) {
	if sel == SelCode {
		return s.options, nil
	}
	return s.html, nil
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

// -----------------------------------------------------------------------------

// fakePool hands out fresh fake sessions and records what came back.
type fakePool struct {
	site       fakeSite
	options    string
	mu         sync.Mutex
	made       int
	released   int
	discarded  int
	acquireErr error
}

func (p *fakePool) Acquire(context.Context) (interfaces.ISession, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.made++
	return &fakeSession{id: fmt.Sprintf("f%d", p.made), site: p.site, options: p.options, fields: map[string]string{}}, nil
}

func (p *fakePool) Release(interfaces.ISession) {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

func (p *fakePool) Discard(s interfaces.ISession) {
	p.mu.Lock()
	p.discarded++
	p.mu.Unlock()
	s.Close()
}

// -----------------------------------------------------------------------------

// tableFor renders one row per day with the day-of-month as volume.
func tableFor(from, to string) string {
	start, _ := ParseDate(from)
	end, _ := ParseDate(to)

	var b strings.Builder
	b.WriteString(`<table id="resultsTable"><thead><tr><th>Date</th><th>Last trade price</th><th>Max</th><th>Min</th>` +
		`<th>Avg. Price</th><th>%chg.</th><th>Volume</th><th>Turnover in BEST in denars</th><th>Total turnover in denars</th></tr></thead><tbody>`)
	// newest first, as the site renders it
	for d := end; !d.Before(start); d = d.AddDate(0, 0, -1) {
		fmt.Fprintf(&b, `<tr><td>%s</td><td>1,000.00</td><td>1,010.00</td><td>990.00</td><td>1,000.00</td><td>0.10</td><td>%d</td><td>5,000</td><td>5,000</td></tr>`,
			FormatSiteDate(d), d.Day())
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

var errBrowserCrashed = errors.New("target closed")
