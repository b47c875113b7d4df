package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// Disclosure pages are rendered client side, the article lives in the
// container under the app root.
const contentSelector = "#root main.main .container"

// ContentFetcher fills in the body text of stored headlines by rendering each
// source page in a browser session.
type ContentFetcher struct {
	pool    interfaces.ISessionPool
	db      interfaces.IDatabase
	wait    time.Duration
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewContentFetcher spaces page loads perSecond apart; zero disables the limit.
func NewContentFetcher(pool interfaces.ISessionPool, db interfaces.IDatabase, wait time.Duration, perSecond float64, log *logger.Logger) *ContentFetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &ContentFetcher{
		pool:    pool,
		db:      db,
		wait:    wait,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
	}
}

// -----------------------------------------------------------------------------

// FetchAll loads content for stored news, only items still without content
// when emptyOnly is set. Items that fail are logged and left untouched. It
// returns the number of items updated.
func (f *ContentFetcher) FetchAll(ctx context.Context, emptyOnly bool) (int, error) {
	items, err := f.db.ListNewsForContent(ctx, emptyOnly)
	if err != nil {
		return 0, fmt.Errorf("list news: %w", err)
	}
	f.logger.Info("Found %d news items to process", len(items))

	updated := 0
	for i, item := range items {
		if err := f.limiter.Wait(ctx); err != nil {
			return updated, err
		}
		if item.SourceURL == "" {
			f.logger.Warning("No source URL for news %d", item.ID)
			continue
		}

		f.logger.Debug("Processing %d/%d: %s", i+1, len(items), item.SourceURL)
		content, err := f.fetchOne(ctx, item)
		if err != nil {
			f.logger.Error("Error processing %s: %v", item.SourceURL, err)
			continue
		}
		if content == "" {
			f.logger.Warning("No content found in %s", item.SourceURL)
			continue
		}
		if err := f.db.UpdateNewsContent(ctx, item.ID, content); err != nil {
			f.logger.Error("Error saving content for news %d: %v", item.ID, err)
			continue
		}
		updated++
	}

	f.logger.Info("Updated content for %d of %d news items", updated, len(items))
	return updated, nil
}

// -----------------------------------------------------------------------------

func (f *ContentFetcher) fetchOne(ctx context.Context, item models.MIssuerNews) (string, error) {
	sess, err := f.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}

	html, err := f.render(ctx, sess, item.SourceURL)
	if err != nil {
		if helpers.IsSessionFailure(err) {
			f.pool.Discard(sess)
		} else {
			f.pool.Release(sess)
		}
		return "", err
	}
	f.pool.Release(sess)

	return ExtractContent(html)
}

func (f *ContentFetcher) render(ctx context.Context, sess interfaces.ISession, pageURL string) (string, error) {
	if err := sess.Navigate(ctx, pageURL); err != nil {
		return "", err
	}
	if err := sess.WaitVisible(ctx, contentSelector, f.wait); err != nil {
		return "", err
	}
	return sess.OuterHTML(ctx, contentSelector)
}

// -----------------------------------------------------------------------------

// ExtractContent flattens the rows of a rendered disclosure into plain text,
// one paragraph per row. Rows are walked down to their innermost divs; a leaf
// without text contributes its outbound links instead.
func ExtractContent(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", helpers.NewParseFailureError(err, "parse news page")
	}

	var parts []string
	doc.Find(".row").
		FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsFiltered(".row").Length() == 0
		}).
		Each(func(_ int, row *goquery.Selection) {
			if text := leafText(row); text != "" {
				parts = append(parts, text)
			}
		})

	return strings.Join(parts, "\n\n"), nil
}

func leafText(s *goquery.Selection) string {
	if s.Find("div").Length() == 0 {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			return text
		}
		var links []string
		s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			if href, _ := a.Attr("href"); href != "" && !strings.HasPrefix(href, "#") {
				links = append(links, "Link: "+href)
			}
		})
		return strings.Join(links, "\n")
	}

	// only divs whose nearest div ancestor is s, deeper ones are reached by recursion
	var texts []string
	s.Find("div").
		FilterFunction(func(_ int, d *goquery.Selection) bool {
			return nearestBlock(d, s).IsSelection(s)
		}).
		Each(func(_ int, d *goquery.Selection) {
			if text := leafText(d); text != "" {
				texts = append(texts, text)
			}
		})
	return strings.Join(texts, "\n")
}

// nearestBlock walks up from d to the first div ancestor, stopping at root.
func nearestBlock(d, root *goquery.Selection) *goquery.Selection {
	p := d.Parent()
	for p.Length() > 0 && !p.IsSelection(root) && !p.Is("div") {
		p = p.Parent()
	}
	return p
}
