package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
	"mse-pipeline/src/scraper"

	"github.com/PuerkitoBio/goquery"
)

const newsItemSelector = "#seiNetIssuerLatestNews li"

// Collector pulls the latest headlines from each issuer's profile page.
// Requests go through the network manager, whose limiter spaces them out.
type Collector struct {
	net     interfaces.INetworkManager
	db      interfaces.IDatabase
	pageURL string
	logger  *logger.Logger
}

// NewCollector builds a collector for profile pages under baseURL+issuerPath.
func NewCollector(net interfaces.INetworkManager, db interfaces.IDatabase, baseURL, issuerPath string, log *logger.Logger) *Collector {
	return &Collector{
		net:     net,
		db:      db,
		pageURL: strings.TrimRight(baseURL, "/") + "/" + strings.Trim(issuerPath, "/") + "/",
		logger:  log,
	}
}

// -----------------------------------------------------------------------------

// IssuerURL returns the profile page of an issuer. The exchange keys profiles
// by display name with spaces replaced by dashes; the code is used when the
// name is unknown.
func (c *Collector) IssuerURL(issuer models.MIssuer) string {
	name := strings.TrimSpace(issuer.Name)
	if name == "" {
		name = issuer.Code
	}
	return c.pageURL + url.PathEscape(strings.Join(strings.Fields(name), "-"))
}

// -----------------------------------------------------------------------------

// Collect fetches news for every issuer in turn. A failing issuer is logged
// and skipped. It returns the number of newly stored items.
func (c *Collector) Collect(ctx context.Context, issuers []models.MIssuer) (int, error) {
	added, failed := 0, 0
	for _, issuer := range issuers {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		n, err := c.CollectIssuer(ctx, issuer)
		if err != nil {
			failed++
			c.logger.Error("Error processing news for %s: %v", issuer.Code, err)
			continue
		}
		added += n
	}

	c.logger.Info("Stored %d new news items for %d issuers (%d failed)", added, len(issuers), failed)
	if len(issuers) > 0 && failed == len(issuers) {
		return added, fmt.Errorf("news collection failed for all %d issuers", failed)
	}
	return added, nil
}

// -----------------------------------------------------------------------------

// CollectIssuer fetches and stores the headlines of one issuer.
func (c *Collector) CollectIssuer(ctx context.Context, issuer models.MIssuer) (int, error) {
	pageURL := c.IssuerURL(issuer)
	c.logger.Info("Fetching news for %s from %s", issuer.Code, pageURL)

	body, err := c.net.Get(ctx, pageURL, nil)
	if err != nil {
		return 0, err
	}

	items, err := ParseNews(body, pageURL, c.logger)
	if err != nil {
		return 0, err
	}
	if items == nil {
		c.logger.Warning("No news section found for %s", issuer.Code)
		return 0, nil
	}

	for i := range items {
		items[i].IssuerID = issuer.ID
	}
	added, err := c.db.SaveNews(ctx, items)
	if err != nil {
		return 0, helpers.NewPersistenceFailureError(err, "save news for %s", issuer.Code)
	}
	c.logger.Debug("Added %d/%d news items for %s", added, len(items), issuer.Code)
	return added, nil
}

// -----------------------------------------------------------------------------

// ParseNews extracts the latest-news list of a profile page. Each entry's h4
// reads "MM/DD/YYYY - Title" and its link is the source URL, resolved against
// pageURL. Malformed entries are logged and skipped. A page without a news
// section yields nil.
func ParseNews(html []byte, pageURL string, log *logger.Logger) ([]models.MIssuerNews, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, helpers.NewParseFailureError(err, "parse issuer page")
	}
	if doc.Find("#seiNetIssuerLatestNews").Length() == 0 {
		return nil, nil
	}

	base, _ := url.Parse(pageURL)
	items := []models.MIssuerNews{}
	doc.Find(newsItemSelector).Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a").First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}

		heading := strings.TrimSpace(li.Find("h4").First().Text())
		dateStr, title, found := strings.Cut(heading, " - ")
		if !found {
			log.Warning("Skipping news entry without date: %q", heading)
			return
		}
		published, err := scraper.ParseDate(dateStr)
		if err != nil {
			log.Error("Could not parse date: %s", dateStr)
			return
		}

		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		items = append(items, models.MIssuerNews{
			Title:         strings.TrimSpace(title),
			PublishedDate: published,
			SourceURL:     href,
		})
	})
	return items, nil
}
