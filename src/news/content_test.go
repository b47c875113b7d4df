package news

import (
	"context"
	"errors"
	"testing"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const disclosurePage = `<div class="container">
  <div class="row"><div class="col"><div><h3>Notice of AGM</h3></div><div>Held on 25 April 2024.</div></div></div>
  <div class="row"><div class="col"><a href="#top"></a><a href="https://www.seinet.com.mk/file/agm.pdf"></a></div></div>
  <div class="row"><div class="col">   </div></div>
</div>`

// pageSession serves canned markup per URL; an unknown URL times out.
type pageSession struct {
	pages   map[string]string
	current string
}

func (s *pageSession) ID() string { return "fake" }

func (s *pageSession) Navigate(ctx context.Context, url string) error {
	s.current = url
	return nil
}

func (s *pageSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if _, ok := s.pages[s.current]; !ok {
		return helpers.NewTimeoutError(errors.New("deadline"), "wait %s", selector)
	}
	return nil
}

func (s *pageSession) WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	return "", errors.New("not supported")
}

func (s *pageSession) SetValue(ctx context.Context, selector, value string) error { return nil }
func (s *pageSession) Click(ctx context.Context, selector string) error           { return nil }

func (s *pageSession) Evaluate(ctx context.Context, script string, out interface{}) error {
	return nil
}

func (s *pageSession) OuterHTML(ctx context.Context, selector string) (string, error) {
	return s.pages[s.current], nil
}

func (s *pageSession) Close() error { return nil }

type singlePool struct {
	sess               interfaces.ISession
	released, discards int
}

func (p *singlePool) Acquire(ctx context.Context) (interfaces.ISession, error) { return p.sess, nil }
func (p *singlePool) Release(s interfaces.ISession)                            { p.released++ }
func (p *singlePool) Discard(s interfaces.ISession)                            { p.discards++ }

// -----------------------------------------------------------------------------

func TestExtractContent(t *testing.T) {
	text, err := ExtractContent(disclosurePage)
	require.NoError(t, err)
	assert.Equal(t, "Notice of AGM\nHeld on 25 April 2024.\n\nLink: https://www.seinet.com.mk/file/agm.pdf", text)
}

func TestContentFetcherUpdatesStoredNews(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	issuer, err := db.UpsertIssuer(ctx, "ALK", "Alkaloid AD Skopje")
	require.NoError(t, err)

	_, err = db.SaveNews(ctx, []models.MIssuerNews{
		{IssuerID: issuer.ID, Title: "AGM", PublishedDate: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), SourceURL: "https://www.seinet.com.mk/document/101"},
		{IssuerID: issuer.ID, Title: "Gone", PublishedDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), SourceURL: "https://www.seinet.com.mk/document/404"},
	})
	require.NoError(t, err)

	pool := &singlePool{sess: &pageSession{pages: map[string]string{
		"https://www.seinet.com.mk/document/101": disclosurePage,
	}}}
	f := NewContentFetcher(pool, db, time.Second, 0, nil)

	updated, err := f.FetchAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 2, pool.released)
	assert.Zero(t, pool.discards)

	pending, err := db.ListNewsForContent(ctx, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Gone", pending[0].Title)

	// a second pass over empty items only retries the failing one
	updated, err = f.FetchAll(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
