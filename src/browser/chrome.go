package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

const pollInterval = 200 * time.Millisecond

// -----------------------------------------------------------------------------

// ChromeFactory launches one headless Chrome process per session, so a crashed
// renderer only takes its own session down.
type ChromeFactory struct {
	cfg     models.MBrowserConfig
	proxies interfaces.IProxyManager
	logger  *logger.Logger
}

func NewChromeFactory(cfg models.MBrowserConfig, proxies interfaces.IProxyManager, log *logger.Logger) *ChromeFactory {
	return &ChromeFactory{cfg: cfg, proxies: proxies, logger: log}
}

// -----------------------------------------------------------------------------

func (f *ChromeFactory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.DisableGPU,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(f.cfg.WindowWidth, f.cfg.WindowHeight),
	)
	if f.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}
	if f.proxies != nil {
		if ua := f.proxies.GetUserAgent(); ua != "" {
			opts = append(opts, chromedp.UserAgent(ua))
		}
		if proxy := f.proxies.NextProxy(); proxy != "" {
			opts = append(opts, chromedp.ProxyServer(proxy))
		}
	}
	return opts
}

// -----------------------------------------------------------------------------

// NewSession starts a browser. The session outlives ctx; ctx only bounds the launch.
func (f *ChromeFactory) NewSession(ctx context.Context) (interfaces.ISession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), f.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(f.logger.Debug))

	s := &ChromeSession{
		id:          uuid.NewString()[:8],
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	launched := make(chan error, 1)
	go func() {
		launched <- chromedp.Run(tabCtx, network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}))
	}()

	select {
	case err := <-launched:
		if err != nil {
			s.Close()
			return nil, helpers.NewSessionFailureError(err, "launch browser")
		}
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	return s, nil
}

// -----------------------------------------------------------------------------

// ChromeSession drives one chromedp tab.
type ChromeSession struct {
	id          string
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

func (s *ChromeSession) ID() string { return s.id }

// -----------------------------------------------------------------------------

// run executes actions on the tab, bounded by both ctx and timeout.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, op string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return helpers.NewTimeoutError(err, "%s exceeded %v", op, timeout)
	}
	if s.tabCtx.Err() != nil {
		return helpers.NewSessionFailureError(err, "%s: browser gone", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// -----------------------------------------------------------------------------

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, 30*time.Second, "navigate "+url, chromedp.Navigate(url))
	if err != nil && !helpers.IsTimeout(err) && !helpers.IsSessionFailure(err) && ctx.Err() == nil {
		return helpers.NewSessionFailureError(err, "navigate")
	}
	return err
}

func (s *ChromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, "wait for "+selector, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// -----------------------------------------------------------------------------

// WaitAny polls the DOM until one of selectors matches.
func (s *ChromeSession) WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	quoted := make([]string, len(selectors))
	for i, sel := range selectors {
		quoted[i] = strconv.Quote(sel)
	}
	script := fmt.Sprintf(`(() => { for (const s of [%s]) { if (document.querySelector(s)) return s; } return ""; })()`,
		strings.Join(quoted, ","))

	deadline := time.Now().Add(timeout)
	for {
		var found string
		if err := s.run(ctx, timeout, "probe selectors", chromedp.Evaluate(script, &found)); err != nil {
			// the document is swapped out while a submitted form navigates
			if ctx.Err() != nil || helpers.IsSessionFailure(err) {
				return "", err
			}
			found = ""
		}
		if found != "" {
			return found, nil
		}
		if time.Now().After(deadline) {
			return "", helpers.NewTimeoutError(nil, "none of %v appeared within %v", selectors, timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// -----------------------------------------------------------------------------

// SetValue assigns the value and fires change so the page's own handlers see it.
func (s *ChromeSession) SetValue(ctx context.Context, selector, value string) error {
	fire := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (el) el.dispatchEvent(new Event("change", {bubbles: true})); return !!el; })()`,
		strconv.Quote(selector))
	var ok bool
	err := s.run(ctx, 10*time.Second, "set "+selector,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(fire, &ok),
	)
	if err == nil && !ok {
		return fmt.Errorf("set %s: element not found", selector)
	}
	return err
}

func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, 10*time.Second, "click "+selector, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *ChromeSession) Evaluate(ctx context.Context, script string, out interface{}) error {
	return s.run(ctx, 10*time.Second, "evaluate", chromedp.Evaluate(script, out))
}

func (s *ChromeSession) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := s.run(ctx, 10*time.Second, "read "+selector, chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	return html, err
}

// -----------------------------------------------------------------------------

func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.allocCancel()
	})
	return nil
}
