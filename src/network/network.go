package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"

	"golang.org/x/time/rate"
)

var retryBaseDelay = time.Second

// AsyncNetworkManager issues plain HTTP GETs against the exchange for pages
// that need no browser, such as issuer profiles.
type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Limiter      *rate.Limiter
	Logger       *logger.Logger

	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, proxies interfaces.IProxyManager, log *logger.Logger) *AsyncNetworkManager {
	if proxies == nil {
		var list []string
		if cfg.Network.Enabled {
			list = cfg.Network.Proxies
		}
		proxies = helpers.NewProxyManager(list, cfg.Network.UserAgent, log)
	}

	limit := rate.Inf
	if cfg.Network.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Network.RequestsPerSecond)
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: proxies,
		Limiter:      rate.NewLimiter(limit, 1),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	timeout := time.Duration(nm.Config.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	client := nm.createClient()
	nm.mu.Lock()
	nm.client = client
	nm.mu.Unlock()
}

func (nm *AsyncNetworkManager) httpClient() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.client
}

// -----------------------------------------------------------------------------

// Get performs a rate-limited GET with retries and proxy rotation. A 404 is
// returned immediately as a NotFoundError.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewConfigurationError(err, "invalid url %q", urlStr)
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	var (
		body     []byte
		notFound error
		attempt  int
	)
	err = helpers.RetryWithBackoff(ctx, nm.Logger, "GET "+finalURL, nm.Config.Network.MaxRetries+1, retryBaseDelay, func() error {
		attempt++
		if attempt > 1 {
			nm.rotateProxy()
		}
		if err := nm.Limiter.Wait(ctx); err != nil {
			return err
		}

		b, status, err := nm.do(ctx, finalURL)
		switch {
		case err != nil:
			return err
		case status == http.StatusNotFound:
			notFound = helpers.NewNotFoundError("%s returned 404", finalURL)
			return nil
		case status == http.StatusTooManyRequests || status == http.StatusForbidden:
			nm.Logger.Info("Request blocked (%d). Rotating proxy.", status)
			return fmt.Errorf("blocked (status %d)", status)
		case status != http.StatusOK:
			return fmt.Errorf("bad status: %d", status)
		}
		body = b
		return nil
	})

	if err != nil {
		if helpers.IsTimeout(err) {
			return nil, helpers.NewTimeoutError(err, "GET %s", finalURL)
		}
		return nil, helpers.NewNetworkError(err, "GET %s failed after %d attempts", finalURL, attempt)
	}
	if notFound != nil {
		return nil, notFound
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := nm.httpClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}
