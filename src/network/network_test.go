package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mse-pipeline/src/helpers"
	"mse-pipeline/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	retryBaseDelay = time.Millisecond
}

func newManager(retries int) *AsyncNetworkManager {
	cfg := &models.MConfig{Network: models.MNetworkConfig{
		RequestTimeout: 5,
		MaxRetries:     retries,
		UserAgent:      "mse-test/1.0",
	}}
	return NewAsyncNetworkManager(cfg, nil, nil)
}

func TestGetSendsParamsAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mse-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "ALK", r.URL.Query().Get("code"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newManager(0).Get(context.Background(), srv.URL+"/issuer", map[string]string{"code": "ALK"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestGetRetriesBlockedResponses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	body, err := newManager(3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestGetGivesUpAfterRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newManager(2).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	var netErr *helpers.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestGetNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newManager(3).Get(context.Background(), srv.URL, nil)
	assert.True(t, helpers.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetHonoursRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	nm := newManager(0)
	nm.Config.Network.RequestsPerSecond = 20
	nm.Limiter.SetLimit(20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := nm.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
