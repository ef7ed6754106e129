package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/creditiq/creditiq-api/internal/models"
)

// fakeClock drives the health cache TTL without sleeping
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

type scorerBackend struct {
	healthy       atomic.Bool
	healthProbes  atomic.Int64
	predictCalls  atomic.Int64
	predictStatus int
	predictBody   string
}

func newScorerBackend() (*scorerBackend, *httptest.Server) {
	b := &scorerBackend{
		predictStatus: http.StatusOK,
		predictBody: `{
			"probability": 0.12,
			"risk_band": "LOW",
			"model_version": "v4",
			"explanations": [
				{"feature": "creditScore", "impact": "positive", "value": 720, "contribution": 0.4}
			]
		}`,
	}
	b.healthy.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			b.healthProbes.Add(1)
			if b.healthy.Load() {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		case "/predict":
			b.predictCalls.Add(1)
			w.WriteHeader(b.predictStatus)
			w.Write([]byte(b.predictBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	return b, server
}

func TestMLService_CheckHealth_CachesWithinTTL(t *testing.T) {
	backend, server := newScorerBackend()
	defer server.Close()

	clock := &fakeClock{current: time.Now()}
	svc := NewMLServiceWithCache(server.URL, server.Client(), NewHealthCache(30*time.Second), clock.now)

	assert.True(t, svc.CheckHealth(context.Background()))
	assert.Equal(t, int64(1), backend.healthProbes.Load())

	// Scorer goes down, but the cached healthy result is still fresh
	backend.healthy.Store(false)
	clock.advance(10 * time.Second)
	assert.True(t, svc.CheckHealth(context.Background()))
	assert.Equal(t, int64(1), backend.healthProbes.Load(), "no probe within the TTL")

	// Past the TTL the next call probes again and observes the outage
	clock.advance(25 * time.Second)
	assert.False(t, svc.CheckHealth(context.Background()))
	assert.Equal(t, int64(2), backend.healthProbes.Load())
}

func TestMLService_CheckHealth_CachesUnhealthyResult(t *testing.T) {
	backend, server := newScorerBackend()
	defer server.Close()
	backend.healthy.Store(false)

	clock := &fakeClock{current: time.Now()}
	svc := NewMLServiceWithCache(server.URL, server.Client(), NewHealthCache(30*time.Second), clock.now)

	assert.False(t, svc.CheckHealth(context.Background()))
	clock.advance(5 * time.Second)
	assert.False(t, svc.CheckHealth(context.Background()))
	assert.Equal(t, int64(1), backend.healthProbes.Load())
}

func TestMLService_Predict_Success(t *testing.T) {
	backend, server := newScorerBackend()
	defer server.Close()

	clock := &fakeClock{current: time.Now()}
	svc := NewMLServiceWithCache(server.URL, server.Client(), NewHealthCache(30*time.Second), clock.now)

	result, err := svc.Predict(context.Background(), eligibleApplication())

	assert.NoError(t, err)
	assert.Equal(t, 0.12, result.Probability)
	assert.Equal(t, models.RiskBandLow, result.RiskBand)
	assert.Equal(t, "v4", result.ModelVersion)
	assert.Len(t, result.Explanations, 1)
	assert.Equal(t, "creditScore", result.Explanations[0].Feature)
	assert.Equal(t, int64(1), backend.predictCalls.Load())
}

func TestMLService_Predict_FailsFastWhenCachedUnhealthy(t *testing.T) {
	backend, server := newScorerBackend()
	defer server.Close()
	backend.healthy.Store(false)

	clock := &fakeClock{current: time.Now()}
	svc := NewMLServiceWithCache(server.URL, server.Client(), NewHealthCache(30*time.Second), clock.now)

	// Populate the cache with the failed probe
	assert.False(t, svc.CheckHealth(context.Background()))

	// The scorer recovers, but the cached result still says down:
	// Predict must fail fast without calling /predict
	backend.healthy.Store(true)
	clock.advance(10 * time.Second)

	result, err := svc.Predict(context.Background(), eligibleApplication())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrScorerUnavailable)
	assert.Equal(t, int64(0), backend.predictCalls.Load())
}

func TestMLService_Predict_UpstreamError(t *testing.T) {
	backend, server := newScorerBackend()
	defer server.Close()
	backend.predictStatus = http.StatusInternalServerError
	backend.predictBody = `{"detail": "model not loaded"}`

	clock := &fakeClock{current: time.Now()}
	svc := NewMLServiceWithCache(server.URL, server.Client(), NewHealthCache(30*time.Second), clock.now)

	result, err := svc.Predict(context.Background(), eligibleApplication())

	assert.Nil(t, result)
	var scorerErr *ScorerError
	assert.True(t, errors.As(err, &scorerErr))
	assert.Equal(t, http.StatusInternalServerError, scorerErr.StatusCode)
	assert.Contains(t, scorerErr.Body, "model not loaded")
}

func TestMLService_Predict_MalformedResponse(t *testing.T) {
	backend, server := newScorerBackend()
	defer server.Close()
	backend.predictBody = `not-json`

	clock := &fakeClock{current: time.Now()}
	svc := NewMLServiceWithCache(server.URL, server.Client(), NewHealthCache(30*time.Second), clock.now)

	result, err := svc.Predict(context.Background(), eligibleApplication())

	assert.Nil(t, result)
	var scorerErr *ScorerError
	assert.True(t, errors.As(err, &scorerErr))
	assert.Equal(t, http.StatusOK, scorerErr.StatusCode)
}
