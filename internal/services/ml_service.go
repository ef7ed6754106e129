package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

const (
	// healthProbeTimeout bounds the liveness probe so a hung scorer
	// cannot stall submissions.
	healthProbeTimeout = 5 * time.Second

	// DefaultHealthTTL is how long a probe result is reused before a
	// fresh probe is made.
	DefaultHealthTTL = 30 * time.Second
)

// HealthCache caches the scorer liveness probe result for a TTL so the
// probe frequency stays bounded under concurrent submissions. It is an
// explicit injected component (not package state) so tests can build
// isolated instances.
type HealthCache struct {
	mu            sync.Mutex
	ttl           time.Duration
	lastCheckedAt time.Time
	cachedResult  bool
}

// NewHealthCache creates a health cache with the given TTL
func NewHealthCache(ttl time.Duration) *HealthCache {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	return &HealthCache{ttl: ttl}
}

// get returns the cached result and whether it is still fresh at now
func (c *HealthCache) get(now time.Time) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastCheckedAt.IsZero() || now.Sub(c.lastCheckedAt) >= c.ttl {
		return false, false
	}
	return c.cachedResult, true
}

// set stores a fresh probe result, resetting the TTL window
func (c *HealthCache) set(now time.Time, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCheckedAt = now
	c.cachedResult = healthy
}

// PredictionResult is the scorer's response payload
type PredictionResult struct {
	Probability  float64                     `json:"probability"`
	RiskBand     string                      `json:"risk_band"`
	ModelVersion string                      `json:"model_version"`
	Explanations []models.FeatureExplanation `json:"explanations"`
}

// predictRequest is the feature payload sent to the scorer
type predictRequest struct {
	Income         float64 `json:"income"`
	LoanAmount     float64 `json:"loanAmount"`
	Tenure         int     `json:"tenure"`
	EmploymentType string  `json:"employmentType"`
	ExistingEmis   float64 `json:"existingEmis"`
	CreditScore    int     `json:"creditScore"`
	Age            int     `json:"age"`
	Dependents     int     `json:"dependents"`
}

// MLService calls the external risk scoring service and shields the
// orchestrator from transient outages via the cached health probe.
type MLService struct {
	baseURL    string
	httpClient *http.Client
	health     *HealthCache
	now        func() time.Time
}

// NewMLService creates a scorer client from configuration
func NewMLService(cfg *config.Config) *MLService {
	return &MLService{
		baseURL: cfg.MLServiceURL,
		httpClient: &http.Client{
			Timeout: cfg.MLRequestTimeout,
		},
		health: NewHealthCache(cfg.MLHealthTTL),
		now:    time.Now,
	}
}

// NewMLServiceWithCache creates a scorer client with an explicit health
// cache and clock, for tests and callers that share a cache.
func NewMLServiceWithCache(baseURL string, client *http.Client, health *HealthCache, now func() time.Time) *MLService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if now == nil {
		now = time.Now
	}
	return &MLService{baseURL: baseURL, httpClient: client, health: health, now: now}
}

// CheckHealth reports scorer liveness. Within the cache TTL the cached
// result is returned without probing; otherwise a bounded GET /health
// is made and its outcome cached. A timed-out probe counts as unhealthy.
func (s *MLService) CheckHealth(ctx context.Context) bool {
	now := s.now()
	if cached, ok := s.health.get(now); ok {
		return cached
	}

	healthy := s.probe(ctx)
	s.health.set(now, healthy)
	return healthy
}

func (s *MLService) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn("ML service health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Predict obtains a default-probability estimate for the application.
// When the cached health probe says the scorer is down it fails fast
// with ErrScorerUnavailable without attempting the call. Non-2xx
// responses and malformed payloads return a ScorerError carrying the
// upstream status and body.
func (s *MLService) Predict(ctx context.Context, app *models.LoanApplication) (*PredictionResult, error) {
	if !s.CheckHealth(ctx) {
		return nil, ErrScorerUnavailable
	}

	payload := predictRequest{
		Income:         app.Income,
		LoanAmount:     app.LoanAmount,
		Tenure:         app.Tenure,
		EmploymentType: app.EmploymentType,
		ExistingEmis:   app.ExistingEmis,
		CreditScore:    app.CreditScore,
		Age:            app.Age,
		Dependents:     app.Dependents,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ScorerError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ScorerError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("ML service returned error",
			"status", resp.StatusCode,
			"body", string(respBody))
		return nil, &ScorerError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result PredictionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ScorerError{StatusCode: resp.StatusCode, Body: string(respBody), Err: err}
	}

	logger.Info("ML prediction received",
		"probability", result.Probability,
		"risk_band", result.RiskBand,
		"model_version", result.ModelVersion)

	return &result, nil
}
