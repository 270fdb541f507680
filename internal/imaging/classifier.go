package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mbd888/fraudguard/internal/circuitbreaker"
	"github.com/mbd888/fraudguard/internal/retry"
)

const breakerKey = "classifier"

// HTTPClassifier calls an external classification sidecar. Transient
// failures are retried once with backoff; a circuit breaker keeps a
// flapping sidecar from stalling every return filing. While the circuit
// is open, Classify fails fast with ErrAnalysisUnavailable and callers
// take the degraded path.
type HTTPClassifier struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPClassifier creates a classifier client for the given endpoint.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, imageRef string) (*Classification, error) {
	var result *Classification
	err := retry.Do(ctx, 2, 200*time.Millisecond, func() error {
		if !c.breaker.Allow(breakerKey) {
			return retry.Permanent(fmt.Errorf("%w: classifier circuit open", ErrAnalysisUnavailable))
		}
		r, err := c.classifyOnce(ctx, imageRef)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *HTTPClassifier) classifyOnce(ctx context.Context, imageRef string) (*Classification, error) {
	body, err := json.Marshal(map[string]string{"image": imageRef})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: classifier returned %d", ErrAnalysisUnavailable, resp.StatusCode)
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: bad classifier response: %v", ErrAnalysisUnavailable, err)
	}

	c.breaker.RecordSuccess(breakerKey)
	return &result, nil
}

var _ Classifier = (*HTTPClassifier)(nil)

// StubClassifier produces deterministic classifications from the image
// reference alone. Used in demo mode when no sidecar is configured: a
// ref like "photos/torn-shirt-2.jpg" classifies as a damaged shirt.
type StubClassifier struct{}

func (StubClassifier) Classify(_ context.Context, imageRef string) (*Classification, error) {
	ref := strings.ToLower(imageRef)

	label := "unknown item"
	for _, word := range fashionVocabulary {
		if strings.Contains(ref, word) {
			label = word
			break
		}
	}
	for _, kw := range damageKeywords {
		if strings.Contains(ref, kw) {
			label = kw + " " + label
			break
		}
	}

	c := &Classification{Label: label, Confidence: 0.92, Authenticity: 0.95}
	if strings.Contains(ref, "blurry") {
		c.Confidence = 0.45
	}
	if strings.Contains(ref, "replica") || strings.Contains(ref, "counterfeit") {
		c.Authenticity = 0.4
	}
	return c, nil
}

var _ Classifier = StubClassifier{}
