package webrisk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "phishguard/internal/errors"
	"phishguard/internal/metrics"
	"phishguard/internal/models"
	"phishguard/internal/tracing"
	"phishguard/pkg/circuitbreaker"
	"phishguard/pkg/webrisk/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	breakerName     = "webrisk"
	maxResponseSize = 1 << 20
	evaluateMethod  = ":evaluateUri"
)

// Client evaluates a single URI against the threat oracle
type Client interface {
	EvaluateURI(ctx context.Context, uri string) (*types.EvaluateURIResponse, error)
}

// WebRiskClient talks to the evaluateUri endpoint behind a circuit breaker
type WebRiskClient struct {
	endpoint    string
	endpointErr error
	apiKey      string
	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	logger      *logrus.Logger
	metrics     *metrics.Registry
}

// NewClient builds a client from oracle settings. A nil httpClient gets one
// honouring the configured connect and read timeouts.
func NewClient(cfg models.OracleConfig, httpClient *http.Client, logger *logrus.Logger, registry *metrics.Registry) *WebRiskClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	if httpClient == nil {
		httpClient = newHTTPClient(
			time.Duration(cfg.ConnectTimeoutMs)*time.Millisecond,
			time.Duration(cfg.ReadTimeoutMs)*time.Millisecond,
		)
	}

	breaker := circuitbreaker.NewWithConfig(breakerName, circuitbreaker.Config{
		MaxFailures: uint32(max(cfg.BreakerMaxFailures, 0)),
		Timeout:     time.Duration(cfg.BreakerTimeoutSec) * time.Second,
		IsFailure:   apperrors.IsRetryable,
	}, logger)

	endpoint, endpointErr := evaluateEndpoint(cfg.BaseURL)
	if endpointErr != nil {
		logger.WithError(endpointErr).Error("Threat oracle base URL is unusable")
	}

	return &WebRiskClient{
		endpoint:    endpoint,
		endpointErr: endpointErr,
		apiKey:      cfg.APIKey,
		client:      httpClient,
		breaker:     breaker,
		logger:      logger,
		metrics:     registry,
	}
}

// evaluateEndpoint appends the evaluateUri method to the base URL path.
// A base without a path maps to "/:evaluateUri".
func evaluateEndpoint(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid oracle base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid oracle base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid oracle base URL %q: missing host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + evaluateMethod
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// ValidateBaseURL reports whether baseURL can address the evaluateUri endpoint
func ValidateBaseURL(baseURL string) error {
	_, err := evaluateEndpoint(baseURL)
	return err
}

func newHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   connectTimeout + readTimeout,
	}
}

// BreakerState exposes the oracle circuit state for health reporting
func (c *WebRiskClient) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}

// EvaluateURI scores uri against the default threat types. A nil response with
// a nil error means the oracle answered with an empty body.
func (c *WebRiskClient) EvaluateURI(ctx context.Context, uri string) (*types.EvaluateURIResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "webrisk.evaluate_uri", attribute.String("url.host", hostOf(uri)))
	defer span.End()

	var result *types.EvaluateURIResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = c.evaluate(ctx, uri)
		return callErr
	})
	if err == nil {
		return result, nil
	}

	if circuitbreaker.IsCircuitBreakerError(err) {
		c.metrics.WebRiskFailure("circuit_open")
		err = apperrors.NewCircuitOpenError(breakerName, err)
	} else if apperrors.IsRetryable(err) {
		c.metrics.WebRiskFailure("transient")
	} else {
		c.metrics.WebRiskFailure("permanent")
	}

	tracing.RecordError(ctx, err)
	c.logger.WithFields(logrus.Fields{
		"host":       hostOf(uri),
		"error_code": apperrors.GetCode(err),
		"retryable":  apperrors.IsRetryable(err),
	}).WithError(err).Warn("Threat oracle evaluation failed")
	return nil, err
}

func (c *WebRiskClient) evaluate(ctx context.Context, uri string) (*types.EvaluateURIResponse, error) {
	if c.endpointErr != nil {
		return nil, apperrors.Wrap(c.endpointErr, apperrors.ErrCodeInternalError, "threat oracle endpoint is not configured")
	}
	endpoint := c.endpoint

	payload, err := json.Marshal(types.EvaluateURIRequest{
		URI:         uri,
		ThreatTypes: types.DefaultThreatTypes,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to marshal oracle request")
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+query.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create oracle request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	c.metrics.WebRiskCall(time.Since(start))
	if err != nil {
		return nil, apperrors.NewOracleError(endpoint, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, apperrors.NewOracleError(endpoint, 0, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewOracleError(endpoint, resp.StatusCode,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var result types.EvaluateURIResponse
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeOracleRejected, "malformed threat oracle response").
			WithContext("endpoint", endpoint)
	}
	return &result, nil
}

func hostOf(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
