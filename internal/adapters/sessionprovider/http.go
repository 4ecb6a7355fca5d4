package sessionprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/pitwall/internal/constants"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/reporting"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type RetryPolicy struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

type httpProviderMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

func setupHTTPProviderMetrics(meter metric.Meter) (httpProviderMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("sessionprovider/http/request_count")
	if err != nil {
		return httpProviderMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"sessionprovider/http/request_duration",
		metric.WithUnit("s"),
	)
	if err != nil {
		return httpProviderMetricsCollection{}, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	return httpProviderMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}, nil
}

type httpProvider struct {
	client  *retryablehttp.Client
	baseURL string
	apiKey  string

	metrics httpProviderMetricsCollection
	tracer  trace.Tracer
}

func NewHTTPProvider(httpClient *http.Client, baseURL string, apiKey string, retryPolicy RetryPolicy) (*httpProvider, error) {
	const name = "pitwall/sessionprovider/http"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupHTTPProviderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	client.RetryMax = retryPolicy.RetryMax
	client.RetryWaitMin = retryPolicy.RetryWaitMin
	client.RetryWaitMax = retryPolicy.RetryWaitMax
	// Retries are logged through the request logger instead
	client.Logger = nil
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt == 0 {
			return
		}
		ctx := req.Context()
		logging.FromContext(ctx).InfoContext(ctx, "Retrying provider request", "url", req.URL.String(), "attempt", attempt)
	}
	// Hand back the last response so the status code can be mapped
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &httpProvider{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

func (p *httpProvider) sessionURL(key domain.SessionKey) string {
	return fmt.Sprintf(
		"%s/v1/sessions/%d/%s/%s",
		p.baseURL,
		key.Season,
		url.PathEscape(key.Event),
		url.PathEscape(string(key.SessionType)),
	)
}

func (p *httpProvider) Fetch(ctx context.Context, key domain.SessionKey) (*RawSession, error) {
	ctx, span := p.tracer.Start(ctx, "HTTPProvider.Fetch", trace.WithAttributes(
		attribute.String("session", key.String()),
	))
	defer span.End()

	logger := logging.FromContext(ctx)
	sessionURL := p.sessionURL(key)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, sessionURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("API-Key", p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up, nothing to report
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err, map[string]string{"url": sessionURL})
		return nil, err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err, map[string]string{"url": sessionURL})
		return nil, err
	}

	duration := time.Since(start)
	attributes := metric.WithAttributes(attribute.String("status_code", strconv.Itoa(resp.StatusCode)))
	p.metrics.requestCount.Add(ctx, 1, attributes)
	p.metrics.requestDuration.Record(ctx, duration.Seconds(), attributes)

	logger.InfoContext(
		ctx,
		"provider request completed",
		"url", sessionURL,
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", duration.String(),
	)

	raw, err := rawSessionFromResponse(resp.StatusCode, data)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Pass through error but don't report
			return nil, err
		}

		extra := map[string]string{
			"url":    sessionURL,
			"status": strconv.Itoa(resp.StatusCode),
		}
		if len(data) < 1024 {
			extra["data"] = string(data)
		}
		err := fmt.Errorf("failed to get session from provider response: %w", err)
		reporting.Report(ctx, err, extra)
		return nil, err
	}

	return raw, nil
}

func rawSessionFromResponse(statusCode int, data []byte) (*RawSession, error) {
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return nil, fmt.Errorf("%w: provider returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}

	switch statusCode {
	case http.StatusNotFound,
		http.StatusNoContent:
		return nil, fmt.Errorf("%w: provider returned status code %d", domain.ErrSessionNotFound, statusCode)
	}

	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status code %d", statusCode)
	}

	var raw RawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	return &raw, nil
}
