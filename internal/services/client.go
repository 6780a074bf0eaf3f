package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// ClientOptions configures the transport shared by every connector.
//
// BaseURL, AuthURL and TokenURL override the service endpoints and are used by tests.
type ClientOptions struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	BaseURL           string
	AuthURL           string
	TokenURL          string
	Logger            *log.Logger
}

func (o ClientOptions) baseURL(fallback string) string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return fallback
}

// apiClient performs paced JSON requests and classifies failures into the shared error taxonomy.
type apiClient struct {
	service models.ServiceType
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger
}

func newAPIClient(service models.ServiceType, opts ClientOptions) *apiClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &apiClient{
		service: service,
		http:    client,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger.With("service", service),
	}
}

// do sends a request to rawURL with optional JSON body and decodes a JSON response into result.
//
// A nil result discards the response body.
func (c *apiClient) do(ctx context.Context, method, rawURL string, header http.Header, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s rate limiter: %v", shared.ErrTransient, c.service, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: %w", shared.ErrTransient, method, rawURL, shared.ErrTimeout)
		}
		return fmt.Errorf("%w: %s %s: %v", shared.ErrTransient, method, rawURL, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(c.service, resp); err != nil {
		c.logger.Debug("request failed", "method", method, "url", rawURL, "status", resp.StatusCode)
		return err
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classifyStatus maps a non-2xx response to a sentinel error.
//
// 401/403 are authentication failures, 429 and 5xx are transient, anything else is a plain API error.
func classifyStatus(service models.ServiceType, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readDetail(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d%s", shared.ErrNotAuthenticated, service, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d%s", shared.ErrTransient, service, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s returned 404%s", shared.ErrAPIRequest, shared.ErrPlaylistNotFound, service, detail)
	default:
		return fmt.Errorf("%w: %s returned %d%s", shared.ErrAPIRequest, service, resp.StatusCode, detail)
	}
}

func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	return ": " + string(bytes.TrimSpace(data))
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

// chunk splits items into slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
