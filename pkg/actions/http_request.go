package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 1 << 20
)

var (
	ErrURLRequired     = errors.New("'url' is required")
	ErrHTTPServerError = errors.New("server error during HTTP request")
)

// HTTPRequest calls an external endpoint, with simple retry on network
// failures and 5xx responses. JSON responses are decoded into the node
// output; anything else is returned as a string body.
type HTTPRequest struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPRequest(logger *slog.Logger) *HTTPRequest {
	return &HTTPRequest{
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: logger.With("action_type", "http_request"),
	}
}

func (a *HTTPRequest) Type() string {
	return "http_request"
}

func (a *HTTPRequest) Execute(ctx context.Context, input map[string]any, _ *models.WorkflowExecution) (map[string]any, error) {
	url, _ := input["url"].(string)
	if url == "" {
		return nil, ErrURLRequired
	}

	method, _ := input["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)
	body, _ := input["body"].(string)

	attempts := 1
	if retries, ok := input["retry_attempts"].(float64); ok && retries > 1 {
		attempts = int(retries)
	}

	retryDelay := time.Second
	if delay, ok := input["retry_delay_seconds"].(float64); ok && delay >= 0 {
		retryDelay = time.Duration(delay) * time.Second
	}

	var (
		resp    *http.Response
		lastErr error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			a.logger.InfoContext(ctx, "Retrying HTTP request",
				"url", url, "attempt", attempt, "attempts", attempts)

			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		a.setHeaders(req, input)

		resp, err = a.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)

			continue
		}

		if resp.StatusCode >= 500 && attempt < attempts {
			if err := resp.Body.Close(); err != nil {
				a.logger.ErrorContext(ctx, "Failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("%w: status %d", ErrHTTPServerError, resp.StatusCode)
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
	}

	return a.readResponse(ctx, resp)
}

func (a *HTTPRequest) setHeaders(req *http.Request, input map[string]any) {
	headers, _ := input["headers"].(map[string]any)
	for key, value := range headers {
		if str, ok := value.(string); ok {
			req.Header.Set(key, str)
		}
	}

	if req.Header.Get("Content-Type") == "" && req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (a *HTTPRequest) readResponse(ctx context.Context, resp *http.Response) (map[string]any, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.ErrorContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	output := map[string]any{"status_code": resp.StatusCode}

	var decoded any
	if json.Unmarshal(data, &decoded) == nil {
		output["body"] = decoded
	} else {
		output["body"] = string(data)
	}

	if resp.StatusCode >= 400 {
		return output, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	return output, nil
}
