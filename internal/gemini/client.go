package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Sentinel errors for gemini client operations.
var (
	// ErrRequestFailed is returned when the API answers with a non-200 status.
	ErrRequestFailed = errors.New("gemini request failed")
	// ErrUnauthorized is returned when the API rejects the configured key.
	ErrUnauthorized = errors.New("gemini API key rejected")
	// ErrConnectionTimeout is returned when the request times out.
	ErrConnectionTimeout = errors.New("gemini connection timeout")
	// ErrConnectionFailed is returned when the endpoint is unreachable.
	ErrConnectionFailed = errors.New("gemini connection failed")
)

// Client provides methods to communicate with the Generative Language API.
// It performs exactly one attempt per call: no retry, no partial results.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint and key.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateContent posts a generateContent request for the given model and
// decodes the reply. Transport and API errors propagate to the caller
// unmodified apart from classification; nothing is retried.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Contents) == 0 {
		return nil, errors.New("contents cannot be empty")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + apiPathPrefix + model + apiPathSuffix
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out GenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &out, nil
}

// statusError turns a non-200 reply into a sentinel-wrapped error carrying
// the API's own message when one is present.
func (c *Client) statusError(resp *http.Response) error {
	errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		return fmt.Errorf("%w: status %d (failed to read error: %v)", ErrRequestFailed, resp.StatusCode, readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}

	var apiErr apiError
	if err := json.Unmarshal(errBody, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(errBody))
}

// classifyError converts low-level HTTP errors into user-friendly errors.
func (c *Client) classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrConnectionTimeout
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrConnectionTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return fmt.Errorf("%w at %s", ErrConnectionFailed, c.baseURL)
		}
	}

	return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}
