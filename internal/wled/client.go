package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/version"
)

const (
	// DefaultPort is the HTTP port WLED listens on
	DefaultPort = 80

	// DefaultTimeout is the per-request timeout. Discovery probes hundreds of
	// silent addresses, so this stays short.
	DefaultTimeout = 2 * time.Second

	// DefaultMaxRetries applies to state changes only; reads never retry.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the initial delay between retry attempts
	DefaultRetryDelay = 250 * time.Millisecond

	// DefaultMaxRetryDelay caps exponential backoff
	DefaultMaxRetryDelay = 2 * time.Second

	maxBodySize = 1 << 20
)

// Client talks to a single board's JSON API.
type Client struct {
	// BaseURL is the board's root URL, e.g. "http://192.168.1.40:80"
	BaseURL string

	// IP is the host part of BaseURL, kept for error context
	IP string

	HTTPClient *http.Client

	MaxRetries            int
	RetryDelay            time.Duration
	MaxRetryDelay         time.Duration
	UseExponentialBackoff bool
}

// NewClient creates a client for ip:port. A port of 0 means DefaultPort.
func NewClient(ip string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	c := NewClientWithURL("http://" + net.JoinHostPort(ip, strconv.Itoa(port)))
	c.IP = ip
	return c
}

// NewClientWithURL creates a client with a full base URL. Tests use it with
// httptest servers.
func NewClientWithURL(baseURL string) *Client {
	ip := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		ip = u.Hostname()
	}
	return &Client{
		BaseURL:               baseURL,
		IP:                    ip,
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior for state changes
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// GetStatus fetches the combined state and info document from /json.
func (c *Client) GetStatus(ctx context.Context) (*StateResponse, error) {
	var resp StateResponse
	if err := c.do(ctx, http.MethodGet, "/json", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Identify fetches /json and fails with a NotWLED error when the responder
// has no board name.
func (c *Client) Identify(ctx context.Context) (*StateResponse, error) {
	resp, err := c.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if !resp.IsBoard() {
		return nil, NewNotWLEDError(c.IP)
	}
	return resp, nil
}

// GetInfo fetches /json/info
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/json/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetState fetches /json/state
func (c *Client) GetState(ctx context.Context) (*State, error) {
	var state State
	if err := c.do(ctx, http.MethodGet, "/json/state", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetPower switches the board on or off
func (c *Client) SetPower(ctx context.Context, on bool) error {
	return c.Apply(ctx, StatePatch{On: Bool(on)})
}

// SetBrightness sets master brightness, clamped to 0..255.
func (c *Client) SetBrightness(ctx context.Context, bri int) error {
	return c.Apply(ctx, StatePatch{Bri: Int(ClampBrightness(bri))})
}

// SetSync sets both UDP sync flags in one request.
func (c *Client) SetSync(ctx context.Context, receive, send bool) error {
	return c.Apply(ctx, StatePatch{UDPN: &UDPNPatch{Send: Bool(send), Recv: Bool(receive)}})
}

// SetSyncSend toggles only the "emit" side of UDP sync
func (c *Client) SetSyncSend(ctx context.Context, send bool) error {
	return c.Apply(ctx, StatePatch{UDPN: &UDPNPatch{Send: Bool(send)}})
}

// SetSyncReceive toggles only the "receive" side of UDP sync
func (c *Client) SetSyncReceive(ctx context.Context, receive bool) error {
	return c.Apply(ctx, StatePatch{UDPN: &UDPNPatch{Recv: Bool(receive)}})
}

// Apply POSTs a partial state to /json/state, retrying transient failures.
func (c *Client) Apply(ctx context.Context, patch StatePatch) error {
	if patch.Bri != nil && (*patch.Bri < 0 || *patch.Bri > 255) {
		return NewValidationError(fmt.Sprintf("brightness %d out of range 0-255", *patch.Bri))
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return NewValidationError(fmt.Sprintf("failed to encode state: %v", err))
	}

	var lastErr error
	delay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ClassifyNetworkError(ctx.Err(), c.IP)
			case <-time.After(delay):
			}
			if c.UseExponentialBackoff {
				delay *= 2
				if delay > c.MaxRetryDelay {
					delay = c.MaxRetryDelay
				}
			}
		}

		var result struct {
			Success *bool `json:"success"`
		}
		err := c.do(ctx, http.MethodPost, "/json/state", body, &result)
		if err == nil {
			if result.Success != nil && !*result.Success {
				return NewValidationError("board rejected the update")
			}
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		logging.Debug("Retrying state update",
			zap.String("ip", c.IP),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return NewNetworkError(c.IP, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(c.IP, method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return NewNetworkError(c.IP, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return NewHTTPError(c.IP, resp.StatusCode, boardErrorMessage(data))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewParseError(c.IP, "failed to parse JSON response", err)
	}
	return nil
}

// boardErrorMessage extracts the "error" field of an error body. WLED sends
// numeric codes ({"error":9}); proxies and newer builds send strings.
func boardErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(envelope.Error, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(envelope.Error, &n) == nil {
		return "WLED error " + n.String()
	}
	return ""
}
