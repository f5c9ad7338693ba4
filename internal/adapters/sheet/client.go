// Package sheet is the HTTP gateway to the Apps Script endpoint that fronts the
// spreadsheet. GET returns the whole state, POST carries one command.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"qissati/internal/domain"
	"qissati/internal/infra/metrics"
)

const commandContentType = "text/plain;charset=utf-8"

// Client implements domain.Gateway.
type Client struct {
	mu         sync.RWMutex
	endpoint   *url.URL
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets a client timeout. Zero leaves the transport default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithClock overrides the clock used for the cache buster.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a gateway for endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	parsed, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	client := &Client{
		endpoint:   parsed,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SetEndpoint repoints the gateway, used when the admin changes settings.
func (c *Client) SetEndpoint(endpoint string) error {
	parsed, err := parseEndpoint(endpoint)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.endpoint = parsed
	c.mu.Unlock()
	return nil
}

// Endpoint returns the current endpoint URL.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint.String()
}

// FetchState downloads {stories?, responses?}. A missing or null key leaves the
// corresponding Has* flag false.
func (c *Client) FetchState(ctx context.Context) (domain.RawPayload, error) {
	const op = "fetch state"
	target := c.cacheBustedURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.RawPayload{}, &domain.NetworkError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}

	start := time.Now()
	body, status, err := c.do(req)
	if err == nil && !successful(status) {
		err = &domain.NetworkError{Op: op, Status: status}
	} else if err != nil {
		err = &domain.NetworkError{Op: op, Err: err}
	}
	metrics.ObserveNetworkRequest("sheet", "fetch_state", "GET", start, err)
	if err != nil {
		return domain.RawPayload{}, err
	}
	return decodePayload(body)
}

// SendCommand posts the command envelope and returns the decoded body verbatim.
func (c *Client) SendCommand(ctx context.Context, cmd domain.Command) (domain.Ack, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, &domain.RemoteError{Action: cmd.Action, Err: fmt.Errorf("marshal command: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.RemoteError{Action: cmd.Action, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", commandContentType)

	start := time.Now()
	body, status, err := c.do(req)
	if err == nil && !successful(status) {
		err = &domain.RemoteError{Action: cmd.Action, Status: status}
	} else if err != nil {
		err = &domain.RemoteError{Action: cmd.Action, Err: err}
	}
	metrics.ObserveNetworkRequest("sheet", "send_command", string(cmd.Action), start, err)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &domain.ParseError{What: string(cmd.Action) + " response", Err: errors.New("body is not JSON")}
	}
	return domain.Ack(body), nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) cacheBustedURL() string {
	c.mu.RLock()
	resolved := *c.endpoint
	c.mu.RUnlock()
	q := resolved.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	resolved.RawQuery = q.Encode()
	return resolved.String()
}

func decodePayload(body []byte) (domain.RawPayload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return domain.RawPayload{}, &domain.ParseError{What: "state", Err: err}
	}
	if top == nil {
		return domain.RawPayload{}, &domain.ParseError{What: "state", Err: errors.New("body is null")}
	}
	var payload domain.RawPayload
	var err error
	if payload.Stories, payload.HasStories, err = decodeRecords(top["stories"]); err != nil {
		return domain.RawPayload{}, &domain.ParseError{What: "stories", Err: err}
	}
	if payload.Responses, payload.HasResponses, err = decodeRecords(top["responses"]); err != nil {
		return domain.RawPayload{}, &domain.ParseError{What: "responses", Err: err}
	}
	return payload, nil
}

// decodeRecords accepts an array of rows. Elements that are not objects become
// empty rows so the normalizer can still fill defaults.
func decodeRecords(raw json.RawMessage) ([]domain.RawRecord, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	out := make([]domain.RawRecord, 0, len(items))
	for _, item := range items {
		var rec domain.RawRecord
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			rec = domain.RawRecord{}
		}
		out = append(out, rec)
	}
	return out, true, nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return nil, errors.New("sheet: endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sheet: parse endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("sheet: endpoint %q must be an absolute URL", endpoint)
	}
	return parsed, nil
}

func successful(status int) bool {
	return status >= 200 && status < 300
}

var _ domain.Gateway = (*Client)(nil)
