package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/sirupsen/logrus"
	"github.com/trogers1052/holdings-service/internal/models"
)

const (
	// DefaultJSONPath locates the holdings array inside the response envelope
	DefaultJSONPath = "$.data.userHolding"
	// DefaultTimeout bounds a single fetch
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrMalformedEnvelope is returned when the body has no holdings array at the configured path.
	ErrMalformedEnvelope = errors.New("malformed holdings envelope")
)

// Client fetches holdings from the upstream HTTP endpoint
type Client struct {
	endpoint   string
	path       string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// Option configures a Client
type Option func(*Client)

// WithJSONPath overrides DefaultJSONPath.
func WithJSONPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used to report dropped records.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		path:       DefaultJSONPath,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "remote")
	return c
}

// FetchHoldings performs one GET against the endpoint. Records that fail to
// decode are logged and dropped; the remaining ones are returned in order.
func (c *Client) FetchHoldings(ctx context.Context) ([]models.Holding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	records, err := c.extract(body)
	if err != nil {
		return nil, err
	}

	holdings, errs := models.DecodeHoldings(records)
	for _, decodeErr := range errs {
		c.logger.WithError(decodeErr).Warn("Dropping undecodable holding record")
	}

	c.logger.WithFields(logrus.Fields{
		"received": len(records),
		"decoded":  len(holdings),
	}).Debug("Fetched holdings")

	return holdings, nil
}

// extract returns the raw records of the holdings array at c.path.
func (c *Client) extract(body []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelope any
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	value, err := jsonpath.Get(c.path, envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEnvelope, c.path, err)
	}

	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an array", ErrMalformedEnvelope, c.path)
	}

	records := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrMalformedEnvelope, i, err)
		}
		records = append(records, raw)
	}
	return records, nil
}
