package simulator

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/logger"
)

// bridgePath is the OpenELIS analyzer import endpoint, relative to the
// configured base URL.
const bridgePath = "/api/OpenELIS-Global/analyzer/astm"

// DefaultBridgeTimeout bounds one delivery attempt to the bridge.
const DefaultBridgeTimeout = 30 * time.Second

// BridgeClient posts raw ASTM message text to an OpenELIS bridge endpoint.
type BridgeClient struct {
	endpoint string
	client   *http.Client
	logger   logger.Logger
}

// BridgeOption configures a BridgeClient.
type BridgeOption func(*BridgeClient)

// WithBridgeTimeout bounds each delivery attempt.
func WithBridgeTimeout(d time.Duration) BridgeOption {
	return func(c *BridgeClient) { c.client.Timeout = d }
}

// WithInsecureTLS disables certificate verification, for development
// bridges running on self-signed certificates.
func WithInsecureTLS() BridgeOption {
	return func(c *BridgeClient) {
		c.client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}
}

// NewBridgeClient creates a client for the bridge at baseURL, for example
// "https://localhost:8443".
func NewBridgeClient(baseURL string, opts ...BridgeOption) *BridgeClient {
	c := &BridgeClient{
		endpoint: strings.TrimSuffix(baseURL, "/") + bridgePath,
		client:   &http.Client{Timeout: DefaultBridgeTimeout},
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the full URL deliveries are posted to.
func (c *BridgeClient) Endpoint() string {
	return c.endpoint
}

// Deliver posts one message's text to the bridge. Any 2xx answer counts as
// delivered; everything else is an error.
func (c *BridgeClient) Deliver(ctx context.Context, text string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("simulator: bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("simulator: bridge post: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("simulator: bridge rejected delivery: HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Info("simulator: delivered message to bridge",
		"endpoint", c.endpoint, "status", resp.StatusCode,
		"bytes", len(text), "elapsed", time.Since(start))

	return nil
}

// bridgeText renders a message the way OpenELIS expects it on the import
// endpoint: newline-separated records with a trailing newline.
func bridgeText(msg *astm.Message) string {
	return strings.Join(msg.Lines(), "\n") + "\n"
}
