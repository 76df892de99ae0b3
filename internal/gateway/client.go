package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the production gateway host.
	DefaultBaseURL = "https://sdk-gateway-b85kv8d1.ue.gateway.dev"

	// PlatformTag identifies this SDK to the gateway. Sent as the
	// X-SDK-Platform header and as the platform field of request bodies.
	PlatformTag = "go"

	headerAPIKey   = "X-API-Key"
	headerPlatform = "X-SDK-Platform"

	defaultTimeout = 10 * time.Second
)

// Client performs authenticated JSON requests against the gateway.
//
// The client is stateless and safe for concurrent use. The API key is
// supplied per call because the engine owns it and may replace it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL.
// An empty baseURL selects DefaultBaseURL; a nil httpClient gets a default
// with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// ValidateKey checks the API key against GET /api/key/validate.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) (KeyValidation, error) {
	var out KeyValidation
	if err := c.do(ctx, apiKey, http.MethodGet, "/api/key/validate", nil, &out); err != nil {
		return KeyValidation{}, err
	}
	return out, nil
}

// ValidateCode resolves a referral code via POST /api/code/validate.
// A 200 with an empty campaign id is returned as-is; the engine decides
// whether that constitutes failure.
func (c *Client) ValidateCode(ctx context.Context, apiKey, code string) (CodeValidation, error) {
	var out CodeValidation
	if err := c.do(ctx, apiKey, http.MethodPost, "/api/code/validate", codeValidationRequest{Code: code}, &out); err != nil {
		return CodeValidation{}, err
	}
	return out, nil
}

// AppOpen reports an app-open event via POST /appopen.
func (c *Client) AppOpen(ctx context.Context, apiKey string, req AppOpenRequest) error {
	return c.do(ctx, apiKey, http.MethodPost, "/appopen", req, nil)
}

// RegisterUser registers a conversion user via POST /newuser.
func (c *Client) RegisterUser(ctx context.Context, apiKey string, req RegistrationRequest) error {
	return c.do(ctx, apiKey, http.MethodPost, "/newuser", req, nil)
}

// AttributePurchase reports a purchase via POST /iappurchase.
func (c *Client) AttributePurchase(ctx context.Context, apiKey string, req PurchaseRequest) error {
	return c.do(ctx, apiKey, http.MethodPost, "/iappurchase", req, nil)
}

// do sends one JSON request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set(headerAPIKey, apiKey)
	req.Header.Set(headerPlatform, PlatformTag)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: res.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}
