// internal/marketplace/client.go
package marketplace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client talks to the dropshipping marketplace's JSON API. Every response
// arrives in the envelope { code, result, data, message }; anything with
// code != 200 or result != true is a failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-success response from an otherwise reachable endpoint.
// The remote message is preserved verbatim for diagnostics.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error (code %d): %s", e.Code, e.Message)
}

// ErrNotFound indicates the marketplace has no such entity.
var ErrNotFound = errors.New("marketplace: not found")

// IsUnauthorized reports whether err represents a rejected or expired token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized ||
			apiErr.StatusCode == http.StatusForbidden ||
			apiErr.Code == http.StatusUnauthorized ||
			apiErr.Code == http.StatusForbidden
	}
	return false
}

// Do performs one authenticated round trip and returns the envelope's data
// payload. An empty token sends an unauthenticated request (token issue only).
func (c *Client) Do(method, path, token string, body interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || env.Code != http.StatusOK || !env.Result {
		logrus.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"code":   env.Code,
		}).Debug("Marketplace call rejected")

		if env.Code == http.StatusNotFound || resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, env.Message)
		}

		code := env.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: code, Message: env.Message}
	}

	return env.Data, nil
}

func (c *Client) get(path, token string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}

	data, err := c.Do(http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func (c *Client) post(path, token string, body, out interface{}) error {
	data, err := c.Do(http.MethodPost, path, token, body)
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func decodeData(data json.RawMessage, out interface{}) error {
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// Price tolerates both JSON numbers and strings; marketplace product payloads
// mix bare numbers with "low-high" range strings in the same fields.
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*p = Price(str)
		return nil
	}
	*p = Price(s)
	return nil
}

func (p Price) String() string { return string(p) }
