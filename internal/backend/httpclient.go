package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// UserAgent is sent with every request.
var UserAgent = "pgquery-cli/1.0"

// HTTP implements API client over REST endpoints.
// The session cookie issued at login is kept in a cookie jar and replayed on every call.
type HTTP struct {
	// baseURL is the base URL for all HTTP requests (e.g., "http://127.0.0.1:5050")
	baseURL string
	// endpoints contains the URL paths for various API endpoints
	endpoints Endpoints
	// client is the underlying HTTP client with configured timeout and cookie jar
	client *http.Client
}

// newHTTP creates a new HTTP client with the given base URL and endpoints.
// A zero timeout falls back to 10 seconds.
func newHTTP(baseURL string, endpoints Endpoints, timeout time.Duration) (*HTTP, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// BaseURL returns the server the client talks to.
func (h *HTTP) BaseURL() string { return h.baseURL }

// setStandardHeaders sets headers shared by all API calls.
func (h *HTTP) setStandardHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, */*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}

// path expands the {trans_id} placeholder of an endpoint path.
func (h *HTTP) path(tmpl string, transID string) string {
	return h.baseURL + strings.ReplaceAll(tmpl, "{trans_id}", url.PathEscape(transID))
}

// doJSON sends a request with an optional JSON body and decodes a JSON response into out.
// Transport failures and non-2xx statuses are returned as *HTTPError.
func (h *HTTP) doJSON(ctx context.Context, method, fullURL string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, rd)
	if err != nil {
		return err
	}
	h.setStandardHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &HTTPError{
			ReadyState: ReadyStateDone,
			Status:     resp.StatusCode,
			ErrorMsg:   "invalid response body: " + err.Error(),
			Err:        err,
		}
	}
	return nil
}

// GetVersion calls the version endpoint and returns the version string when available.
// No authentication required. This can be used to check connectivity to the backend service.
func (h *HTTP) GetVersion(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
		Data    struct {
			Version string `json:"version"`
		} `json:"data"`
	}
	if err := h.doJSON(ctx, http.MethodGet, h.baseURL+h.endpoints.Version, nil, &out); err != nil {
		if he, ok := AsHTTPError(err); ok && he.ReadyState == ReadyStateDone {
			return "unknown", nil
		}
		return "", err
	}
	switch {
	case out.Version != "":
		return out.Version, nil
	case out.Data.Version != "":
		return out.Data.Version, nil
	}
	return "unknown", nil
}
