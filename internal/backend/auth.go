package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Login authenticates the cookie session.
// It fetches the login page to pick up the CSRF token and session cookie, then posts the
// credentials as a form. On success the session cookie stays in the client's jar.
func (h *HTTP) Login(ctx context.Context, email, password string) error {
	token, err := h.fetchCSRFToken(ctx)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	if token != "" {
		form.Set("csrf_token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.endpoints.Login, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	h.setStandardHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		he := responseError(resp)
		return fmt.Errorf("login failed: %w", he)
	default:
		return responseError(resp)
	}
}

// fetchCSRFToken loads the login page and returns the value of its csrf_token input.
// Servers without CSRF protection yield an empty token.
func (h *HTTP) fetchCSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+h.endpoints.LoginPage, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}
	return extractCSRFToken(resp.Body)
}

// extractCSRFToken scans an HTML document for <input name="csrf_token" value="...">.
func extractCSRFToken(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", nil
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "input" {
				continue
			}
			var name, value string
			for _, a := range tok.Attr {
				switch a.Key {
				case "name":
					name = a.Val
				case "value":
					value = a.Val
				}
			}
			if name == "csrf_token" {
				return value, nil
			}
		}
	}
}
