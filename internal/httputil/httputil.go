// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the fetchers and the
// OpenAI client. Requests are issued once; there is no retry.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxErrorBody bounds how much of a failed response body is kept in a StatusError.
const maxErrorBody = 4096

// StatusError reports a non-2xx upstream response. URL never carries the
// query string, which may hold API keys.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// HTTPStatusCode returns the upstream status code.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// NewClient returns an http.Client with the given timeout. A zero timeout
// leaves requests unbounded.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Do executes req and returns the response when the status is 2xx. Any other
// status is drained, closed, and returned as a *StatusError. Errors never
// include the request's query string.
func Do(client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, &url.Error{Op: ue.Op, URL: RedactURL(req.URL), Err: ue.Err}
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        RedactURL(req.URL),
			Body:       string(body),
		}
	}
	return resp, nil
}

// RedactURL renders u without userinfo, query, or fragment.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}

// stripURL drops the raw URL from a parse error.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: "<redacted>", Err: ue.Err}
	}
	return err
}

// Get issues a GET request with the given User-Agent.
func Get(ctx context.Context, client *http.Client, url, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", stripURL(err))
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return Do(client, req)
}

// GetJSON issues a GET request and decodes the JSON body into v.
func GetJSON(ctx context.Context, client *http.Client, url, userAgent string, v any) error {
	resp, err := Get(ctx, client, url, userAgent)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// GetDocument issues a GET request and parses the body as HTML.
func GetDocument(ctx context.Context, client *http.Client, url, userAgent string) (*goquery.Document, error) {
	resp, err := Get(ctx, client, url, userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return doc, nil
}
