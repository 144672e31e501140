// Package backend is the HTTP client for the paged transcript segment API.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/segments"
)

const defaultHTTPTimeout = 30 * time.Second

// Config describes the transcript API client.
type Config struct {
	BaseURL    string
	Principal  string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client fetches segment pages. It implements segments.Fetcher.
type Client struct {
	baseURL   *url.URL
	principal string
	http      *http.Client
}

// StatusError is returned for non-success responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcript api: http %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// StatusCode exposes the HTTP status for error classification.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// New creates a Client. Per-request deadlines come from the caller's context;
// the HTTP client timeout is only a backstop.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("transcript api: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("transcript api: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	instrumented := *client
	instrumented.Transport = observability.NewTransport(client.Transport, cfg.Metrics)

	return &Client{
		baseURL:   baseURL,
		principal: cfg.Principal,
		http:      &instrumented,
	}, nil
}

// FetchPage loads limit segments starting at offset.
func (c *Client) FetchPage(ctx context.Context, key segments.Key, offset, limit int) (models.Page, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := c.segmentsURL(key)
	endpoint.RawQuery = params.Encode()

	page, err := c.get(observability.WithOperation(ctx, "segments"), endpoint)
	if err != nil {
		return models.Page{}, fmt.Errorf("fetch %s offset %d: %w", key, offset, err)
	}
	return page, nil
}

// Seek loads the segments from offset from through the page covering
// timestamp. A 404 or an empty page means no such page exists.
func (c *Client) Seek(ctx context.Context, key segments.Key, timestamp float64, from int) (models.Page, error) {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatFloat(timestamp, 'f', -1, 64))
	params.Set("from", strconv.Itoa(from))

	endpoint := c.segmentsURL(key).JoinPath("seek")
	endpoint.RawQuery = params.Encode()

	page, err := c.get(observability.WithOperation(ctx, "seek"), endpoint)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return models.Page{Offset: from}, nil
		}
		return models.Page{}, fmt.Errorf("seek %s to %.3f: %w", key, timestamp, err)
	}
	return page, nil
}

func (c *Client) segmentsURL(key segments.Key) *url.URL {
	return c.baseURL.JoinPath("videos", key.VideoID, "transcripts", key.Language, "segments")
}

func (c *Client) get(ctx context.Context, endpoint *url.URL) (models.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.principal != "" {
		req.Header.Set("X-Principal", c.principal)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return models.Page{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var page models.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return models.Page{}, &StatusError{Code: resp.StatusCode, Body: fmt.Sprintf("decode page: %v", err)}
	}
	return page, nil
}
