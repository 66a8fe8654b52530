package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codyseavey/game-tracker/internal/config"
	"github.com/codyseavey/game-tracker/internal/metrics"
)

const (
	endpointStoreSearch = "storesearch"
	endpointAppDetails  = "appdetails"
	endpointHTMLSearch  = "html_search"

	// maxResponseBytes caps how much of an upstream body we are willing to read
	maxResponseBytes = 8 << 20
)

// steamClient performs GET requests against the store and records metrics.
// It is shared by the detail fetcher and both search strategies.
type steamClient struct {
	client      *http.Client
	baseURL     string
	language    string
	countryCode string
	userAgent   string
	timeout     time.Duration
}

func newSteamClient(cfg config.SteamConfig) *steamClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &steamClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL:     cfg.BaseURL,
		language:    cfg.Language,
		countryCode: cfg.CountryCode,
		userAgent:   cfg.UserAgent,
		timeout:     timeout,
	}
}

// localeParams returns the language/country parameters every store call carries
func (c *steamClient) localeParams() url.Values {
	params := url.Values{}
	if c.language != "" {
		params.Set("l", c.language)
	}
	if c.countryCode != "" {
		params.Set("cc", c.countryCode)
	}
	return params
}

// get issues a GET and returns the body of a 200 response.
// Any transport error, non-200 status or oversized body is an error.
func (c *steamClient) get(ctx context.Context, endpoint, path string, params url.Values, accept string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "network").Inc()
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "status").Inc()
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "network").Inc()
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if len(body) > maxResponseBytes {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "decode").Inc()
		return nil, fmt.Errorf("%s response exceeds %d bytes", endpoint, maxResponseBytes)
	}

	return body, nil
}

// getJSON fetches and decodes a JSON document into out
func (c *steamClient) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	body, err := c.get(ctx, endpoint, path, params, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "decode").Inc()
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// getHTML fetches and parses an HTML document
func (c *steamClient) getHTML(ctx context.Context, endpoint, path string, params url.Values) (*goquery.Document, error) {
	body, err := c.get(ctx, endpoint, path, params, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "decode").Inc()
		return nil, fmt.Errorf("failed to parse %s document: %w", endpoint, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return doc, nil
}

// flexID accepts an identifier encoded as either a JSON number or a string
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s", string(b))
	}
	*f = flexID(n.String())
	return nil
}

// flexInt accepts a number, a numeric string, or null. Anything
// unparseable decodes as zero instead of failing the whole document.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = 0
		return nil
	}
	*f = flexInt(math.Round(v))
	return nil
}
