package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// PoolConfig sizes the shared HTTP transport.
type PoolConfig struct {
	MaxConnections int
	MaxKeepalive   int
	DefaultTimeout time.Duration
}

// DefaultPoolConfig mirrors the configured defaults: 100 connections, 50
// keepalive, 30s request timeout.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxConnections: 100, MaxKeepalive: 50, DefaultTimeout: 30 * time.Second}
}

func newTransport(cfg PoolConfig) *http.Transport {
	return &http.Transport{
		MaxIdleConns:        cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxKeepalive,
		IdleConnTimeout:     90 * time.Second,
	}
}

// httpEngine issues requests through net/http with a fixed header profile.
// It covers both the plain and the browser-impersonating engines; the only
// difference between the two is the header set.
type httpEngine struct {
	kind    EngineKind
	client  *http.Client
	headers map[string]string
	timeout time.Duration
}

// NewPlainEngine builds the no-frills HTTP engine.
func NewPlainEngine(cfg PoolConfig) Engine {
	return &httpEngine{
		kind:    EnginePlain,
		client:  &http.Client{Transport: newTransport(cfg)},
		timeout: defaultTimeout(cfg),
		headers: map[string]string{
			"Accept": "*/*",
		},
	}
}

// defaultTimeout is the configured per-request fallback used when a caller
// does not set opts.Timeout.
func defaultTimeout(cfg PoolConfig) time.Duration {
	if cfg.DefaultTimeout > 0 {
		return cfg.DefaultTimeout
	}
	return DefaultPoolConfig().DefaultTimeout
}

// NewImpersonateEngine builds an HTTP engine that presents a desktop Chrome
// header profile. Gets past sites that only sniff headers.
func NewImpersonateEngine(cfg PoolConfig) Engine {
	return &httpEngine{
		kind:    EngineImpersonate,
		client:  &http.Client{Transport: newTransport(cfg)},
		timeout: defaultTimeout(cfg),
		headers: map[string]string{
			"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Sec-Ch-Ua":                 `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"Windows"`,
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Upgrade-Insecure-Requests": "1",
		},
	}
}

func (e *httpEngine) Kind() EngineKind { return e.kind }

func (e *httpEngine) Fetch(ctx context.Context, url string, opts Options) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &Error{Reason: ReasonUnknown, URL: url, Err: err}
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	// Caller headers win over the engine profile. Browser-only options
	// (WaitForSelector, NetworkIdle) are not representable here and are
	// silently dropped.
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, URL: url, Err: err}
	}

	return &Response{
		Status:  resp.StatusCode,
		Text:    string(body),
		URL:     resp.Request.URL.String(),
		Headers: flattenHeaders(resp.Header),
	}, nil
}

// browserEngine fetches through an external rendering service (a
// browserless/Playwright HTTP endpoint). Only constructed when the service
// endpoint is configured; otherwise the engine is absent from the fetcher.
type browserEngine struct {
	kind     EngineKind
	endpoint string
	stealth  bool
	client   *http.Client
	timeout  time.Duration
}

// browserTimeout honors the configured default but leaves rendering more
// headroom when nothing was configured.
func browserTimeout(cfg PoolConfig) time.Duration {
	if cfg.DefaultTimeout > 0 {
		return cfg.DefaultTimeout
	}
	return 45 * time.Second
}

// NewBrowserEngine builds the full-browser engine. Returns nil when no
// rendering endpoint is configured, which excludes it from the engine list.
func NewBrowserEngine(endpoint string, cfg PoolConfig) Engine {
	if endpoint == "" {
		return nil
	}
	return &browserEngine{
		kind:     EngineBrowser,
		endpoint: endpoint,
		client:   &http.Client{Transport: newTransport(cfg)},
		timeout:  browserTimeout(cfg),
	}
}

// NewStealthEngine builds the stealth-mode browser engine.
func NewStealthEngine(endpoint string, cfg PoolConfig) Engine {
	if endpoint == "" {
		return nil
	}
	return &browserEngine{
		kind:     EngineStealth,
		endpoint: endpoint,
		stealth:  true,
		client:   &http.Client{Transport: newTransport(cfg)},
		timeout:  browserTimeout(cfg),
	}
}

func (e *browserEngine) Kind() EngineKind { return e.kind }

type renderRequest struct {
	URL             string `json:"url"`
	WaitForSelector string `json:"waitForSelector,omitempty"`
	NetworkIdle     bool   `json:"networkIdle,omitempty"`
	Stealth         bool   `json:"stealth,omitempty"`
}

func (e *browserEngine) Fetch(ctx context.Context, url string, opts Options) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(renderRequest{
		URL:             url,
		WaitForSelector: opts.WaitForSelector,
		NetworkIdle:     opts.NetworkIdle,
		Stealth:         e.stealth,
	})
	if err != nil {
		return nil, &Error{Reason: ReasonUnknown, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Reason: ReasonUnknown, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Reason: ReasonNetwork, URL: url, Status: resp.StatusCode,
			Err: fmt.Errorf("render service: %s", resp.Status),
		}
	}

	return &Response{
		Status:  http.StatusOK,
		Text:    string(body),
		URL:     url,
		Headers: flattenHeaders(resp.Header),
	}, nil
}

func classifyTransportError(url string, err error) *Error {
	reason := ReasonNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		reason = ReasonTimeout
	}
	return &Error{Reason: reason, URL: url, Err: err}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
