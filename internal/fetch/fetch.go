package fetch

import (
	"context"
	"fmt"
	"time"
)

// Reason classifies why a fetch failed.
type Reason string

const (
	ReasonBotDetection Reason = "bot_detection"
	ReasonTimeout      Reason = "timeout"
	ReasonNetwork      Reason = "network"
	ReasonAuth         Reason = "auth"
	ReasonUnknown      Reason = "unknown"
)

// Error is the failure type surfaced by fetchers and engines.
type Error struct {
	Reason Reason
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Reason, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s failed (%s): status %d", e.URL, e.Reason, e.Status)
	}
	return fmt.Sprintf("fetch %s failed (%s)", e.URL, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			return fe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Response is the engine-agnostic view of a fetched page.
type Response struct {
	Status  int
	Text    string
	URL     string
	Headers map[string]string
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// EngineKind identifies one of the fetch engines.
type EngineKind string

const (
	EnginePlain       EngineKind = "plain"
	EngineImpersonate EngineKind = "impersonate"
	EngineBrowser     EngineKind = "browser"
	EngineStealth     EngineKind = "stealth"
)

// Options carries per-request settings. Browser-only fields are ignored by
// the HTTP engines.
type Options struct {
	Method          string
	Headers         map[string]string
	Timeout         time.Duration
	PreferredEngine EngineKind

	// Browser engine extras.
	WaitForSelector    string
	NetworkIdle        bool
	ImpersonateProfile string
}

// Engine is one way to turn a URL into bytes.
type Engine interface {
	Kind() EngineKind
	Fetch(ctx context.Context, url string, opts Options) (*Response, error)
}

// Fetcher is what adapters program against. Any adapter may substitute its
// own implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (*Response, error)
}
