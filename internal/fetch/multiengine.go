package fetch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Engine health tuning: scores live in [0,1]; success nudges an engine up,
// failure knocks it down harder so a blocked engine falls behind quickly.
const (
	healthReward  = 0.1
	healthPenalty = 0.2
)

// botBlockMaxBody: a 2xx response smaller than this is suspect enough to
// scan for block-page signatures.
const botBlockMaxBody = 10 * 1024

var botBlockSignatures = []string{
	"pardon our interruption",
	"checking your browser",
	"cloudflare",
	"access denied",
	"captcha",
	"please verify",
}

// defaultEngineHealth seeds scores by how often each engine gets through in
// practice.
var defaultEngineHealth = map[EngineKind]float64{
	EnginePlain:       0.5,
	EngineImpersonate: 0.8,
	EngineBrowser:     0.85,
	EngineStealth:     0.9,
}

// MultiEngine tries engines in descending health order, adjusting each
// engine's score by outcome. The preferred engine, when available, always
// goes first.
type MultiEngine struct {
	mu      sync.Mutex
	engines []Engine
	health  map[EngineKind]float64
}

// NewMultiEngine builds a fetcher over the available engines. Nil engines
// (absent optional dependencies) are skipped.
func NewMultiEngine(engines ...Engine) *MultiEngine {
	m := &MultiEngine{health: make(map[EngineKind]float64)}
	for _, e := range engines {
		if e == nil {
			continue
		}
		m.engines = append(m.engines, e)
		if h, ok := defaultEngineHealth[e.Kind()]; ok {
			m.health[e.Kind()] = h
		} else {
			m.health[e.Kind()] = 0.5
		}
	}
	return m
}

// Fetch implements Fetcher with engine fallback and bot-block detection.
func (m *MultiEngine) Fetch(ctx context.Context, url string, opts Options) (*Response, error) {
	ordered := m.ordered(opts.PreferredEngine)
	if len(ordered) == 0 {
		return nil, &Error{Reason: ReasonUnknown, URL: url, Err: errNoEngines}
	}

	var lastErr error
	for _, eng := range ordered {
		resp, err := eng.Fetch(ctx, url, opts)
		if err == nil && resp.OK() {
			if blocked(resp) {
				m.adjust(eng.Kind(), -healthPenalty)
				lastErr = &Error{Reason: ReasonBotDetection, URL: url, Status: resp.Status}
				log.Debug().Str("engine", string(eng.Kind())).Str("url", url).
					Msg("Bot block detected, trying next engine")
				continue
			}
			m.adjust(eng.Kind(), healthReward)
			return resp, nil
		}

		m.adjust(eng.Kind(), -healthPenalty)
		if err != nil {
			lastErr = err
		} else {
			lastErr = statusError(url, resp.Status)
		}
	}

	if fe, ok := AsError(lastErr); ok {
		return nil, fe
	}
	return nil, &Error{Reason: ReasonUnknown, URL: url, Err: lastErr}
}

// Health returns a copy of the current engine scores.
func (m *MultiEngine) Health() map[EngineKind]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[EngineKind]float64, len(m.health))
	for k, v := range m.health {
		out[k] = v
	}
	return out
}

func (m *MultiEngine) ordered(preferred EngineKind) []Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]Engine(nil), m.engines...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind() == preferred {
			return true
		}
		if out[j].Kind() == preferred {
			return false
		}
		return m.health[out[i].Kind()] > m.health[out[j].Kind()]
	})
	return out
}

func (m *MultiEngine) adjust(kind EngineKind, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[kind] + delta
	if h > 1.0 {
		h = 1.0
	}
	if h < 0.0 {
		h = 0.0
	}
	m.health[kind] = h
}

// blocked detects bot-wall pages served with a 2xx status.
func blocked(resp *Response) bool {
	if len(resp.Text) >= botBlockMaxBody {
		return false
	}
	body := strings.ToLower(resp.Text)
	for _, sig := range botBlockSignatures {
		if strings.Contains(body, sig) {
			return true
		}
	}
	return false
}

func statusError(url string, status int) *Error {
	reason := ReasonNetwork
	if status == 401 || status == 403 {
		reason = ReasonAuth
	}
	return &Error{Reason: reason, URL: url, Status: status}
}

var errNoEngines = &noEnginesError{}

type noEnginesError struct{}

func (*noEnginesError) Error() string { return "no engines available" }
