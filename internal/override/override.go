package override

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxAge is how long a pending request waits for a human before it is
// purged.
const DefaultMaxAge = 24 * time.Hour

// Pending is a fetch that died behind a bot wall and is waiting for
// manually supplied content.
type Pending struct {
	RequestID   string    `json:"request_id"`
	Adapter     string    `json:"adapter"`
	URL         string    `json:"url"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	Fulfilled   bool      `json:"fulfilled"`
	Content     string    `json:"-"`
	ContentType string    `json:"content_type,omitempty"`
}

// Manager tracks pending manual-override requests keyed by
// (adapter, url, date). Process-lifetime state.
type Manager struct {
	mu     sync.Mutex
	byKey  map[string]*Pending
	byID   map[string]*Pending
	maxAge time.Duration
	now    func() time.Time
}

// NewManager creates a manager with the given retention; zero means the
// 24h default.
func NewManager(maxAge time.Duration) *Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{
		byKey:  make(map[string]*Pending),
		byID:   make(map[string]*Pending),
		maxAge: maxAge,
		now:    time.Now,
	}
}

func key(adapter, url, date string) string {
	return adapter + "|" + url + "|" + date
}

// Register records a blocked fetch. Re-registering the same key refreshes
// the timestamp but keeps the request ID so an operator link stays valid.
func (m *Manager) Register(adapter, url, date string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked()

	k := key(adapter, url, date)
	if p, ok := m.byKey[k]; ok {
		p.CreatedAt = m.now()
		return p.RequestID
	}
	p := &Pending{
		RequestID: uuid.New().String()[:8],
		Adapter:   adapter,
		URL:       url,
		Date:      date,
		CreatedAt: m.now(),
	}
	m.byKey[k] = p
	m.byID[p.RequestID] = p
	log.Info().Str("adapter", adapter).Str("url", url).Str("request_id", p.RequestID).
		Msg("Registered pending manual override")
	return p.RequestID
}

// Submit attaches human-supplied content to a pending request.
func (m *Manager) Submit(requestID, content, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[requestID]
	if !ok {
		return fmt.Errorf("unknown override request %q", requestID)
	}
	p.Content = content
	p.ContentType = contentType
	p.Fulfilled = true
	return nil
}

// Take returns fulfilled content for an adapter/date pair and consumes the
// pending entry. The adapter base prefers this over a network fetch.
func (m *Manager) Take(adapter, date string) (content string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked()

	for k, p := range m.byKey {
		if p.Adapter == adapter && p.Date == date && p.Fulfilled {
			delete(m.byKey, k)
			delete(m.byID, p.RequestID)
			return p.Content, true
		}
	}
	return "", false
}

// List returns pending requests with raw content omitted.
func (m *Manager) List() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked()

	out := make([]Pending, 0, len(m.byKey))
	for _, p := range m.byKey {
		out = append(out, *p)
	}
	return out
}

func (m *Manager) purgeLocked() {
	cutoff := m.now().Add(-m.maxAge)
	for k, p := range m.byKey {
		if p.CreatedAt.Before(cutoff) {
			delete(m.byKey, k)
			delete(m.byID, p.RequestID)
		}
	}
}
