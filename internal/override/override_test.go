package override

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSubmitTake(t *testing.T) {
	m := NewManager(0)

	id := m.Register("raceform", "https://example.com/cards", "2025-10-20")
	require.NotEmpty(t, id)

	// Nothing to take until a human submits content.
	_, ok := m.Take("raceform", "2025-10-20")
	assert.False(t, ok)

	require.NoError(t, m.Submit(id, "<html>card</html>", "text/html"))

	content, ok := m.Take("raceform", "2025-10-20")
	require.True(t, ok)
	assert.Equal(t, "<html>card</html>", content)

	// Consumed on take.
	_, ok = m.Take("raceform", "2025-10-20")
	assert.False(t, ok)
}

func TestRegisterIdempotent(t *testing.T) {
	m := NewManager(0)
	id1 := m.Register("a", "u", "d")
	id2 := m.Register("a", "u", "d")
	assert.Equal(t, id1, id2, "same key keeps its request ID")
	assert.Len(t, m.List(), 1)
}

func TestSubmitUnknownID(t *testing.T) {
	m := NewManager(0)
	assert.Error(t, m.Submit("nope", "x", "text/html"))
}

func TestPurgeOldEntries(t *testing.T) {
	m := NewManager(time.Hour)
	current := time.Now()
	m.now = func() time.Time { return current }

	m.Register("a", "u", "d")
	assert.Len(t, m.List(), 1)

	current = current.Add(2 * time.Hour)
	assert.Empty(t, m.List(), "entries older than max age are purged")
}

func TestTakeScopedToAdapterAndDate(t *testing.T) {
	m := NewManager(0)
	id := m.Register("a", "u", "2025-10-20")
	require.NoError(t, m.Submit(id, "content", "text/html"))

	_, ok := m.Take("b", "2025-10-20")
	assert.False(t, ok)
	_, ok = m.Take("a", "2025-10-21")
	assert.False(t, ok)
	_, ok = m.Take("a", "2025-10-20")
	assert.True(t, ok)
}
