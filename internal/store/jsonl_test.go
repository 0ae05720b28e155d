package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turfscan/turfscan/internal/model"
)

func samplePrediction(raceID string, start time.Time) *model.Prediction {
	return &model.Prediction{
		RaceID:          raceID,
		Venue:           "Gulfstream Park",
		RaceNumber:      3,
		StartTime:       start,
		Discipline:      model.Thoroughbred,
		SelectionNumber: 4,
		SelectionName:   "Fast Horse",
		TopFive:         []int{4, 1, 7, 2, 5},
		Analyzer:        "trifecta",
		CreatedAt:       start.Add(-time.Hour),
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	start := time.Date(2025, 10, 20, 18, 30, 0, 0, time.UTC)

	s, err := OpenJSONL(path)
	require.NoError(t, err)
	require.NoError(t, s.SavePredictions(context.Background(),
		[]*model.Prediction{samplePrediction("r1", start)}))

	// Reopen and read back.
	s2, err := OpenJSONL(path)
	require.NoError(t, err)
	pending, err := s2.PendingAudits(context.Background(), start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].RaceID)
	assert.Equal(t, []int{4, 1, 7, 2, 5}, pending[0].TopFive)
}

func TestJSONLSaveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	start := time.Date(2025, 10, 20, 18, 30, 0, 0, time.UTC)
	s, err := OpenJSONL(path)
	require.NoError(t, err)

	p := samplePrediction("r1", start)
	require.NoError(t, s.SavePredictions(context.Background(), []*model.Prediction{p}))
	require.NoError(t, s.SavePredictions(context.Background(), []*model.Prediction{p}))

	pending, err := s.PendingAudits(context.Background(), start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestJSONLUpdateAudits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	start := time.Date(2025, 10, 20, 18, 30, 0, 0, time.UTC)
	s, err := OpenJSONL(path)
	require.NoError(t, err)

	p := samplePrediction("r1", start)
	require.NoError(t, s.SavePredictions(context.Background(), []*model.Prediction{p}))

	p.AuditCompleted = true
	p.Verdict = model.VerdictCashed
	p.NetProfit = 1.40
	require.NoError(t, s.UpdateAudits(context.Background(), []*model.Prediction{p}))

	pending, err := s.PendingAudits(context.Background(), start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, pending, "audited tips leave the pending set")

	// The verdict survives a reopen.
	s2, err := OpenJSONL(path)
	require.NoError(t, err)
	row := s2.byKey["r1|trifecta"]
	require.NotNil(t, row)
	assert.Equal(t, model.VerdictCashed, row.Verdict)
	assert.Equal(t, 1.40, row.NetProfit)

	// Updating an unknown tip is an error.
	ghost := samplePrediction("ghost", start)
	assert.Error(t, s.UpdateAudits(context.Background(), []*model.Prediction{ghost}))
}

func TestJSONLWindowFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	s, err := OpenJSONL(path)
	require.NoError(t, err)

	base := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePredictions(context.Background(), []*model.Prediction{
		samplePrediction("old", base.Add(-72*time.Hour)),
		samplePrediction("in", base.Add(-2*time.Hour)),
		samplePrediction("future", base.Add(2*time.Hour)),
	}))

	pending, err := s.PendingAudits(context.Background(), base.Add(-48*time.Hour), base)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "in", pending[0].RaceID)
}

func TestJSONLSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	good := `{"race_id":"r1","venue":"Ascot","race_number":1,"start_time":"2025-10-20T18:30:00Z","discipline":"thoroughbred","analyzer":"trifecta","created_at":"2025-10-20T17:00:00Z","audit_completed":false,"net_profit":0,"selection_number":1,"selection_name":"A","is_goldmine":false}`
	require.NoError(t, os.WriteFile(path, []byte("not json\n"+good+"\n"), 0o644))

	s, err := OpenJSONL(path)
	require.NoError(t, err)
	assert.Len(t, s.byKey, 1)
}
