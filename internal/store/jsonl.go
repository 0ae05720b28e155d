package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/model"
)

// JSONLStore keeps predictions in a JSON-lines file, one record per line.
// The whole file is held in memory; writes rewrite it atomically via a temp
// file and rename. Unknown fields on disk are ignored so the schema can
// grow.
type JSONLStore struct {
	mu    sync.Mutex
	path  string
	byKey map[string]*model.Prediction
	order []string
}

// OpenJSONL loads (or creates) a JSON-lines prediction store.
func OpenJSONL(path string) (*JSONLStore, error) {
	s := &JSONLStore{path: path, byKey: make(map[string]*model.Prediction)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open prediction store: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p model.Prediction
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn().Str("path", path).Int("line", line).Err(err).
				Msg("Skipping unreadable prediction record")
			continue
		}
		s.insertLocked(&p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prediction store: %w", err)
	}
	return s, nil
}

func (s *JSONLStore) insertLocked(p *model.Prediction) {
	k := predictionKey(p)
	if _, ok := s.byKey[k]; !ok {
		s.order = append(s.order, k)
	}
	s.byKey[k] = p
}

// SavePredictions appends tips not seen before and persists.
func (s *JSONLStore) SavePredictions(_ context.Context, preds []*model.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range preds {
		if _, exists := s.byKey[predictionKey(p)]; exists {
			continue
		}
		cp := *p
		s.insertLocked(&cp)
		added++
	}
	if added == 0 {
		return nil
	}
	return s.flushLocked()
}

// PendingAudits returns unaudited tips inside the window, oldest first.
func (s *JSONLStore) PendingAudits(_ context.Context, since, until time.Time) ([]*model.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Prediction
	for _, k := range s.order {
		p := s.byKey[k]
		if p.AuditCompleted {
			continue
		}
		if p.StartTime.Before(since) || p.StartTime.After(until) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// UpdateAudits replaces stored records with their audited versions and
// persists once for the whole batch.
func (s *JSONLStore) UpdateAudits(_ context.Context, preds []*model.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range preds {
		k := predictionKey(p)
		if _, ok := s.byKey[k]; !ok {
			return fmt.Errorf("unknown prediction %s", k)
		}
		cp := *p
		s.byKey[k] = &cp
	}
	return s.flushLocked()
}

// All returns a copy of every stored prediction in insertion order.
func (s *JSONLStore) All() []*model.Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Prediction, 0, len(s.order))
	for _, k := range s.order {
		cp := *s.byKey[k]
		out = append(out, &cp)
	}
	return out
}

func (s *JSONLStore) Close() error { return nil }

// flushLocked writes every record to a temp file and renames it over the
// store so readers never observe a torn file.
func (s *JSONLStore) flushLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".predictions-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, k := range s.order {
		if err := enc.Encode(s.byKey[k]); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
