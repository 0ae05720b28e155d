// Package store persists predictions between the scan that produces them
// and the audit that settles them. Two backends: a JSON-lines file for
// single-box deployments and Postgres for anything shared.
package store

import (
	"context"
	"time"

	"github.com/turfscan/turfscan/internal/model"
)

// PredictionStore is the persistence contract the auditor and the scan
// command program against.
type PredictionStore interface {
	// SavePredictions appends new tips. Saving a tip whose race ID and
	// analyzer already exist is a no-op, so repeated scans do not duplicate.
	SavePredictions(ctx context.Context, preds []*model.Prediction) error

	// PendingAudits returns unaudited tips whose start time lies in
	// [since, until].
	PendingAudits(ctx context.Context, since, until time.Time) ([]*model.Prediction, error)

	// UpdateAudits writes back audit verdicts, batched where the backend
	// allows.
	UpdateAudits(ctx context.Context, preds []*model.Prediction) error

	Close() error
}

func predictionKey(p *model.Prediction) string {
	return p.RaceID + "|" + p.Analyzer
}
