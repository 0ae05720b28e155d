package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/turfscan/turfscan/internal/model"
)

const predictionSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	race_id                 TEXT NOT NULL,
	analyzer                TEXT NOT NULL DEFAULT '',
	venue                   TEXT NOT NULL,
	race_number             INT NOT NULL,
	start_time              TIMESTAMPTZ NOT NULL,
	discipline              TEXT NOT NULL,
	selection_number        INT NOT NULL DEFAULT 0,
	selection_name          TEXT NOT NULL DEFAULT '',
	top_five                TEXT NOT NULL DEFAULT '',
	predicted_2nd_fav_odds  DOUBLE PRECISION,
	is_goldmine             BOOLEAN NOT NULL DEFAULT FALSE,
	created_at              TIMESTAMPTZ NOT NULL,
	audit_completed         BOOLEAN NOT NULL DEFAULT FALSE,
	verdict                 TEXT NOT NULL DEFAULT '',
	net_profit              DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_top_5            TEXT NOT NULL DEFAULT '',
	actual_2nd_fav_odds     DOUBLE PRECISION,
	selection_position      INT,
	trifecta_payout         DOUBLE PRECISION,
	trifecta_combination    TEXT NOT NULL DEFAULT '',
	superfecta_payout       DOUBLE PRECISION,
	superfecta_combination  TEXT NOT NULL DEFAULT '',
	top1_place_payout       DOUBLE PRECISION,
	top2_place_payout       DOUBLE PRECISION,
	audit_timestamp         TIMESTAMPTZ,
	PRIMARY KEY (race_id, analyzer)
);
CREATE INDEX IF NOT EXISTS idx_predictions_pending
	ON predictions (start_time) WHERE NOT audit_completed;
`

// PostgresStore backs predictions with a Postgres table.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres connects, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if _, err := db.ExecContext(ctx, predictionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure predictions schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// predRow flattens the slice field for sqlx.
type predRow struct {
	model.Prediction
	TopFiveCSV string `db:"top_five"`
}

func toRow(p *model.Prediction) predRow {
	return predRow{Prediction: *p, TopFiveCSV: joinInts(p.TopFive)}
}

func (r predRow) prediction() *model.Prediction {
	p := r.Prediction
	p.TopFive = splitInts(r.TopFiveCSV)
	return &p
}

func (s *PostgresStore) SavePredictions(ctx context.Context, preds []*model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO predictions (
			race_id, analyzer, venue, race_number, start_time, discipline,
			selection_number, selection_name, top_five, predicted_2nd_fav_odds,
			is_goldmine, created_at, audit_completed, verdict, net_profit
		) VALUES (
			:race_id, :analyzer, :venue, :race_number, :start_time, :discipline,
			:selection_number, :selection_name, :top_five, :predicted_2nd_fav_odds,
			:is_goldmine, :created_at, FALSE, '', 0
		) ON CONFLICT (race_id, analyzer) DO NOTHING`
	for _, p := range preds {
		if _, err := tx.NamedExecContext(ctx, insert, toRow(p)); err != nil {
			return fmt.Errorf("insert prediction %s: %w", p.RaceID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) PendingAudits(ctx context.Context, since, until time.Time) ([]*model.Prediction, error) {
	const query = `
		SELECT * FROM predictions
		WHERE NOT audit_completed AND start_time BETWEEN $1 AND $2
		ORDER BY start_time`
	var rows []predRow
	if err := s.db.SelectContext(ctx, &rows, query, since, until); err != nil {
		return nil, fmt.Errorf("select pending audits: %w", err)
	}
	out := make([]*model.Prediction, len(rows))
	for i, r := range rows {
		out[i] = r.prediction()
	}
	return out, nil
}

// UpdateAudits writes verdicts back in a single transaction.
func (s *PostgresStore) UpdateAudits(ctx context.Context, preds []*model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const update = `
		UPDATE predictions SET
			audit_completed = :audit_completed,
			verdict = :verdict,
			net_profit = :net_profit,
			actual_top_5 = :actual_top_5,
			actual_2nd_fav_odds = :actual_2nd_fav_odds,
			selection_position = :selection_position,
			trifecta_payout = :trifecta_payout,
			trifecta_combination = :trifecta_combination,
			superfecta_payout = :superfecta_payout,
			superfecta_combination = :superfecta_combination,
			top1_place_payout = :top1_place_payout,
			top2_place_payout = :top2_place_payout,
			audit_timestamp = :audit_timestamp
		WHERE race_id = :race_id AND analyzer = :analyzer`
	stmt, err := tx.PrepareNamedContext(ctx, update)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range preds {
		if _, err := stmt.ExecContext(ctx, toRow(p)); err != nil {
			return fmt.Errorf("update audit %s: %w", p.RaceID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, n := range in {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
