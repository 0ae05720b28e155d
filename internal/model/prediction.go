package model

import "time"

// Verdict is the audit outcome for a prediction.
type Verdict string

const (
	VerdictPending         Verdict = "PENDING"
	VerdictCashed          Verdict = "CASHED"
	VerdictCashedEstimated Verdict = "CASHED_ESTIMATED"
	VerdictBurned          Verdict = "BURNED"
	VerdictVoid            Verdict = "VOID"
)

// Prediction is a persisted tip produced by an analyzer. The auditor mutates
// each record exactly once, filling in the verdict fields and setting
// AuditCompleted.
type Prediction struct {
	RaceID          string     `json:"race_id" db:"race_id"`
	Venue           string     `json:"venue" db:"venue"`
	RaceNumber      int        `json:"race_number" db:"race_number"`
	StartTime       time.Time  `json:"start_time" db:"start_time"`
	Discipline      Discipline `json:"discipline" db:"discipline"`
	SelectionNumber int        `json:"selection_number" db:"selection_number"`
	SelectionName   string     `json:"selection_name" db:"selection_name"`
	TopFive         []int      `json:"top_five,omitempty" db:"-"`

	Predicted2ndFavOdds *float64  `json:"predicted_2nd_fav_odds,omitempty" db:"predicted_2nd_fav_odds"`
	IsGoldmine          bool      `json:"is_goldmine" db:"is_goldmine"`
	Analyzer            string    `json:"analyzer,omitempty" db:"analyzer"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`

	// Audit write-back fields.
	AuditCompleted        bool       `json:"audit_completed" db:"audit_completed"`
	Verdict               Verdict    `json:"verdict,omitempty" db:"verdict"`
	NetProfit             float64    `json:"net_profit" db:"net_profit"`
	ActualTop5            string     `json:"actual_top_5,omitempty" db:"actual_top_5"`
	Actual2ndFavOdds      *float64   `json:"actual_2nd_fav_odds,omitempty" db:"actual_2nd_fav_odds"`
	SelectionPosition     *int       `json:"selection_position,omitempty" db:"selection_position"`
	TrifectaPayout        *float64   `json:"trifecta_payout,omitempty" db:"trifecta_payout"`
	TrifectaCombination   string     `json:"trifecta_combination,omitempty" db:"trifecta_combination"`
	SuperfectaPayout      *float64   `json:"superfecta_payout,omitempty" db:"superfecta_payout"`
	SuperfectaCombination string     `json:"superfecta_combination,omitempty" db:"superfecta_combination"`
	Top1PlacePayout       *float64   `json:"top1_place_payout,omitempty" db:"top1_place_payout"`
	Top2PlacePayout       *float64   `json:"top2_place_payout,omitempty" db:"top2_place_payout"`
	AuditTimestamp        *time.Time `json:"audit_timestamp,omitempty" db:"audit_timestamp"`
}

// CanonicalKey is the strict audit key for the prediction.
func (p *Prediction) CanonicalKey() string {
	return CanonicalResultKey(p.Venue, p.RaceNumber, p.StartTime, p.Discipline)
}

// RelaxedKey is the time-relaxed audit key for the prediction.
func (p *Prediction) RelaxedKey() string {
	return RelaxedResultKey(p.Venue, p.RaceNumber, p.StartTime, p.Discipline)
}

// SelectedNumber resolves the predicted runner number, falling back to the
// first stored top-five entry when no explicit selection was recorded.
func (p *Prediction) SelectedNumber() int {
	if p.SelectionNumber > 0 {
		return p.SelectionNumber
	}
	if len(p.TopFive) > 0 {
		return p.TopFive[0]
	}
	return 0
}
