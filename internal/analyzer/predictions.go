package analyzer

import (
	"time"

	"github.com/turfscan/turfscan/internal/model"
)

// Predictions turns an analyzer result into persistable tips. The selection
// is the reconciled favorite; TopFive is the priced order at scan time, the
// material the auditor later compares against the actual finishing order.
func Predictions(analyzerName string, res *Result, now time.Time) []*model.Prediction {
	out := make([]*model.Prediction, 0, len(res.Races))
	for _, race := range res.Races {
		priced := pricedAscending(race)
		if len(priced) == 0 {
			continue
		}
		p := &model.Prediction{
			RaceID:          race.ID,
			Venue:           race.Venue,
			RaceNumber:      race.RaceNumber,
			StartTime:       race.StartTime,
			Discipline:      race.Discipline,
			SelectionNumber: priced[0].runner.Number,
			SelectionName:   priced[0].runner.Name,
			Analyzer:        analyzerName,
			CreatedAt:       now,
		}
		if len(priced) > 1 {
			odds := priced[1].odds
			p.Predicted2ndFavOdds = &odds
		}
		for i := 0; i < len(priced) && i < 5; i++ {
			p.TopFive = append(p.TopFive, priced[i].runner.Number)
		}
		if race.Metadata != nil {
			if v, ok := race.Metadata[model.MetaIsGoldmine].(bool); ok {
				p.IsGoldmine = v
			}
		}
		out = append(out, p)
	}
	return out
}
