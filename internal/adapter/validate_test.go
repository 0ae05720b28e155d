package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turfscan/turfscan/internal/model"
)

func fptr(v float64) *float64 { return &v }

func oddsFrom(source string, win float64) map[string]model.OddsData {
	return map[string]model.OddsData{source: {Win: fptr(win), Source: source}}
}

func TestValidateDropsTinyFields(t *testing.T) {
	races := []*model.Race{
		{Venue: "Ascot", Runners: []*model.Runner{{Number: 1, Name: "Solo"}}},
		{Venue: "Kempton", Runners: []*model.Runner{
			{Number: 1, Name: "A", Odds: oddsFrom("x", 3.0)},
			{Number: 2, Name: "B", Odds: oddsFrom("x", 4.0)},
		}},
		nil,
	}

	out, _ := ValidateRaces(races)
	require.Len(t, out, 1)
	assert.Equal(t, "Kempton", out[0].Venue)
}

func TestValidateReindexesBogusNumbers(t *testing.T) {
	cases := []struct {
		name    string
		numbers []int
		want    []int
	}{
		{"all zero", []int{0, 0, 0}, []int{1, 2, 3}},
		{"database ids", []int{48201, 48202, 48203}, []int{1, 2, 3}},
		{"implausible for field", []int{1, 2, 35}, []int{1, 2, 3}},
		{"plausible large field", []int{1, 2, 18}, []int{1, 2, 18}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			race := &model.Race{Venue: "Ascot"}
			for _, n := range tc.numbers {
				race.Runners = append(race.Runners, &model.Runner{Number: n, Name: "R"})
			}
			out, _ := ValidateRaces([]*model.Race{race})
			require.Len(t, out, 1)
			got := make([]int, 0, len(out[0].Runners))
			for _, r := range out[0].Runners {
				got = append(got, r.Number)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateBestOddsAndTrust(t *testing.T) {
	race := &model.Race{Venue: "Ascot", Runners: []*model.Runner{
		{Number: 1, Name: "A", Odds: map[string]model.OddsData{
			"alpha": {Win: fptr(4.0), Source: "alpha"},
			"beta":  {Win: fptr(3.5), Source: "beta"},
		}},
		{Number: 2, Name: "B", Odds: oddsFrom("alpha", 2.75)}, // placeholder
		{Number: 3, Name: "C"},                               // no odds at all
		{Number: 4, Name: "D", Scratched: true, Odds: oddsFrom("alpha", 9.0)},
	}}

	out, ratio := ValidateRaces([]*model.Race{race})
	require.Len(t, out, 1)
	runners := out[0].Runners

	require.NotNil(t, runners[0].WinOdds)
	assert.Equal(t, 3.5, *runners[0].WinOdds)
	assert.Equal(t, true, runners[0].Metadata[model.MetaOddsTrustworthy])

	// Placeholder price is still the best available, but not trusted.
	require.NotNil(t, runners[1].WinOdds)
	assert.Equal(t, 2.75, *runners[1].WinOdds)
	assert.Equal(t, false, runners[1].Metadata[model.MetaOddsTrustworthy])

	assert.Nil(t, runners[2].WinOdds)
	assert.Equal(t, false, runners[2].Metadata[model.MetaOddsTrustworthy])

	// Scratched runner does not count toward the ratio.
	assert.InDelta(t, 1.0/3.0, ratio, 1e-9)
	assert.InDelta(t, 1.0/3.0, TrustRatio(out[0]), 1e-9)
	assert.Equal(t, 3, out[0].FieldSize)
}

func TestValidateEmptyInput(t *testing.T) {
	out, ratio := ValidateRaces(nil)
	assert.Empty(t, out)
	assert.Equal(t, 0.0, ratio)
}

func TestTrustRatioDefault(t *testing.T) {
	assert.Equal(t, 1.0, TrustRatio(nil))
	assert.Equal(t, 1.0, TrustRatio(&model.Race{}))
}
