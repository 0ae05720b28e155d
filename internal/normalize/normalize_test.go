package normalize

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Galloping Ghost  ", "Galloping Ghost"},
		{"Sea The Stars (IRE)", "Sea The Stars"},
		{"4. Fast Lane", "Fast Lane"},
		{"D'Artagnan's Luck", "D'Artagnan's Luck"},
		{"Red  Rum", "Red Rum"},
		{"Mister Nobody (USA)", "Mister Nobody"},
		{"***", "Unknown"},
		{"", "Unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RunnerName(tc.in), "input %q", tc.in)
	}
}

func TestVenueAliases(t *testing.T) {
	assert.Equal(t, "Aqueduct", Venue("AQU"))
	assert.Equal(t, "Wolverhampton", Venue("Dunstall Park"))
	assert.Equal(t, "Great Yarmouth", Venue("YARMOUTH"))
	assert.Equal(t, "Gulfstream Park", Venue("GP"))
}

func TestVenueKeywordTruncation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Kempton Park Novice Stakes", "Kempton Park"},
		{"Ascot CHASE", "Ascot"},
		{"Cheltenham (Old Course) Handicap Hurdle", "Cheltenham"},
		{"Vincennes Prix de Bretagne", "Vincennes"},
		{"Leopardstown BEST ODDS GUARANTEED", "Leopardstown"},
		{"Doncaster", "Doncaster"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Venue(tc.in), "input %q", tc.in)
	}
}

func TestVenueCanonicalInvariant(t *testing.T) {
	for _, v := range []string{"Gulfstream Park", "Epsom Downs", "doncaster", "Santa Anita"} {
		base := CanonicalVenue(Venue(v))
		assert.Equal(t, base, CanonicalVenue(Venue(v+" (IRE)")), "country suffix must not change canonical form")
		assert.Equal(t, base, CanonicalVenue(Venue("  "+v+" — Handicap")), "race-title noise must not change canonical form")
	}
}

func TestVenueKeywordInsideWord(t *testing.T) {
	// OPEN must not match inside a longer word.
	assert.Equal(t, "Openfield Downs", Venue("Openfield Downs"))
}

func TestOddsFractional(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"7/4", 2.75},
		{"7-4", 2.75},
		{"7 TO 4", 2.75},
		{"1/2", 1.5},
		{"100/30", 4.33},
		{"9/2", 5.5},
	}
	for _, tc := range cases {
		got := Odds(tc.in)
		require.NotNil(t, got, "input %q", tc.in)
		assert.InDelta(t, tc.want, *got, 0.001, "input %q", tc.in)
	}
}

func TestOddsFractionalSoundness(t *testing.T) {
	for num := int64(1); num <= 40; num++ {
		for den := int64(1); den <= 12; den++ {
			got := Odds(fmt.Sprintf("%d/%d", num, den))
			want := math.Round((float64(num)/float64(den)+1.0)*100) / 100
			if want < MinOdds || want >= MaxOdds {
				assert.Nil(t, got)
				continue
			}
			require.NotNil(t, got, "%d/%d", num, den)
			assert.InDelta(t, want, *got, 0.001, "%d/%d", num, den)
		}
	}
}

func TestOddsDecimalAndAmerican(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"3.50", 3.5},
		{"3,50", 3.5},
		{"+250", 3.5},
		{"-150", 1.67},
		{"1.01", 1.01},
	}
	for _, tc := range cases {
		got := Odds(tc.in)
		require.NotNil(t, got, "input %q", tc.in)
		assert.InDelta(t, tc.want, *got, 0.001, "input %q", tc.in)
	}
}

func TestOddsSpecialTokens(t *testing.T) {
	for _, s := range []string{"SCR", "scratched", "N/A", "NR", "VOID", "", "-"} {
		assert.Nil(t, Odds(s), "input %q", s)
	}
	for _, s := range []string{"EVN", "even", "EVS", "Evens"} {
		got := Odds(s)
		require.NotNil(t, got, "input %q", s)
		assert.Equal(t, 2.0, *got, "input %q", s)
	}
}

func TestOddsIntegerShorthand(t *testing.T) {
	got := Odds("3")
	require.NotNil(t, got)
	assert.Equal(t, 4.0, *got, "3 means 3/1")

	got = Odds("50")
	require.NotNil(t, got)
	assert.Equal(t, 51.0, *got)

	// Outside shorthand range a bare integer is a decimal price.
	got = Odds("75")
	require.NotNil(t, got)
	assert.Equal(t, 75.0, *got)
}

func TestOddsRange(t *testing.T) {
	assert.Nil(t, Odds("0.5"), "below minimum")
	assert.Nil(t, Odds("1000.0"), "at exclusive maximum")
	assert.Nil(t, Odds("2500"), "far above maximum")
	assert.Nil(t, Odds("garbage"))
}

func TestTrustworthy(t *testing.T) {
	assert.False(t, Trustworthy(2.75), "2.75 is the placeholder default")
	assert.True(t, Trustworthy(2.76))
	assert.True(t, Trustworthy(3.5))
}
