package handicap

import (
	"math"
	"testing"
)

func TestComputeRaceFormat_KnownRatings(t *testing.T) {
	cases := []struct {
		name      string
		rating1   int
		rating2   int
		wantShort Race
		wantLong  Race
	}{
		{
			name:      "mid table pairing",
			rating1:   400,
			rating2:   300,
			wantShort: Race{P1: 20, P2: 15},
			wantLong:  Race{P1: 27, P2: 20},
		},
		{
			name:      "very low rating clamps to floor",
			rating1:   5,
			rating2:   400,
			wantShort: Race{P1: 1, P2: 20},
			wantLong:  Race{P1: 1, P2: 27},
		},
		{
			name:      "zero rating clamps to floor",
			rating1:   0,
			rating2:   0,
			wantShort: Race{P1: 1, P2: 1},
			wantLong:  Race{P1: 1, P2: 1},
		},
		{
			name:      "top of observed range",
			rating1:   900,
			rating2:   900,
			wantShort: Race{P1: 45, P2: 45},
			wantLong:  Race{P1: 60, P2: 60},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeRaceFormat(tc.rating1, tc.rating2)
			if got.Short != tc.wantShort {
				t.Fatalf("unexpected short race: got=%+v want=%+v", got.Short, tc.wantShort)
			}
			if got.Long != tc.wantLong {
				t.Fatalf("unexpected long race: got=%+v want=%+v", got.Long, tc.wantLong)
			}
		})
	}
}

func TestComputeRaceFormat_TargetsAlwaysReachable(t *testing.T) {
	for rating := 0; rating <= 900; rating++ {
		format := ComputeRaceFormat(rating, 450)
		if format.Short.P1 < 1 || format.Short.P2 < 1 {
			t.Fatalf("short race below floor for rating %d: %+v", rating, format.Short)
		}
		if format.Long.P1 < 1 || format.Long.P2 < 1 {
			t.Fatalf("long race below floor for rating %d: %+v", rating, format.Long)
		}

		wantLong := int(math.Round(float64(format.Short.P1) * 1.33))
		if wantLong < 1 {
			wantLong = 1
		}
		if format.Long.P1 != wantLong {
			t.Fatalf("long race not derived from rounded short race for rating %d: got=%d want=%d", rating, format.Long.P1, wantLong)
		}
	}
}

func TestComputeRaceFormat_NormalizesBrokenParams(t *testing.T) {
	params := Params{RatingDivisor: 0, LongRaceFactor: -1, MinRace: 0}
	got := params.ComputeRaceFormat(400, 300)
	want := DefaultParams().ComputeRaceFormat(400, 300)
	if got != want {
		t.Fatalf("normalized params should match defaults: got=%+v want=%+v", got, want)
	}
}
