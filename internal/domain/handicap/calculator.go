package handicap

import "math"

// Race holds the race-to-N targets for both players of a match.
type Race struct {
	P1 int
	P2 int
}

// RaceFormat is the pair of race lengths a handicap differential produces.
// Short is the regular-session format, Long the extended one.
type RaceFormat struct {
	Short Race
	Long  Race
}

// Params are the tunable constants of the handicap formula. The long-race
// factor approximates a 4:3 long-to-short ratio and is applied to the
// already-rounded short race so both formats stay consistent.
type Params struct {
	RatingDivisor  float64
	LongRaceFactor float64
	MinRace        int
}

func DefaultParams() Params {
	return Params{
		RatingDivisor:  20,
		LongRaceFactor: 1.33,
		MinRace:        1,
	}
}

// Normalize replaces out-of-range values with the defaults so a misconfigured
// environment can never produce a zero-length race.
func (p Params) Normalize() Params {
	defaults := DefaultParams()
	if p.RatingDivisor <= 0 {
		p.RatingDivisor = defaults.RatingDivisor
	}
	if p.LongRaceFactor <= 0 {
		p.LongRaceFactor = defaults.LongRaceFactor
	}
	if p.MinRace < 1 {
		p.MinRace = defaults.MinRace
	}
	return p
}

// ComputeRaceFormat maps two skill ratings to short and long race targets.
// Ratings are assumed pre-validated by the caller; anything that rounds below
// the floor is clamped up to MinRace, never rejected.
func (p Params) ComputeRaceFormat(rating1, rating2 int) RaceFormat {
	p = p.Normalize()

	short1 := p.shortRace(rating1)
	short2 := p.shortRace(rating2)

	return RaceFormat{
		Short: Race{P1: short1, P2: short2},
		Long:  Race{P1: p.longRace(short1), P2: p.longRace(short2)},
	}
}

// ComputeRaceFormat applies the default parameters.
func ComputeRaceFormat(rating1, rating2 int) RaceFormat {
	return DefaultParams().ComputeRaceFormat(rating1, rating2)
}

func (p Params) shortRace(rating int) int {
	race := int(math.Round(float64(rating) / p.RatingDivisor))
	if race < p.MinRace {
		return p.MinRace
	}
	return race
}

func (p Params) longRace(shortRace int) int {
	race := int(math.Round(float64(shortRace) * p.LongRaceFactor))
	if race < p.MinRace {
		return p.MinRace
	}
	return race
}
