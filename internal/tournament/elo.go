package tournament

import "math"

// Expected returns the expected score of a player rated ra against one rated rb.
func Expected(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// Update applies one Elo update and returns the new ratings.
// The sum of the two ratings is preserved.
func Update(ra, rb float64, v Verdict, k float64) (float64, float64) {
	ea := Expected(ra, rb)
	eb := 1 - ea
	sa, sb := v.Scores()
	return ra + k*(sa-ea), rb + k*(sb-eb)
}

// Rate applies the valid outcomes to fresh ratings for agents.
//
// In sequential mode each update sees the ratings left by the previous one,
// so the result depends on outcome order. In batch mode every expected score
// is taken from the starting ratings and the deltas are summed, which makes
// the result independent of order.
func Rate(agents []string, outcomes []Outcome, p Params) map[string]float64 {
	ratings := make(map[string]float64, len(agents))
	for _, a := range agents {
		ratings[a] = p.InitialRating
	}

	if p.Mode == ModeBatch {
		delta := make(map[string]float64, len(agents))
		for _, o := range outcomes {
			if !o.OK() {
				continue
			}
			ra, rb := ratings[o.Pair.A], ratings[o.Pair.B]
			na, nb := Update(ra, rb, o.Verdict, p.K)
			delta[o.Pair.A] += na - ra
			delta[o.Pair.B] += nb - rb
		}
		for a, d := range delta {
			ratings[a] += d
		}
		return ratings
	}

	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		ratings[o.Pair.A], ratings[o.Pair.B] = Update(ratings[o.Pair.A], ratings[o.Pair.B], o.Verdict, p.K)
	}
	return ratings
}
