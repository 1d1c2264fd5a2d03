package confidence

import "math"

// Position holds the top-K candidate tokens the model considered at one
// generated position, keyed by token, valued by natural log-probability.
type Position map[string]float64

// Completion is the generated text together with its per-position
// log-probability table, as returned by a completion source.
type Completion struct {
	Text      string     `json:"text"`
	Positions []Position `json:"positions"`
}

// TokenConfidence converts one position into a percentage by taking the
// most likely candidate, exp(max log-probability) * 100. The boolean is
// false when the position carries no candidates.
//
// This is the probability of the top candidate, not of the emitted token;
// the two only agree when sampling picked the greedy choice.
func TokenConfidence(p Position) (float64, bool) {
	if len(p) == 0 {
		return 0, false
	}
	best := math.Inf(-1)
	for _, lp := range p {
		if lp > best {
			best = lp
		}
	}
	return math.Exp(best) * 100, true
}

// TokenConfidences computes one confidence per position that has data and
// their arithmetic mean. Empty positions are skipped entirely, they neither
// contribute a zero nor occupy a slot in the returned slice.
func TokenConfidences(positions []Position) ([]float64, float64) {
	confs := make([]float64, 0, len(positions))
	for _, p := range positions {
		c, ok := TokenConfidence(p)
		if !ok {
			continue
		}
		confs = append(confs, c)
	}
	return confs, Mean(confs)
}

// Mean is the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
