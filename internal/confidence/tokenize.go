package confidence

import "strings"

// DisplayTokens splits text into whitespace delimited surface tokens.
// Punctuation stays attached to the word it touches and case is preserved.
// The result is a display aid; it is not index aligned with the model's
// own token positions.
func DisplayTokens(text string) []string {
	return strings.Fields(text)
}

// Words returns the maximal runs of non-whitespace characters in text.
func Words(text string) []string {
	return strings.Fields(text)
}

// TokenScore pairs a display token with the confidence found at the
// same index of the token confidence sequence.
type TokenScore struct {
	Token      string  `json:"token"`
	Confidence float64 `json:"confidence"`
}

// PairTokens zips display tokens with token confidences by index and stops
// at the shorter of the two sequences.
func PairTokens(tokens []string, confs []float64) []TokenScore {
	n := min(len(tokens), len(confs))
	out := make([]TokenScore, n)
	for i := 0; i < n; i++ {
		out[i] = TokenScore{Token: tokens[i], Confidence: confs[i]}
	}
	return out
}
