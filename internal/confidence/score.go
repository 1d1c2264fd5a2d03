package confidence

// Result is everything the presentation layer needs to draw a confidence
// overlay for one completion.
type Result struct {
	TokenConfidences    []float64            `json:"token_confidences"`
	OverallConfidence   float64              `json:"overall_confidence"`
	DisplayTokens       []string             `json:"display_tokens"`
	SentenceConfidences []SentenceConfidence `json:"sentence_confidences"`
}

// Score runs the whole pipeline over a completion. A completion without
// log-probability data is not an error; it yields an overall confidence of
// 0 and no token confidences.
func Score(c Completion) Result {
	confs, overall := TokenConfidences(c.Positions)
	return Result{
		TokenConfidences:    confs,
		OverallConfidence:   overall,
		DisplayTokens:       DisplayTokens(c.Text),
		SentenceConfidences: SentenceConfidences(c.Text, confs),
	}
}

// Mismatch is the difference between the number of words in the text and
// the number of token confidences. Sentence alignment is only exact when it
// is zero.
func (r Result) Mismatch() int {
	return len(r.DisplayTokens) - len(r.TokenConfidences)
}

// Tokens pairs the display tokens with the token confidences.
func (r Result) Tokens() []TokenScore {
	return PairTokens(r.DisplayTokens, r.TokenConfidences)
}
