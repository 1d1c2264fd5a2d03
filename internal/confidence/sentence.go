package confidence

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/modfin/henry/slicez"
)

// SentenceConfidence is a sentence and the mean confidence of the token
// confidences assigned to it.
type SentenceConfidence struct {
	Sentence   string  `json:"sentence"`
	Confidence float64 `json:"confidence"`
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// SplitSentences splits text after every run of '.', '!' or '?' that is
// followed by whitespace. The whitespace is discarded, surrounding
// whitespace of text is trimmed, and empty sentences are dropped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)

	var sentences []string
	var prev rune
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) || !isTerminal(prev) {
			prev = r
			i += size
			continue
		}

		sentences = append(sentences, text[start:i])

		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		start = i
		prev = ' '
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	return slicez.Filter(sentences, func(s string) bool {
		return s != ""
	})
}

// Align hands out consecutive runs of confs, run i getting counts[i]
// values starting where run i-1 ended. The cursor always advances by the
// requested count, so once confs is exhausted later runs come back short or
// empty instead of borrowing from their neighbours. This is a positional
// approximation: counts are usually word counts while confs are indexed by
// model tokens.
func Align(counts []int, confs []float64) [][]float64 {
	runs := make([][]float64, len(counts))
	cursor := 0
	for i, n := range counts {
		lo := min(cursor, len(confs))
		hi := min(cursor+n, len(confs))
		runs[i] = confs[lo:hi]
		cursor += n
	}
	return runs
}

// SentenceConfidences splits text into sentences and averages the token
// confidences positionally, one value per whitespace delimited word.
// Sentences that run past the end of confs get the mean of what is left,
// or 0 when nothing is.
func SentenceConfidences(text string, confs []float64) []SentenceConfidence {
	sentences := SplitSentences(text)
	counts := slicez.Map(sentences, func(s string) int {
		return len(Words(s))
	})
	runs := Align(counts, confs)

	out := make([]SentenceConfidence, len(sentences))
	for i, s := range sentences {
		out[i] = SentenceConfidence{
			Sentence:   s,
			Confidence: Mean(runs[i]),
		}
	}
	return out
}
