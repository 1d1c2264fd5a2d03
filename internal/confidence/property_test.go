package confidence

import (
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func positionsFrom(best []float64, gap float64) []Position {
	positions := make([]Position, len(best))
	for i, lp := range best {
		positions[i] = Position{"top": lp, "runner-up": lp - gap}
	}
	return positions
}

func TestProperty_TokenConfidences(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("one confidence per non-empty position, exp(max)*100", prop.ForAll(
		func(best []float64, gap float64) bool {
			confs, _ := TokenConfidences(positionsFrom(best, gap))
			if len(confs) != len(best) {
				return false
			}
			for i, lp := range best {
				if math.Abs(confs[i]-math.Exp(lp)*100) > 1e-9 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-15, 0)),
		gen.Float64Range(0, 5),
	))

	properties.Property("confidences stay within (0, 100]", prop.ForAll(
		func(best []float64) bool {
			confs, _ := TokenConfidences(positionsFrom(best, 1))
			for _, c := range confs {
				if c <= 0 || c > 100+1e-9 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-15, 0)),
	))

	properties.Property("overall is the mean of the token confidences", prop.ForAll(
		func(best []float64) bool {
			confs, overall := TokenConfidences(positionsFrom(best, 1))
			if len(confs) == 0 {
				return overall == 0
			}
			var sum float64
			for _, c := range confs {
				sum += c
			}
			return math.Abs(overall-sum/float64(len(confs))) < 1e-9
		},
		gen.SliceOf(gen.Float64Range(-15, 0)),
	))

	properties.Property("empty positions are skipped without shifting the rest", prop.ForAll(
		func(best []float64, holes []bool) bool {
			var positions []Position
			for i, lp := range best {
				if i < len(holes) && holes[i] {
					positions = append(positions, Position{})
				}
				positions = append(positions, Position{"top": lp})
			}
			withHoles, _ := TokenConfidences(positions)
			without, _ := TokenConfidences(positionsFrom(best, 1))
			if len(withHoles) != len(without) {
				return false
			}
			for i := range without {
				if withHoles[i] != without[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-15, 0)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

var fragments = gen.SliceOf(gen.OneConstOf(
	"Paris", "is", "the", "capital.", "Why?", "Yes!!", "3.14", "e.g.", "end...",
	"\n", "\t", "  ", "What?!", "ok", "Ça", "va.",
))

func TestProperty_SentenceSplitting(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("splitting is idempotent", prop.ForAll(
		func(parts []string) bool {
			text := strings.Join(parts, " ")
			first := SplitSentences(text)
			second := SplitSentences(strings.Join(first, " "))
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i] != second[i] {
					return false
				}
			}
			return true
		},
		fragments,
	))

	properties.Property("sentences conserve the word count", prop.ForAll(
		func(parts []string) bool {
			text := strings.Join(parts, " ")
			var words int
			for _, s := range SplitSentences(text) {
				words += len(Words(s))
			}
			return words == len(Words(text))
		},
		fragments,
	))

	properties.Property("aligned runs never exceed their word count", prop.ForAll(
		func(parts []string, best []float64) bool {
			text := strings.Join(parts, " ")
			confs, _ := TokenConfidences(positionsFrom(best, 1))
			sentences := SentenceConfidences(text, confs)
			for _, s := range sentences {
				if s.Confidence < 0 || s.Confidence > 100+1e-9 {
					return false
				}
			}
			return len(sentences) == len(SplitSentences(text))
		},
		fragments,
		gen.SliceOf(gen.Float64Range(-15, 0)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_Classify(t *testing.T) {
	properties := gopter.NewProperties(nil)
	table := DefaultTable()

	properties.Property("higher confidence never lands in a worse band", prop.ForAll(
		func(a, b float64) bool {
			if a < b {
				a, b = b, a
			}
			return table.Rank(a) <= table.Rank(b)
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.Property("the band bounds contain the value", prop.ForAll(
		func(c float64) bool {
			i := table.Rank(c)
			if i == len(table)-1 {
				return c < table.Upper(i)
			}
			return c >= table[i].Lower && c < table.Upper(i) || i == 0 && c >= table[0].Lower
		},
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
