package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/modfin/qualm/internal/confidence"
	"github.com/modfin/qualm/internal/db"
)

// View selects which confidence breakdown Entry prints.
type View string

const (
	ViewSentences View = "sentences"
	ViewTokens    View = "tokens"
	ViewBoth      View = "both"
	ViewNone      View = "none"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(s)); v {
	case ViewSentences, ViewTokens, ViewBoth, ViewNone:
		return v, nil
	case "":
		return ViewSentences, nil
	}
	return "", fmt.Errorf("unknown view '%s', expected sentences, tokens, both or none", s)
}

var palette = map[string]color.Attribute{
	"green":       color.FgGreen,
	"orange":      color.FgYellow,
	"amber":       color.FgYellow,
	"dark-orange": color.FgHiYellow,
	"red":         color.FgRed,
	"pink":        color.FgHiMagenta,
	"blue":        color.FgBlue,
	"cyan":        color.FgCyan,
	"gray":        color.FgHiBlack,
	"grey":        color.FgHiBlack,
}

// Paint colors s with the identity of band b. Unknown colors print plain.
func Paint(b confidence.Band, s string) string {
	attr, ok := palette[strings.ToLower(b.Color)]
	if !ok {
		return s
	}
	return color.New(attr, color.Bold).Sprint(s)
}

// Label is the "Confidence: 92.8% (High)" badge of a value.
func Label(table confidence.Table, c float64) string {
	b := table.Classify(c)
	return Paint(b, fmt.Sprintf("Confidence: %.1f%% (%s)", c, b.Name))
}

// Entry prints one question and scored answer.
func Entry(w io.Writer, e db.Entry, res confidence.Result, table confidence.Table, view View) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n", color.New(color.FgBlue, color.Bold).Sprint("You:"), e.Question)
	fmt.Fprintf(&sb, "%s\n", Label(table, res.OverallConfidence))
	if e.AssessedConfidence != nil {
		fmt.Fprintf(&sb, "Self-assessed: %.0f%%", *e.AssessedConfidence*100)
		if e.AssessmentNote != "" {
			fmt.Fprintf(&sb, " (%s)", e.AssessmentNote)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "%s\n%s\n", color.New(color.FgGreen, color.Bold).Sprint("Bot:"), e.Response)

	if view == ViewSentences || view == ViewBoth {
		sb.WriteString("\nSentence-level confidences:\n")
		for _, s := range res.SentenceConfidences {
			b := table.Classify(s.Confidence)
			fmt.Fprintf(&sb, "  %s %s\n", Paint(b, fmt.Sprintf("[%5.1f%%]", s.Confidence)), s.Sentence)
		}
	}

	if view == ViewTokens || view == ViewBoth {
		sb.WriteString("\nToken-level confidences:\n")
		for i, t := range res.Tokens() {
			b := table.Classify(t.Confidence)
			fmt.Fprintf(&sb, "  %s: %s", t.Token, Paint(b, fmt.Sprintf("%.1f%%", t.Confidence)))
			if i%3 == 2 {
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Summary prints one history line per entry.
func Summary(w io.Writer, entries []db.Entry, table confidence.Table, now time.Time) error {
	for _, e := range entries {
		when := humanize.RelTime(time.Unix(e.CreatedAt, 0), now, "ago", "from now")
		conf := Paint(table.Classify(e.OverallConfidence), fmt.Sprintf("%5.1f%%", e.OverallConfidence))
		line := fmt.Sprintf("#%-4d %s  %-14s %s\n", e.ID, conf, when, excerpt(e.Question, 60))
		if e.MinConfidence > 0 {
			line = fmt.Sprintf("#%-4d %s  min %s  %-14s %s\n", e.ID, conf,
				Paint(table.Classify(e.MinConfidence), fmt.Sprintf("%5.1f%%", e.MinConfidence)),
				when, excerpt(e.Question, 60))
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Bands prints the legend of a band table, "High (>=90%)" and so on.
func Bands(w io.Writer, table confidence.Table) error {
	for i, b := range table {
		var bounds string
		switch {
		case len(table) == 1:
			bounds = "all"
		case i == 0:
			bounds = fmt.Sprintf(">=%g%%", b.Lower)
		case i == len(table)-1:
			bounds = fmt.Sprintf("<%g%%", table.Upper(i))
		default:
			bounds = fmt.Sprintf("%g-%g%%", b.Lower, table.Upper(i))
		}
		if _, err := fmt.Fprintf(w, "%s\n", Paint(b, fmt.Sprintf("%s (%s)", b.Name, bounds))); err != nil {
			return err
		}
	}
	return nil
}

// JSON writes v indented.
func JSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
