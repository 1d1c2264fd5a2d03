package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modfin/bellman/models"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/bellman/schema"
)

// Assessment is a model's own, verbal rating of an answer. It is reported
// next to the log-probability confidence and never replaces it.
type Assessment struct {
	Confidence float64         `json:"confidence" json-minimum:"0.0" json-maximum:"1.0" json-description:"a confidence score between [0.0, 1.0] that denotes how likely the answer is to be correct and complete for the question"`
	Note       string          `json:"note,omitempty" json-description:"one short sentence naming the weakest part of the answer"`
	Metadata   models.Metadata `json:"-"`
}

const DefaultAssessPrompt = `You review answers written by another language model.
Rate how likely the answer is to be factually correct and complete for the question.
Be strict: hedged, vague or unverifiable claims lower the score.`

type Assessor struct {
	proxy  *Proxy
	model  gen.Model
	system string
}

func NewAssessor(proxy *Proxy, model gen.Model) *Assessor {
	return &Assessor{
		proxy:  proxy,
		model:  model,
		system: DefaultAssessPrompt,
	}
}

// Assess asks the model to rate answer. It stops waiting for the model when
// ctx is done.
func (a *Assessor) Assess(ctx context.Context, question, answer string) (Assessment, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}

	llm, err := a.proxy.Gen(a.model)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to create llm: %w", err)
	}

	type result struct {
		ass Assessment
		err error
	}
	done := make(chan result, 1)
	go func() {
		ass, err := a.generate(llm, question, answer)
		done <- result{ass, err}
	}()

	var ass Assessment
	select {
	case <-ctx.Done():
		return Assessment{}, fmt.Errorf("assessment abandoned: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return Assessment{}, r.err
		}
		ass = r.ass
	}

	slog.Default().Debug("assessment",
		"provider", a.model.Provider,
		"model", a.model.Name,
		"confidence", ass.Confidence,
		"took", time.Since(start),
		"input-tokens", ass.Metadata.InputTokens,
		"output-tokens", ass.Metadata.OutputTokens,
	)
	return ass, nil
}

func (a *Assessor) generate(llm *gen.Generator, question, answer string) (Assessment, error) {
	res, err := llm.
		System(a.system).
		Output(schema.From(Assessment{})).
		Prompt(
			prompt.Prompt{
				Role: prompt.UserRole,
				Text: fmt.Sprintf("<question> %s </question>", question),
			},
			prompt.Prompt{
				Role: prompt.UserRole,
				Text: fmt.Sprintf("<answer> %s </answer>", answer),
			},
		)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to generate assessment: %w", err)
	}

	var ass Assessment
	err = res.Unmarshal(&ass)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to unmarshal assessment: %w", err)
	}
	ass.Metadata = res.Metadata
	ass.Confidence = min(max(ass.Confidence, 0), 1)
	return ass, nil
}
