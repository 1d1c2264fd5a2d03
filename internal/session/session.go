package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/qualm/internal/ai"
	"github.com/modfin/qualm/internal/completion"
	"github.com/modfin/qualm/internal/confidence"
	"github.com/modfin/qualm/internal/db"
)

var ErrNoCompletion = errors.New("no completion available")
var ErrEmptyQuestion = errors.New("question is empty")

// Assessor rates an answer on its own, see ai.Assessor.
type Assessor interface {
	Assess(ctx context.Context, question, answer string) (ai.Assessment, error)
}

// Session is one named chat history. It owns no process wide state: the
// completion source and the store are handed in by the caller.
type Session struct {
	name     string
	source   completion.Source
	store    *db.Queries
	request  completion.Request
	assessor Assessor
	logger   *slog.Logger
}

type Option func(*Session)

// WithRequest sets the generation parameters used for every question.
func WithRequest(req completion.Request) Option {
	return func(s *Session) {
		s.request = req
	}
}

func WithAssessor(a Assessor) Option {
	return func(s *Session) {
		s.assessor = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func New(source completion.Source, store *db.Queries, name string, opts ...Option) *Session {
	s := &Session{
		name:    name,
		source:  source,
		store:   store,
		request: completion.Defaults,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", name)
	return s
}

func (s *Session) Name() string {
	return s.name
}

// Ask performs one round trip: fetch a completion, score it and append the
// entry to the history. When the source fails nothing is scored and nothing
// is stored; the error wraps ErrNoCompletion.
func (s *Session) Ask(ctx context.Context, question string) (db.Entry, confidence.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return db.Entry{}, confidence.Result{}, ErrEmptyQuestion
	}

	req := s.request
	req.Prompt = question
	c, err := s.source.Complete(ctx, req)
	if err != nil {
		return db.Entry{}, confidence.Result{}, fmt.Errorf("%w: %w", ErrNoCompletion, err)
	}
	if c.Text == "" || len(c.Positions) == 0 {
		return db.Entry{}, confidence.Result{}, fmt.Errorf("%w: completion carried no text or no log-probabilities", ErrNoCompletion)
	}

	res := confidence.Score(c)
	if res.Mismatch() != 0 {
		s.logger.Debug("word count and token confidences differ, sentence alignment is approximate",
			"words", len(res.DisplayTokens), "confidences", len(res.TokenConfidences))
	}

	entry := db.Entry{
		Session:           s.name,
		Question:          question,
		Response:          c.Text,
		Tokens:            res.DisplayTokens,
		Model:             req.Model,
		TokenConfidences:  res.TokenConfidences,
		OverallConfidence: res.OverallConfidence,
	}

	if s.assessor != nil {
		ass, err := s.assessor.Assess(ctx, question, c.Text)
		if err != nil {
			s.logger.Warn("self assessment failed, storing entry without it", "err", err)
		} else {
			entry.AssessedConfidence = &ass.Confidence
			entry.AssessmentNote = ass.Note
		}
	}

	entry, err = s.store.AddEntry(ctx, entry)
	if err != nil {
		return db.Entry{}, confidence.Result{}, fmt.Errorf("failed to store entry: %w", err)
	}

	s.logger.Info("answered", "id", entry.ID, "overall", res.OverallConfidence, "positions", len(c.Positions))
	return entry, res, nil
}

// History returns up to limit entries, newest first.
func (s *Session) History(ctx context.Context, limit int) ([]db.Entry, error) {
	return s.store.ListEntries(ctx, s.name, limit)
}

// Weakest returns the entries whose least confident token is lowest.
func (s *Session) Weakest(ctx context.Context, limit int) ([]db.Entry, error) {
	return s.store.Weakest(ctx, s.name, limit)
}

// Clear drops the whole history of the session.
func (s *Session) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.ClearEntries(ctx, s.name)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cleared history", "entries", n)
	return n, nil
}

// ResultOf rebuilds the confidence result of a stored entry.
func ResultOf(e db.Entry) confidence.Result {
	confs := e.TokenConfidences
	return confidence.Result{
		TokenConfidences:    confs,
		OverallConfidence:   e.OverallConfidence,
		DisplayTokens:       confidence.DisplayTokens(e.Response),
		SentenceConfidences: confidence.SentenceConfidences(e.Response, confs),
	}
}
