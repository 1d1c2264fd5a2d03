package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// Entry is one question and scored answer in a session's chat history.
// Entries are written once and never updated.
type Entry struct {
	ID      int    `json:"id"`
	UID     string `json:"uid"`
	Session string `json:"session"`

	Question string   `json:"question"`
	Response string   `json:"response"`
	Tokens   []string `json:"tokens"`

	Model             string    `json:"model"`
	TokenConfidences  []float64 `json:"token_confidences"`
	OverallConfidence float64   `json:"overall_confidence"`

	// AssessedConfidence is the model's own verbal rating in [0, 1], when
	// self-assessment was requested.
	AssessedConfidence *float64 `json:"assessed_confidence,omitempty"`
	AssessmentNote     string   `json:"assessment_note,omitempty"`

	// MinConfidence is only filled by Weakest.
	MinConfidence float64 `json:"min_confidence,omitempty"`

	CreatedAt int64 `json:"created_at"`
}
