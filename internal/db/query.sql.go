package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modfin/qualm/internal/db/vec"
)

const entryColumns = `id, uid, session, question, response, tokens, model, token_confidences, overall_confidence, assessed_confidence, assessment_note, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner, extra ...any) (Entry, error) {
	var i Entry
	var tokens string
	var vecbin []byte
	var assessed sql.NullFloat64
	var note sql.NullString

	err := row.Scan(append([]any{
		&i.ID,
		&i.UID,
		&i.Session,
		&i.Question,
		&i.Response,
		&tokens,
		&i.Model,
		&vecbin,
		&i.OverallConfidence,
		&assessed,
		&note,
		&i.CreatedAt,
	}, extra...)...)
	if err != nil {
		return Entry{}, err
	}

	if err := json.Unmarshal([]byte(tokens), &i.Tokens); err != nil {
		return Entry{}, fmt.Errorf("decoding tokens: %w", err)
	}
	i.TokenConfidences, err = vec.DecodeVector(vecbin)
	if err != nil {
		return Entry{}, fmt.Errorf("decoding token confidences: %w", err)
	}
	if assessed.Valid {
		v := assessed.Float64
		i.AssessedConfidence = &v
	}
	i.AssessmentNote = note.String
	return i, nil
}

func (q *Queries) AddEntry(ctx context.Context, e Entry) (Entry, error) {

	const addEntry = `
INSERT INTO entries (uid, session, question, response, tokens, model, token_confidences, overall_confidence, assessed_confidence, assessment_note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + entryColumns

	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	if e.Tokens == nil {
		e.Tokens = []string{}
	}
	tokens, err := json.Marshal(e.Tokens)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding tokens: %w", err)
	}

	var assessed sql.NullFloat64
	if e.AssessedConfidence != nil {
		assessed = sql.NullFloat64{Float64: *e.AssessedConfidence, Valid: true}
	}

	row := q.db.QueryRowContext(ctx, addEntry,
		e.UID,
		e.Session,
		e.Question,
		e.Response,
		string(tokens),
		e.Model,
		vec.EncodeVector(e.TokenConfidences),
		e.OverallConfidence,
		assessed,
		e.AssessmentNote,
	)

	i, err := scanEntry(row)
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return i, nil
}

// ListEntries returns the newest entries of a session first.
func (q *Queries) ListEntries(ctx context.Context, session string, limit int) ([]Entry, error) {

	const listEntries = `
SELECT ` + entryColumns + `
FROM entries
WHERE session = ?
ORDER BY id DESC
LIMIT ?
`

	rows, err := q.db.QueryContext(ctx, listEntries, session, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Weakest returns the entries holding the least confident tokens, ordered by
// their lowest token confidence, then by their mean. Entries without token
// confidences are left out.
func (q *Queries) Weakest(ctx context.Context, session string, limit int) ([]Entry, error) {

	const weakest = `
SELECT ` + entryColumns + `, conf_min(token_confidences) AS min_confidence
FROM entries
WHERE session = ? AND length(token_confidences) > 0
ORDER BY min_confidence ASC, conf_mean(token_confidences) ASC, id DESC
LIMIT ?
`

	rows, err := q.db.QueryContext(ctx, weakest, session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Entry
	for rows.Next() {
		var minConf float64
		i, err := scanEntry(rows, &minConf)
		if err != nil {
			return nil, err
		}
		i.MinConfidence = minConf
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ClearEntries(ctx context.Context, session string) (int64, error) {

	const clearEntries = `
DELETE FROM entries
WHERE session = ?
`

	res, err := q.db.ExecContext(ctx, clearEntries, session)
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) Sessions(ctx context.Context) ([]string, error) {

	const sessions = `
SELECT DISTINCT session
FROM entries
ORDER BY session
`

	rows, err := q.db.QueryContext(ctx, sessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func collect(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var items []Entry
	for rows.Next() {
		i, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
