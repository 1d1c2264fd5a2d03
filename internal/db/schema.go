package db

var Schema string = `
CREATE TABLE IF NOT EXISTS entries
(
    id   INTEGER PRIMARY KEY,
    uid  TEXT NOT NULL,

    session TEXT DEFAULT 'default',

    question TEXT,
    response TEXT,
    tokens   TEXT,

    model TEXT,
    token_confidences BLOB,
    overall_confidence REAL,

    assessed_confidence REAL,
    assessment_note TEXT,

    created_at INTEGER DEFAULT (strftime('%s', 'now')),

    CONSTRAINT unique_uid UNIQUE (uid)
);

CREATE INDEX IF NOT EXISTS entries_session_id ON entries (session, id);
`
