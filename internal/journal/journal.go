// Package journal keeps a sqlite audit log of every elicitation a session
// raised and how it ended. It backs the session listing endpoint; the live
// correlation state stays in memory.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"parley/internal/elicit"
)

//go:embed schema.sql
var schema string

type Journal struct {
	conn *sql.DB
}

func Open(path string) (*Journal, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[2:])
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Journal{conn: conn}, nil
}

func (j *Journal) Migrate() error {
	_, err := j.conn.Exec(schema)
	return err
}

func (j *Journal) Close() error {
	return j.conn.Close()
}

// Entry is one journalled elicitation.
type Entry struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Prompt     string         `json:"prompt"`
	Kind       string         `json:"kind"`
	Choices    []string       `json:"choices"`
	State      string         `json:"state"`
	Answer     *elicit.Answer `json:"answer,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// RequestCreated implements elicit.Recorder.
func (j *Journal) RequestCreated(ctx context.Context, req elicit.Request) error {
	choices, err := json.Marshal(req.Choices)
	if err != nil {
		return err
	}
	_, err = j.conn.ExecContext(ctx,
		`INSERT INTO elicitations (id, session_id, prompt, kind, choices, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.SessionID, req.Prompt, string(req.Kind), string(choices),
		string(elicit.StatePending), req.CreatedAt.UTC(),
	)
	return err
}

// RequestClosed implements elicit.Recorder.
func (j *Journal) RequestClosed(ctx context.Context, id string, state elicit.State, answer *elicit.Answer) error {
	var answerJSON sql.NullString
	if answer != nil {
		b, err := json.Marshal(answer)
		if err != nil {
			return err
		}
		answerJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := j.conn.ExecContext(ctx,
		`UPDATE elicitations SET state = ?, answer = ?, resolved_at = ? WHERE id = ?`,
		string(state), answerJSON, time.Now().UTC(), id,
	)
	return err
}

// BySession returns the session's elicitations in creation order.
func (j *Journal) BySession(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.conn.QueryContext(ctx,
		`SELECT id, session_id, prompt, kind, choices, state, answer, created_at, resolved_at
		 FROM elicitations WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			choices    string
			answer     sql.NullString
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Prompt, &e.Kind, &choices, &e.State, &answer, &e.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(choices), &e.Choices); err != nil {
			return nil, err
		}
		if answer.Valid {
			var a elicit.Answer
			if err := json.Unmarshal([]byte(answer.String), &a); err != nil {
				return nil, err
			}
			e.Answer = &a
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			e.ResolvedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
