// ABOUTME: SQLite-backed audit trail for authentication and admin activity
// ABOUTME: Records who did what and whether it was allowed, for review and debugging

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Action identifies an auditable event.
type Action string

const (
	ActionSignUp           Action = "signup"
	ActionConfirm          Action = "confirm"
	ActionSignIn           Action = "signin"
	ActionSignOut          Action = "signout"
	ActionListUsers        Action = "list_users"
	ActionFederationDenied Action = "federation_denied"
)

// Entry is one audit row. Outcome is "ok" or "denied"; Detail carries
// event-specific context and must never include token or credential material.
type Entry struct {
	ID        string
	Username  string
	Action    Action
	Outcome   string
	Remote    string
	Timestamp time.Time
	Detail    map[string]any
}

// Filter narrows List results. Zero-valued fields match everything.
type Filter struct {
	Username string
	Action   Action
	Since    *time.Time
	Limit    int
}

// Store appends and queries audit entries in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or opens) the audit database at path. Parent directories
// are created and the schema is applied if missing.
func Open(path string) (*Store, error) {
	logger := slog.Default().With("component", "audit")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	// WAL keeps appends from blocking reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	logger.Info("audit store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			remote TEXT NOT NULL,
			ts DATETIME NOT NULL,
			detail_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_username_ts
			ON audit_log(username, ts);

		CREATE INDEX IF NOT EXISTS idx_audit_ts
			ON audit_log(ts);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one entry. ID and Timestamp are generated if unset.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = "ok"
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, username, action, outcome, remote, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Username,
		string(e.Action),
		e.Outcome,
		e.Remote,
		e.Timestamp.UTC().Format(time.RFC3339),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit entry",
		"id", e.ID,
		"username", e.Username,
		"action", e.Action,
		"outcome", e.Outcome,
	)
	return nil
}

// normalizeLimit applies the default (100) and cap (1000).
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const listQuery = `
	SELECT audit_id, username, action, outcome, remote, ts, detail_json
	FROM audit_log
	WHERE (? = '' OR username = ?)
	  AND (? = '' OR action = ?)
	  AND (? IS NULL OR ts >= ?)
	ORDER BY ts DESC
	LIMIT ?
`

// List returns entries matching the filter, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := normalizeLimit(f.Limit)

	var sinceStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &str
	}

	rows, err := s.db.QueryContext(ctx, listQuery,
		f.Username, f.Username,
		string(f.Action), string(f.Action),
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var e Entry
	var actionStr, tsStr string
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.Username,
		&actionStr,
		&e.Outcome,
		&e.Remote,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = Action(actionStr)
	var err error
	e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing audit timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling audit detail: %w", err)
		}
	}
	return e, nil
}
