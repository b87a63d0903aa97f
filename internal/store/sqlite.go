package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the local activity log.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// timestampLayout keeps every stored timestamp the same width so created_at sorts as text.
const timestampLayout = "2006-01-02 15:04:05.000000000"

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS onboarding (
        id TEXT PRIMARY KEY, -- UUID
        client_user_id TEXT NOT NULL,
        name TEXT NOT NULL,
        age INTEGER NOT NULL,
        profession TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY, -- UUID
        client_user_id TEXT NOT NULL,
        contract_id TEXT NOT NULL,
        title TEXT NOT NULL,
        pages INTEGER NOT NULL,
        chunks INTEGER NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS qa (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        client_user_id TEXT NOT NULL,
        contract_id TEXT NOT NULL,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS clause_versions (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        client_user_id TEXT NOT NULL,
        contract_id TEXT NOT NULL,
        clause_index INTEGER NOT NULL,
        original_text TEXT NOT NULL DEFAULT '',
        ai_suggestion TEXT NOT NULL DEFAULT '',
        final_text TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL CHECK (status IN ('suggested', 'accepted', 'reverted',
            'counterparty_pending', 'counterparty_accepted', 'counterparty_rejected', 'counterparty_needs_revision')),
        notes TEXT NOT NULL DEFAULT '',
        counterparty_feedback TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_qa_client ON qa (client_user_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_clause_versions_lookup ON clause_versions (client_user_id, contract_id, clause_index, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordOnboarding(ctx context.Context, rec OnboardingRecord) (*OnboardingRecord, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO onboarding (id, client_user_id, name, age, profession, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.ClientUserID, rec.Name, rec.Age, rec.Profession, timestamp(rec.CreatedAt))
	if err != nil {
		return nil, insertErr("onboarding", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) RecordDocumentSummary(ctx context.Context, rec DocumentRecord) (*DocumentRecord, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, client_user_id, contract_id, title, pages, chunks, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.ClientUserID, rec.ContractID, rec.Title, rec.Pages, rec.Chunks, timestamp(rec.CreatedAt))
	if err != nil {
		return nil, insertErr("documents", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) RecordQA(ctx context.Context, entry QAEntry) (*QAEntry, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO qa (id, client_user_id, contract_id, question, answer, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.ClientUserID, entry.ContractID, entry.Question, entry.Answer, timestamp(entry.CreatedAt))
	if err != nil {
		return nil, insertErr("qa", err)
	}
	return &entry, nil
}

func (s *SQLiteStore) ListQA(ctx context.Context, clientUserID string) ([]QAEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, client_user_id, contract_id, question, answer, created_at FROM qa WHERE client_user_id = ? ORDER BY created_at DESC, seq DESC",
		clientUserID)
	if err != nil {
		return nil, selectErr("qa", err)
	}
	defer rows.Close()

	entries := []QAEntry{}
	for rows.Next() {
		var e QAEntry
		if err := rows.Scan(&e.ID, &e.ClientUserID, &e.ContractID, &e.Question, &e.Answer, &e.CreatedAt); err != nil {
			return nil, selectErr("qa", fmt.Errorf("failed to scan qa row: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, selectErr("qa", err)
	}
	return entries, nil
}

func (s *SQLiteStore) RecordClauseVersion(ctx context.Context, ev ClauseVersionEvent) (*ClauseVersionEvent, error) {
	if err := validateClauseVersion(ev); err != nil {
		return nil, insertErr("clause_versions", err)
	}
	ev.ID = uuid.NewString()
	ev.CreatedAt = s.now()

	stmt, err := s.db.PrepareContext(ctx, `INSERT INTO clause_versions
        (id, client_user_id, contract_id, clause_index, original_text, ai_suggestion, final_text, status, notes, counterparty_feedback, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, insertErr("clause_versions", fmt.Errorf("failed to prepare insert: %w", err))
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, ev.ID, ev.ClientUserID, ev.ContractID, ev.ClauseIndex,
		ev.OriginalText, ev.AISuggestion, ev.FinalText, string(ev.Status), ev.Notes, ev.CounterpartyFeedback, timestamp(ev.CreatedAt))
	if err != nil {
		return nil, insertErr("clause_versions", err)
	}
	return &ev, nil
}

func (s *SQLiteStore) ListClauseVersions(ctx context.Context, filter ClauseVersionFilter) ([]ClauseVersionEvent, error) {
	var query strings.Builder
	query.WriteString(`SELECT id, client_user_id, contract_id, clause_index, original_text, ai_suggestion,
        final_text, status, notes, counterparty_feedback, created_at
        FROM clause_versions WHERE client_user_id = ? AND contract_id = ?`)
	args := []any{filter.ClientUserID, filter.ContractID}
	if filter.ClauseIndex != nil {
		query.WriteString(" AND clause_index = ?")
		args = append(args, *filter.ClauseIndex)
	}
	query.WriteString(" ORDER BY created_at DESC, seq DESC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, selectErr("clause_versions", err)
	}
	defer rows.Close()

	events := []ClauseVersionEvent{}
	for rows.Next() {
		var ev ClauseVersionEvent
		var status string
		if err := rows.Scan(&ev.ID, &ev.ClientUserID, &ev.ContractID, &ev.ClauseIndex, &ev.OriginalText,
			&ev.AISuggestion, &ev.FinalText, &status, &ev.Notes, &ev.CounterpartyFeedback, &ev.CreatedAt); err != nil {
			return nil, selectErr("clause_versions", fmt.Errorf("failed to scan clause version row: %w", err))
		}
		ev.Status = VersionStatus(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, selectErr("clause_versions", err)
	}
	return events, nil
}
