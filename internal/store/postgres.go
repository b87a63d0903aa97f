package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the activity log kept in a hosted PostgreSQL database.
// Ids and timestamps are assigned by the database.
type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresStore{DB: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.DB.Close()
	return nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS onboarding (
  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  client_user_id text NOT NULL,
  name text NOT NULL,
  age integer NOT NULL,
  profession text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS documents (
  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  client_user_id text NOT NULL,
  contract_id text NOT NULL,
  title text NOT NULL,
  pages integer NOT NULL,
  chunks integer NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS qa (
  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  client_user_id text NOT NULL,
  contract_id text NOT NULL,
  question text NOT NULL,
  answer text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT clock_timestamp()
);
CREATE TABLE IF NOT EXISTS clause_versions (
  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  client_user_id text NOT NULL,
  contract_id text NOT NULL,
  clause_index integer NOT NULL,
  original_text text,
  ai_suggestion text,
  final_text text,
  status text NOT NULL,
  notes text,
  counterparty_feedback text,
  created_at timestamptz NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS clause_versions_lookup_idx
  ON clause_versions (client_user_id, contract_id, clause_index, created_at DESC);
`)
	return err
}

func (s *PostgresStore) RecordOnboarding(ctx context.Context, rec OnboardingRecord) (*OnboardingRecord, error) {
	err := s.DB.QueryRow(ctx, `
INSERT INTO onboarding(client_user_id,name,age,profession)
VALUES($1,$2,$3,$4)
RETURNING id::text, created_at
`, rec.ClientUserID, rec.Name, rec.Age, rec.Profession).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, insertErr("onboarding", err)
	}
	return &rec, nil
}

func (s *PostgresStore) RecordDocumentSummary(ctx context.Context, rec DocumentRecord) (*DocumentRecord, error) {
	err := s.DB.QueryRow(ctx, `
INSERT INTO documents(client_user_id,contract_id,title,pages,chunks)
VALUES($1,$2,$3,$4,$5)
RETURNING id::text, created_at
`, rec.ClientUserID, rec.ContractID, rec.Title, rec.Pages, rec.Chunks).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, insertErr("documents", err)
	}
	return &rec, nil
}

func (s *PostgresStore) RecordQA(ctx context.Context, entry QAEntry) (*QAEntry, error) {
	err := s.DB.QueryRow(ctx, `
INSERT INTO qa(client_user_id,contract_id,question,answer)
VALUES($1,$2,$3,$4)
RETURNING id::text, created_at
`, entry.ClientUserID, entry.ContractID, entry.Question, entry.Answer).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, insertErr("qa", err)
	}
	return &entry, nil
}

func (s *PostgresStore) ListQA(ctx context.Context, clientUserID string) ([]QAEntry, error) {
	rows, err := s.DB.Query(ctx, `
SELECT id::text, client_user_id, contract_id, question, answer, created_at
FROM qa
WHERE client_user_id=$1
ORDER BY created_at DESC
`, clientUserID)
	if err != nil {
		return nil, selectErr("qa", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (QAEntry, error) {
		var e QAEntry
		err := row.Scan(&e.ID, &e.ClientUserID, &e.ContractID, &e.Question, &e.Answer, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, selectErr("qa", err)
	}
	return entries, nil
}

func (s *PostgresStore) RecordClauseVersion(ctx context.Context, ev ClauseVersionEvent) (*ClauseVersionEvent, error) {
	if err := validateClauseVersion(ev); err != nil {
		return nil, insertErr("clause_versions", err)
	}
	err := s.DB.QueryRow(ctx, `
INSERT INTO clause_versions(client_user_id,contract_id,clause_index,original_text,ai_suggestion,final_text,status,notes,counterparty_feedback)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id::text, created_at
`, ev.ClientUserID, ev.ContractID, ev.ClauseIndex, ev.OriginalText, ev.AISuggestion, ev.FinalText,
		string(ev.Status), ev.Notes, ev.CounterpartyFeedback).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return nil, insertErr("clause_versions", err)
	}
	return &ev, nil
}

func (s *PostgresStore) ListClauseVersions(ctx context.Context, filter ClauseVersionFilter) ([]ClauseVersionEvent, error) {
	var query strings.Builder
	query.WriteString(`
SELECT id::text, client_user_id, contract_id, clause_index,
  COALESCE(original_text,''), COALESCE(ai_suggestion,''), COALESCE(final_text,''),
  status, COALESCE(notes,''), COALESCE(counterparty_feedback,''), created_at
FROM clause_versions
WHERE client_user_id=$1 AND contract_id=$2`)
	args := []any{filter.ClientUserID, filter.ContractID}
	if filter.ClauseIndex != nil {
		query.WriteString(" AND clause_index=$3")
		args = append(args, *filter.ClauseIndex)
	}
	query.WriteString("\nORDER BY created_at DESC")

	rows, err := s.DB.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, selectErr("clause_versions", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ClauseVersionEvent, error) {
		var ev ClauseVersionEvent
		var status string
		err := row.Scan(&ev.ID, &ev.ClientUserID, &ev.ContractID, &ev.ClauseIndex, &ev.OriginalText,
			&ev.AISuggestion, &ev.FinalText, &status, &ev.Notes, &ev.CounterpartyFeedback, &ev.CreatedAt)
		ev.Status = VersionStatus(status)
		return ev, err
	})
	if err != nil {
		return nil, selectErr("clause_versions", err)
	}
	return events, nil
}
