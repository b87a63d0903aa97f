// Package store is the activity log: append-only records of onboarding, uploaded
// documents, question/answer rounds and clause versions. Rows are never updated
// or deleted; timelines are read back newest first.
package store

import (
	"context"
	"fmt"
)

type ActivityLog interface {
	RecordOnboarding(ctx context.Context, rec OnboardingRecord) (*OnboardingRecord, error)
	RecordDocumentSummary(ctx context.Context, rec DocumentRecord) (*DocumentRecord, error)
	RecordQA(ctx context.Context, entry QAEntry) (*QAEntry, error)
	RecordClauseVersion(ctx context.Context, ev ClauseVersionEvent) (*ClauseVersionEvent, error)
	ListClauseVersions(ctx context.Context, filter ClauseVersionFilter) ([]ClauseVersionEvent, error)
	ListQA(ctx context.Context, clientUserID string) ([]QAEntry, error)
	Close() error
}

// PersistenceError reports a failed activity log read or write.
type PersistenceError struct {
	Table string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("activity log %s on %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func insertErr(table string, err error) error {
	return &PersistenceError{Table: table, Op: "insert", Err: err}
}

func selectErr(table string, err error) error {
	return &PersistenceError{Table: table, Op: "select", Err: err}
}

func validateClauseVersion(ev ClauseVersionEvent) error {
	if ev.ClientUserID == "" || ev.ContractID == "" {
		return fmt.Errorf("client_user_id and contract_id are required")
	}
	if !ev.Status.Valid() {
		return fmt.Errorf("unknown clause version status %q", ev.Status)
	}
	if ev.ClauseIndex < 0 {
		return fmt.Errorf("clause index must not be negative, got %d", ev.ClauseIndex)
	}
	return nil
}
