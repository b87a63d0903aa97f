package store

import "time"

type OnboardingRecord struct {
	ID           string    `json:"id"`
	ClientUserID string    `json:"client_user_id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Profession   string    `json:"profession"`
	CreatedAt    time.Time `json:"created_at"`
}

// DocumentRecord summarizes one uploaded contract.
type DocumentRecord struct {
	ID           string    `json:"id"`
	ClientUserID string    `json:"client_user_id"`
	ContractID   string    `json:"contract_id"`
	Title        string    `json:"title"`
	Pages        int       `json:"pages"`
	Chunks       int       `json:"chunks"`
	CreatedAt    time.Time `json:"created_at"`
}

type QAEntry struct {
	ID           string    `json:"id"`
	ClientUserID string    `json:"client_user_id"`
	ContractID   string    `json:"contract_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	CreatedAt    time.Time `json:"created_at"`
}

type VersionStatus string

const (
	StatusSuggested                 VersionStatus = "suggested"
	StatusAccepted                  VersionStatus = "accepted"
	StatusReverted                  VersionStatus = "reverted"
	StatusCounterpartyPending       VersionStatus = "counterparty_pending"
	StatusCounterpartyAccepted      VersionStatus = "counterparty_accepted"
	StatusCounterpartyRejected      VersionStatus = "counterparty_rejected"
	StatusCounterpartyNeedsRevision VersionStatus = "counterparty_needs_revision"
)

var knownStatuses = map[VersionStatus]bool{
	StatusSuggested:                 true,
	StatusAccepted:                  true,
	StatusReverted:                  true,
	StatusCounterpartyPending:       true,
	StatusCounterpartyAccepted:      true,
	StatusCounterpartyRejected:      true,
	StatusCounterpartyNeedsRevision: true,
}

func (s VersionStatus) Valid() bool { return knownStatuses[s] }

// ClauseVersionEvent is one immutable entry of a clause's audit timeline.
type ClauseVersionEvent struct {
	ID                   string        `json:"id"`
	ClientUserID         string        `json:"client_user_id"`
	ContractID           string        `json:"contract_id"`
	ClauseIndex          int           `json:"clause_index"`
	OriginalText         string        `json:"original_text"`
	AISuggestion         string        `json:"ai_suggestion"`
	FinalText            string        `json:"final_text"`
	Status               VersionStatus `json:"status"`
	Notes                string        `json:"notes"`
	CounterpartyFeedback string        `json:"counterparty_feedback"`
	CreatedAt            time.Time     `json:"created_at"`
}

// ClauseVersionFilter selects timeline events. A nil ClauseIndex selects every clause of the contract.
type ClauseVersionFilter struct {
	ClientUserID string
	ContractID   string
	ClauseIndex  *int
}
