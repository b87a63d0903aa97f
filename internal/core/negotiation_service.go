package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cortex.ai/contract-desk/internal/gateway"
	"cortex.ai/contract-desk/internal/session"
	"cortex.ai/contract-desk/internal/store"
	"go.uber.org/zap"
)

// ClauseGateway is the part of the backend the negotiation workflow talks to.
type ClauseGateway interface {
	ListClauses(ctx context.Context, contractID string) ([]gateway.Clause, error)
	SuggestClause(ctx context.Context, contractID string, clauseIndex int, guidance gateway.Guidance) (*gateway.Suggestion, error)
}

// CounterpartyStatus is the counterparty's reaction to a proposed clause.
type CounterpartyStatus string

const (
	CounterpartyPending       CounterpartyStatus = "pending"
	CounterpartyAccepted      CounterpartyStatus = "accepted"
	CounterpartyRejected      CounterpartyStatus = "rejected"
	CounterpartyNeedsRevision CounterpartyStatus = "needs_revision"
)

func (c CounterpartyStatus) versionStatus() (store.VersionStatus, bool) {
	switch c {
	case CounterpartyPending:
		return store.StatusCounterpartyPending, true
	case CounterpartyAccepted:
		return store.StatusCounterpartyAccepted, true
	case CounterpartyRejected:
		return store.StatusCounterpartyRejected, true
	case CounterpartyNeedsRevision:
		return store.StatusCounterpartyNeedsRevision, true
	}
	return "", false
}

// NegotiationState is a snapshot of the workflow for display.
type NegotiationState struct {
	ContractID      string                     `json:"contract_id"`
	Selected        *int                       `json:"selected"`
	Draft           string                     `json:"draft"`
	GuidanceSummary string                     `json:"guidance_summary"`
	AISuggestion    string                     `json:"ai_suggestion"`
	Clauses         []gateway.Clause           `json:"clauses"`
	Overrides       session.Overrides          `json:"overrides"`
	Timeline        []store.ClauseVersionEvent `json:"timeline"`
}

// NegotiationService drives the per-clause lifecycle of the active contract:
// select, suggest, edit, accept, reset and counterparty feedback.
//
// Overrides are committed to the session before the matching activity log write is
// attempted, and a failed log write never rolls them back. The mutex is not held
// across backend or activity log calls.
type NegotiationService struct {
	clauses  ClauseGateway
	session  *session.Session
	activity store.ActivityLog
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	contractID  string
	clauseList  []gateway.Clause
	selected    int
	draft       string
	guidance    string
	aiSuggested string
	timeline    []store.ClauseVersionEvent
}

func NewNegotiationService(clauses ClauseGateway, sess *session.Session, activity store.ActivityLog, logger *zap.Logger) *NegotiationService {
	return &NegotiationService{
		clauses:  clauses,
		session:  sess,
		activity: activity,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		selected: -1,
	}
}

// syncContractLocked drops in-memory state that belongs to a contract other than the
// active one. It returns the active contract id, or "" when there is none.
func (s *NegotiationService) syncContractLocked() string {
	active := ""
	if meta, ok := s.session.ActiveContract(); ok {
		active = meta.ContractID
	}
	if active != s.contractID {
		s.contractID = active
		s.clauseList = nil
		s.clearSelectionLocked()
	}
	return active
}

func (s *NegotiationService) clearSelectionLocked() {
	s.selected = -1
	s.clearDraftLocked()
	s.timeline = nil
}

func (s *NegotiationService) clearDraftLocked() {
	s.draft = ""
	s.guidance = ""
	s.aiSuggested = ""
}

func (s *NegotiationService) clauseLocked(index int) (gateway.Clause, bool) {
	for _, c := range s.clauseList {
		if c.Index == index {
			return c, true
		}
	}
	return gateway.Clause{}, false
}

// requireSelectedLocked checks that index is the selected clause of the active contract.
func (s *NegotiationService) requireSelectedLocked(index int) (string, gateway.Clause, error) {
	contractID := s.syncContractLocked()
	if contractID == "" {
		return "", gateway.Clause{}, ErrNoActiveContract
	}
	if s.selected < 0 || s.selected != index {
		return "", gateway.Clause{}, &SelectionError{ClauseIndex: index, Selected: s.selected}
	}
	clause, ok := s.clauseLocked(index)
	if !ok {
		return "", gateway.Clause{}, &UnknownClauseError{ClauseIndex: index}
	}
	return contractID, clause, nil
}

// RefreshClauses re-reads the clause list of the active contract. Overrides of clauses
// that disappeared are kept; they are ignored when the draft is compiled.
func (s *NegotiationService) RefreshClauses(ctx context.Context) ([]gateway.Clause, error) {
	s.mu.Lock()
	contractID := s.syncContractLocked()
	s.mu.Unlock()
	if contractID == "" {
		return nil, ErrNoActiveContract
	}

	clauses, err := s.clauses.ListClauses(ctx, contractID)
	if err != nil {
		return nil, err
	}
	sorted := append([]gateway.Clause(nil), clauses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncContractLocked() != contractID {
		return nil, ErrClauseChanged
	}
	s.clauseList = sorted
	if s.selected >= 0 {
		if _, ok := s.clauseLocked(s.selected); !ok {
			s.clearSelectionLocked()
		}
	}
	s.logger.Debug("clauses refreshed", zap.String("contract_id", contractID), zap.Int("count", len(sorted)))
	return append([]gateway.Clause(nil), sorted...), nil
}

func (s *NegotiationService) Clauses() []gateway.Clause {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncContractLocked()
	return append([]gateway.Clause(nil), s.clauseList...)
}

// SelectClause makes index the working clause. The draft is re-hydrated from the
// clause's override, or cleared when it has none, and its timeline is re-read.
func (s *NegotiationService) SelectClause(ctx context.Context, index int) error {
	s.mu.Lock()
	contractID := s.syncContractLocked()
	if contractID == "" {
		s.mu.Unlock()
		return ErrNoActiveContract
	}
	if _, ok := s.clauseLocked(index); !ok {
		s.mu.Unlock()
		return &UnknownClauseError{ClauseIndex: index}
	}
	s.selected = index
	s.clearDraftLocked()
	s.timeline = nil
	if ov, ok := s.session.Overrides(contractID)[index]; ok {
		s.draft = ov.FinalText
		s.guidance = ov.GuidanceSummary
	}
	s.mu.Unlock()

	s.refreshTimeline(ctx, contractID, index)
	return nil
}

// Suggest asks the backend for an alternative wording of the selected clause. The
// result replaces the draft but creates no override. A result that arrives after the
// selection moved elsewhere is discarded with ErrClauseChanged.
func (s *NegotiationService) Suggest(ctx context.Context, index int, guidance gateway.Guidance) (*gateway.Suggestion, error) {
	s.mu.Lock()
	contractID, clause, err := s.requireSelectedLocked(index)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	suggestion, err := s.clauses.SuggestClause(ctx, contractID, index, guidance)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.syncContractLocked() != contractID || s.selected != index {
		s.mu.Unlock()
		s.logger.Info("discarding stale clause suggestion",
			zap.String("contract_id", contractID), zap.Int("clause_index", index))
		return nil, ErrClauseChanged
	}
	s.draft = suggestion.AISuggestion
	s.guidance = suggestion.GuidanceSummary
	s.aiSuggested = suggestion.AISuggestion
	s.mu.Unlock()

	s.emit(ctx, store.ClauseVersionEvent{
		ContractID:   contractID,
		ClauseIndex:  index,
		OriginalText: clause.Text,
		AISuggestion: suggestion.AISuggestion,
		FinalText:    suggestion.AISuggestion,
		Status:       store.StatusSuggested,
		Notes:        suggestion.GuidanceSummary,
	})
	return suggestion, nil
}

// EditDraft replaces the draft text of the selected clause with a manual edit.
func (s *NegotiationService) EditDraft(index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := s.requireSelectedLocked(index); err != nil {
		return err
	}
	s.draft = text
	return nil
}

// Accept stores the current draft as the override of the selected clause.
func (s *NegotiationService) Accept(ctx context.Context, index int) (*session.ClauseOverride, error) {
	s.mu.Lock()
	contractID, clause, err := s.requireSelectedLocked(index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(s.draft) == "" {
		s.mu.Unlock()
		return nil, ErrEmptyDraft
	}
	override := session.ClauseOverride{
		ClauseIndex:     index,
		FinalText:       s.draft,
		GuidanceSummary: s.guidance,
		LastUpdatedAt:   s.now(),
	}
	if err := s.session.PutOverride(contractID, override); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save clause override: %w", err)
	}
	ev := store.ClauseVersionEvent{
		ContractID:   contractID,
		ClauseIndex:  index,
		OriginalText: clause.Text,
		AISuggestion: s.aiSuggested,
		FinalText:    override.FinalText,
		Status:       store.StatusAccepted,
		Notes:        override.GuidanceSummary,
	}
	s.mu.Unlock()

	s.emit(ctx, ev)
	return &override, nil
}

// Reset drops the override of the selected clause so the original text applies again.
func (s *NegotiationService) Reset(ctx context.Context, index int) error {
	s.mu.Lock()
	contractID, clause, err := s.requireSelectedLocked(index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.session.DeleteOverride(contractID, index); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to remove clause override: %w", err)
	}
	s.clearDraftLocked()
	s.mu.Unlock()

	s.emit(ctx, store.ClauseVersionEvent{
		ContractID:   contractID,
		ClauseIndex:  index,
		OriginalText: clause.Text,
		FinalText:    clause.Text,
		Status:       store.StatusReverted,
	})
	return nil
}

// LogCounterpartyResponse records the counterparty's reaction to the selected clause.
// The logged text is the override if any, else the draft, else the original clause.
// Overrides are not touched. A failed log write is reported as a nil event.
func (s *NegotiationService) LogCounterpartyResponse(ctx context.Context, index int, feedback string, status CounterpartyStatus) (*store.ClauseVersionEvent, error) {
	versionStatus, ok := status.versionStatus()
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown counterparty status %q", status)}
	}
	if _, ok := s.session.ClientID(); !ok {
		return nil, ErrNoIdentity
	}

	s.mu.Lock()
	contractID, clause, err := s.requireSelectedLocked(index)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	finalText := clause.Text
	if strings.TrimSpace(s.draft) != "" {
		finalText = s.draft
	}
	if ov, ok := s.session.Overrides(contractID)[index]; ok {
		finalText = ov.FinalText
	}
	ev := store.ClauseVersionEvent{
		ContractID:           contractID,
		ClauseIndex:          index,
		OriginalText:         clause.Text,
		AISuggestion:         s.aiSuggested,
		FinalText:            finalText,
		Status:               versionStatus,
		CounterpartyFeedback: strings.TrimSpace(feedback),
	}
	s.mu.Unlock()

	return s.emit(ctx, ev), nil
}

// CompileDraft joins every clause of the active contract in index order, using the
// override text where one exists, separated by blank lines.
func (s *NegotiationService) CompileDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	contractID := s.syncContractLocked()
	if contractID == "" {
		return ""
	}
	overrides := s.session.Overrides(contractID)
	parts := make([]string, 0, len(s.clauseList))
	for _, c := range s.clauseList {
		if ov, ok := overrides[c.Index]; ok {
			parts = append(parts, ov.FinalText)
			continue
		}
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Timeline reads audit events of the active contract, newest first. A nil index
// returns the events of every clause.
func (s *NegotiationService) Timeline(ctx context.Context, index *int) ([]store.ClauseVersionEvent, error) {
	clientID, ok := s.session.ClientID()
	if !ok {
		return nil, ErrNoIdentity
	}
	s.mu.Lock()
	contractID := s.syncContractLocked()
	s.mu.Unlock()
	if contractID == "" {
		return nil, ErrNoActiveContract
	}
	return s.activity.ListClauseVersions(ctx, store.ClauseVersionFilter{
		ClientUserID: clientID,
		ContractID:   contractID,
		ClauseIndex:  index,
	})
}

func (s *NegotiationService) State() NegotiationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := NegotiationState{
		ContractID:      s.syncContractLocked(),
		Draft:           s.draft,
		GuidanceSummary: s.guidance,
		AISuggestion:    s.aiSuggested,
		Clauses:         append([]gateway.Clause{}, s.clauseList...),
		Overrides:       session.Overrides{},
		Timeline:        append([]store.ClauseVersionEvent{}, s.timeline...),
	}
	if st.ContractID != "" {
		st.Overrides = s.session.Overrides(st.ContractID)
	}
	if s.selected >= 0 {
		sel := s.selected
		st.Selected = &sel
	}
	return st
}

// emit writes an audit event and refreshes the selected clause's timeline. Failures
// are logged and swallowed; the returned event is nil when the write failed.
func (s *NegotiationService) emit(ctx context.Context, ev store.ClauseVersionEvent) *store.ClauseVersionEvent {
	clientID, ok := s.session.ClientID()
	if !ok {
		s.logger.Debug("skipping clause version event without client identity",
			zap.String("status", string(ev.Status)), zap.Int("clause_index", ev.ClauseIndex))
		return nil
	}
	ev.ClientUserID = clientID
	saved, err := s.activity.RecordClauseVersion(ctx, ev)
	if err != nil {
		s.logger.Warn("failed to record clause version",
			zap.String("contract_id", ev.ContractID),
			zap.Int("clause_index", ev.ClauseIndex),
			zap.String("status", string(ev.Status)),
			zap.Error(err))
		return nil
	}
	s.refreshTimeline(ctx, ev.ContractID, ev.ClauseIndex)
	return saved
}

func (s *NegotiationService) refreshTimeline(ctx context.Context, contractID string, index int) {
	clientID, ok := s.session.ClientID()
	if !ok {
		return
	}
	events, err := s.activity.ListClauseVersions(ctx, store.ClauseVersionFilter{
		ClientUserID: clientID,
		ContractID:   contractID,
		ClauseIndex:  &index,
	})
	if err != nil {
		s.logger.Warn("failed to load clause timeline",
			zap.String("contract_id", contractID), zap.Int("clause_index", index), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contractID == contractID && s.selected == index {
		s.timeline = events
	}
}
