package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cortex.ai/contract-desk/internal/gateway"
	"cortex.ai/contract-desk/internal/session"
	"cortex.ai/contract-desk/internal/store"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu          sync.Mutex
	clauses     map[string][]gateway.Clause
	suggestion  gateway.Suggestion
	suggestErr  error
	listErr     error
	uploadRes   gateway.UploadResult
	uploadErr   error
	answer      string
	askErr      error
	onSuggest   func() // runs while the suggestion request is "in flight"
	lastGuide   gateway.Guidance
	suggestions int
}

func (g *fakeGateway) ListClauses(ctx context.Context, contractID string) ([]gateway.Clause, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]gateway.Clause{}, g.clauses[contractID]...), nil
}

func (g *fakeGateway) SuggestClause(ctx context.Context, contractID string, clauseIndex int, guidance gateway.Guidance) (*gateway.Suggestion, error) {
	if g.onSuggest != nil {
		g.onSuggest()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suggestions++
	g.lastGuide = guidance
	if g.suggestErr != nil {
		return nil, g.suggestErr
	}
	s := g.suggestion
	return &s, nil
}

func (g *fakeGateway) Upload(ctx context.Context, file *gateway.UploadFile) (*gateway.UploadResult, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if g.uploadErr != nil {
		return nil, g.uploadErr
	}
	r := g.uploadRes
	return &r, nil
}

func (g *fakeGateway) Ask(ctx context.Context, contractID, question string) (*gateway.Answer, error) {
	if contractID == "" {
		return nil, &gateway.ValidationError{Op: gateway.OpAsk, Message: "Please upload a contract first."}
	}
	if g.askErr != nil {
		return nil, g.askErr
	}
	return &gateway.Answer{Answer: g.answer}, nil
}

var errStoreDown = errors.New("store unavailable")

// fakeActivityLog keeps records in memory. Setting failWrites makes every insert fail.
type fakeActivityLog struct {
	mu         sync.Mutex
	failWrites bool
	failReads  bool
	seq        int
	onboarding []store.OnboardingRecord
	documents  []store.DocumentRecord
	qa         []store.QAEntry
	versions   []store.ClauseVersionEvent
}

func (f *fakeActivityLog) next() (string, time.Time) {
	f.seq++
	return fmt.Sprintf("row-%d", f.seq), time.Date(2026, 10, 18, 9, 0, f.seq, 0, time.UTC)
}

func (f *fakeActivityLog) RecordOnboarding(ctx context.Context, rec store.OnboardingRecord) (*store.OnboardingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return nil, &store.PersistenceError{Table: "onboarding", Op: "insert", Err: errStoreDown}
	}
	rec.ID, rec.CreatedAt = f.next()
	f.onboarding = append(f.onboarding, rec)
	return &rec, nil
}

func (f *fakeActivityLog) RecordDocumentSummary(ctx context.Context, rec store.DocumentRecord) (*store.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return nil, &store.PersistenceError{Table: "documents", Op: "insert", Err: errStoreDown}
	}
	rec.ID, rec.CreatedAt = f.next()
	f.documents = append(f.documents, rec)
	return &rec, nil
}

func (f *fakeActivityLog) RecordQA(ctx context.Context, entry store.QAEntry) (*store.QAEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return nil, &store.PersistenceError{Table: "qa", Op: "insert", Err: errStoreDown}
	}
	entry.ID, entry.CreatedAt = f.next()
	f.qa = append(f.qa, entry)
	return &entry, nil
}

func (f *fakeActivityLog) RecordClauseVersion(ctx context.Context, ev store.ClauseVersionEvent) (*store.ClauseVersionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return nil, &store.PersistenceError{Table: "clause_versions", Op: "insert", Err: errStoreDown}
	}
	ev.ID, ev.CreatedAt = f.next()
	f.versions = append(f.versions, ev)
	return &ev, nil
}

func (f *fakeActivityLog) ListClauseVersions(ctx context.Context, filter store.ClauseVersionFilter) ([]store.ClauseVersionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, &store.PersistenceError{Table: "clause_versions", Op: "select", Err: errStoreDown}
	}
	out := []store.ClauseVersionEvent{}
	for i := len(f.versions) - 1; i >= 0; i-- {
		ev := f.versions[i]
		if ev.ClientUserID != filter.ClientUserID || ev.ContractID != filter.ContractID {
			continue
		}
		if filter.ClauseIndex != nil && ev.ClauseIndex != *filter.ClauseIndex {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeActivityLog) ListQA(ctx context.Context, clientUserID string) ([]store.QAEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.QAEntry{}
	for i := len(f.qa) - 1; i >= 0; i-- {
		if f.qa[i].ClientUserID == clientUserID {
			out = append(out, f.qa[i])
		}
	}
	return out, nil
}

func (f *fakeActivityLog) Close() error { return nil }

func (f *fakeActivityLog) statuses() []store.VersionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.VersionStatus, 0, len(f.versions))
	for _, v := range f.versions {
		out = append(out, v.Status)
	}
	return out
}

type fixture struct {
	gw       *fakeGateway
	activity *fakeActivityLog
	sess     *session.Session
	mem      *session.MemoryStore
	neg      *NegotiationService
	desk     *DeskService
}

func sampleClauses() []gateway.Clause {
	return []gateway.Clause{
		{Index: 0, Preview: "Notice", Text: "Either party may terminate with 90 days notice."},
		{Index: 1, Preview: "Liability", Text: "Liability is unlimited."},
		{Index: 2, Preview: "Law", Text: "Governed by the laws of India."},
	}
}

// newFixture wires the services over fakes with an identity and an active contract "c1".
func newFixture() *fixture {
	mem := session.NewMemoryStore()
	sess := session.New(mem, zap.NewNop())
	gw := &fakeGateway{clauses: map[string][]gateway.Clause{"c1": sampleClauses()}}
	activity := &fakeActivityLog{}
	f := &fixture{
		gw:       gw,
		activity: activity,
		sess:     sess,
		mem:      mem,
		neg:      NewNegotiationService(gw, sess, activity, zap.NewNop()),
		desk:     NewDeskService(gw, sess, activity, zap.NewNop()),
	}
	_, _ = sess.EnsureClientID()
	_ = sess.SetActiveContract(session.ContractMeta{ContractID: "c1", Filename: "contract.pdf", PageCount: 2, ChunkCount: 5})
	return f
}
