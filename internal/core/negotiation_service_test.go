package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cortex.ai/contract-desk/internal/gateway"
	"cortex.ai/contract-desk/internal/session"
	"cortex.ai/contract-desk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAndSelect(t *testing.T, f *fixture, index int) {
	t.Helper()
	ctx := context.Background()
	_, err := f.neg.RefreshClauses(ctx)
	require.NoError(t, err)
	require.NoError(t, f.neg.SelectClause(ctx, index))
}

func originalDraft() string {
	var parts []string
	for _, c := range sampleClauses() {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func TestCompileDraft_NoOverridesIsOriginalText(t *testing.T) {
	f := newFixture()
	_, err := f.neg.RefreshClauses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, originalDraft(), f.neg.CompileDraft())
}

func TestCompileDraft_UsesIndexOrder(t *testing.T) {
	f := newFixture()
	shuffled := sampleClauses()
	shuffled[0], shuffled[2] = shuffled[2], shuffled[0]
	f.gw.clauses["c1"] = shuffled

	_, err := f.neg.RefreshClauses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, originalDraft(), f.neg.CompileDraft())
}

func TestSuggest_ReplacesDraftWithoutOverride(t *testing.T) {
	f := newFixture()
	f.gw.suggestion = gateway.Suggestion{AISuggestion: "30 days notice", GuidanceSummary: "Aligns with market norm"}
	loadAndSelect(t, f, 0)

	s, err := f.neg.Suggest(context.Background(), 0, gateway.Guidance{Goal: "shorten notice period"})
	require.NoError(t, err)
	assert.Equal(t, "30 days notice", s.AISuggestion)
	assert.Equal(t, "shorten notice period", f.gw.lastGuide.Goal)

	st := f.neg.State()
	assert.Equal(t, "30 days notice", st.Draft)
	assert.Equal(t, "Aligns with market norm", st.GuidanceSummary)
	assert.Empty(t, f.sess.Overrides("c1"))
	assert.Equal(t, []store.VersionStatus{store.StatusSuggested}, f.activity.statuses())
	require.Len(t, st.Timeline, 1)
	assert.Equal(t, store.StatusSuggested, st.Timeline[0].Status)
}

func TestSuggest_RequiresSelection(t *testing.T) {
	f := newFixture()
	_, err := f.neg.RefreshClauses(context.Background())
	require.NoError(t, err)

	_, err = f.neg.Suggest(context.Background(), 0, gateway.Guidance{})
	var serr *SelectionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Please select a clause first.", serr.Error())
	assert.Zero(t, f.gw.suggestions)
}

func TestSuggest_BackendErrorSurfacedAsIs(t *testing.T) {
	f := newFixture()
	backendErr := &gateway.RemoteCallError{Op: gateway.OpSuggest, Status: 500, Detail: "model overloaded"}
	f.gw.suggestErr = backendErr
	loadAndSelect(t, f, 0)

	_, err := f.neg.Suggest(context.Background(), 0, gateway.Guidance{})
	assert.Same(t, backendErr, err)
	assert.Empty(t, f.neg.State().Draft)
	assert.Empty(t, f.activity.statuses())
}

func TestSuggest_StaleResultDiscardedAfterClauseSwitch(t *testing.T) {
	f := newFixture()
	f.gw.suggestion = gateway.Suggestion{AISuggestion: "for clause 0"}
	loadAndSelect(t, f, 0)
	f.gw.onSuggest = func() {
		require.NoError(t, f.neg.SelectClause(context.Background(), 1))
	}

	_, err := f.neg.Suggest(context.Background(), 0, gateway.Guidance{})
	require.ErrorIs(t, err, ErrClauseChanged)

	st := f.neg.State()
	require.NotNil(t, st.Selected)
	assert.Equal(t, 1, *st.Selected)
	assert.Empty(t, st.Draft)
	assert.Empty(t, f.activity.statuses())
}

func TestAccept_WritesOverrideAndCompiles(t *testing.T) {
	f := newFixture()
	f.gw.suggestion = gateway.Suggestion{AISuggestion: "30 days notice", GuidanceSummary: "Aligns with market norm"}
	loadAndSelect(t, f, 0)
	_, err := f.neg.Suggest(context.Background(), 0, gateway.Guidance{Goal: "shorten notice period"})
	require.NoError(t, err)

	ov, err := f.neg.Accept(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "30 days notice", ov.FinalText)
	assert.Equal(t, "Aligns with market norm", ov.GuidanceSummary)

	stored := f.sess.Overrides("c1")
	require.Len(t, stored, 1)
	assert.Equal(t, "30 days notice", stored[0].FinalText)

	draft := f.neg.CompileDraft()
	assert.True(t, strings.HasPrefix(draft, "30 days notice\n\n"))
	assert.Equal(t, []store.VersionStatus{store.StatusSuggested, store.StatusAccepted}, f.activity.statuses())
}

func TestAccept_IsIdempotentWithLaterTimestamp(t *testing.T) {
	f := newFixture()
	loadAndSelect(t, f, 1)
	require.NoError(t, f.neg.EditDraft(1, "Liability is capped at fees paid."))

	t1 := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	f.neg.now = func() time.Time { return t1 }
	_, err := f.neg.Accept(context.Background(), 1)
	require.NoError(t, err)

	t2 := t1.Add(time.Minute)
	f.neg.now = func() time.Time { return t2 }
	_, err = f.neg.Accept(context.Background(), 1)
	require.NoError(t, err)

	stored := f.sess.Overrides("c1")
	require.Len(t, stored, 1)
	assert.Equal(t, "Liability is capped at fees paid.", stored[1].FinalText)
	assert.True(t, stored[1].LastUpdatedAt.Equal(t2))
}

func TestAccept_EmptyDraftRejected(t *testing.T) {
	f := newFixture()
	loadAndSelect(t, f, 0)
	require.NoError(t, f.neg.EditDraft(0, "   \n\t"))

	_, err := f.neg.Accept(context.Background(), 0)
	assert.ErrorIs(t, err, ErrEmptyDraft)
	assert.Empty(t, f.sess.Overrides("c1"))
}

func TestAccept_WrongClauseIsSelectionError(t *testing.T) {
	f := newFixture()
	loadAndSelect(t, f, 0)
	require.NoError(t, f.neg.EditDraft(0, "text"))

	_, err := f.neg.Accept(context.Background(), 2)
	var serr *SelectionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.Selected)
}

func TestReset_RestoresOriginalAfterManyCycles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 0)
	for i, text := range []string{"60 days notice", "45 days notice", "30 days notice"} {
		f.gw.suggestion = gateway.Suggestion{AISuggestion: text}
		_, err := f.neg.Suggest(ctx, 0, gateway.Guidance{})
		require.NoError(t, err, i)
		_, err = f.neg.Accept(ctx, 0)
		require.NoError(t, err, i)
	}

	require.NoError(t, f.neg.Reset(ctx, 0))

	assert.Empty(t, f.sess.Overrides("c1"))
	assert.Equal(t, originalDraft(), f.neg.CompileDraft())
	st := f.neg.State()
	assert.Empty(t, st.Draft)
	assert.Empty(t, st.GuidanceSummary)

	last := f.activity.versions[len(f.activity.versions)-1]
	assert.Equal(t, store.StatusReverted, last.Status)
	assert.Equal(t, sampleClauses()[0].Text, last.FinalText)
}

func TestSelectClause_RehydratesFromOverride(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 2)
	require.NoError(t, f.neg.EditDraft(2, "Governed by the laws of Singapore."))
	_, err := f.neg.Accept(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, f.neg.SelectClause(ctx, 0))
	assert.Empty(t, f.neg.State().Draft)

	require.NoError(t, f.neg.SelectClause(ctx, 2))
	st := f.neg.State()
	assert.Equal(t, "Governed by the laws of Singapore.", st.Draft)
	require.Len(t, st.Timeline, 1)
	assert.Equal(t, store.StatusAccepted, st.Timeline[0].Status)
}

func TestSelectClause_UnknownIndex(t *testing.T) {
	f := newFixture()
	_, err := f.neg.RefreshClauses(context.Background())
	require.NoError(t, err)

	err = f.neg.SelectClause(context.Background(), 7)
	var uerr *UnknownClauseError
	require.ErrorAs(t, err, &uerr)
	assert.Nil(t, f.neg.State().Selected)
}

func TestLogCounterpartyResponse_DoesNotTouchOverrides(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 0)
	require.NoError(t, f.neg.EditDraft(0, "30 days notice"))
	_, err := f.neg.Accept(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, f.neg.EditDraft(0, "unsaved edit"))

	before := f.sess.Overrides("c1")
	ev, err := f.neg.LogCounterpartyResponse(ctx, 0, " They want 45 days ", CounterpartyNeedsRevision)
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, before, f.sess.Overrides("c1"))
	assert.Equal(t, store.StatusCounterpartyNeedsRevision, ev.Status)
	assert.Equal(t, "30 days notice", ev.FinalText)
	assert.Equal(t, "They want 45 days", ev.CounterpartyFeedback)
}

func TestLogCounterpartyResponse_TextPrecedence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 1)

	ev, err := f.neg.LogCounterpartyResponse(ctx, 1, "", CounterpartyPending)
	require.NoError(t, err)
	assert.Equal(t, sampleClauses()[1].Text, ev.FinalText)

	require.NoError(t, f.neg.EditDraft(1, "capped at 12 months of fees"))
	ev, err = f.neg.LogCounterpartyResponse(ctx, 1, "", CounterpartyAccepted)
	require.NoError(t, err)
	assert.Equal(t, "capped at 12 months of fees", ev.FinalText)
	assert.Equal(t, store.StatusCounterpartyAccepted, ev.Status)
}

func TestLogCounterpartyResponse_Preconditions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 0)

	_, err := f.neg.LogCounterpartyResponse(ctx, 0, "no", CounterpartyStatus("maybe"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.neg.LogCounterpartyResponse(ctx, 1, "no", CounterpartyRejected)
	var serr *SelectionError
	assert.ErrorAs(t, err, &serr)

	require.NoError(t, f.mem.Remove(session.KeyClientID))
	_, err = f.neg.LogCounterpartyResponse(ctx, 0, "no", CounterpartyRejected)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestActivityLogFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.activity.failWrites = true
	f.gw.suggestion = gateway.Suggestion{AISuggestion: "30 days notice"}
	loadAndSelect(t, f, 0)

	_, err := f.neg.Suggest(ctx, 0, gateway.Guidance{})
	require.NoError(t, err)
	assert.Equal(t, "30 days notice", f.neg.State().Draft)

	_, err = f.neg.Accept(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "30 days notice", f.sess.Overrides("c1")[0].FinalText)

	ev, err := f.neg.LogCounterpartyResponse(ctx, 0, "ok", CounterpartyAccepted)
	require.NoError(t, err)
	assert.Nil(t, ev)

	require.NoError(t, f.neg.Reset(ctx, 0))
	assert.Empty(t, f.sess.Overrides("c1"))
	assert.Empty(t, f.activity.statuses())
}

func TestTimelineReadFailureIsNonFatalOnSelect(t *testing.T) {
	f := newFixture()
	f.activity.failReads = true
	_, err := f.neg.RefreshClauses(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.neg.SelectClause(context.Background(), 0))
	assert.Empty(t, f.neg.State().Timeline)
}

func TestRefreshClauses_ToleratesStaleOverrides(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 2)
	require.NoError(t, f.neg.EditDraft(2, "Governed by the laws of Singapore."))
	_, err := f.neg.Accept(ctx, 2)
	require.NoError(t, err)

	f.gw.clauses["c1"] = sampleClauses()[:2]
	clauses, err := f.neg.RefreshClauses(ctx)
	require.NoError(t, err)
	assert.Len(t, clauses, 2)

	assert.Len(t, f.sess.Overrides("c1"), 1)
	assert.Nil(t, f.neg.State().Selected)
	assert.Equal(t, sampleClauses()[0].Text+"\n\n"+sampleClauses()[1].Text, f.neg.CompileDraft())
}

func TestRefreshClauses_FetchErrorPropagates(t *testing.T) {
	f := newFixture()
	f.gw.listErr = &gateway.RemoteCallError{Op: gateway.OpListClauses, Status: 500}
	_, err := f.neg.RefreshClauses(context.Background())
	assert.ErrorIs(t, err, gateway.ErrFetch)
}

func TestNoActiveContract(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mem.Remove(session.KeyActiveContract))

	_, err := f.neg.RefreshClauses(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveContract)
	assert.Equal(t, "", f.neg.CompileDraft())
}

func TestNewUploadResetsWorkflowState(t *testing.T) {
	f := newFixture()
	loadAndSelect(t, f, 0)
	require.NoError(t, f.neg.EditDraft(0, "draft for c1"))

	require.NoError(t, f.sess.SetActiveContract(session.ContractMeta{ContractID: "c2", Filename: "nda.pdf"}))

	st := f.neg.State()
	assert.Equal(t, "c2", st.ContractID)
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.Draft)
	assert.Empty(t, st.Clauses)
}

func TestTimeline_AllAndPerClause(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	loadAndSelect(t, f, 0)
	require.NoError(t, f.neg.EditDraft(0, "a"))
	_, err := f.neg.Accept(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, f.neg.SelectClause(ctx, 1))
	require.NoError(t, f.neg.Reset(ctx, 1))

	all, err := f.neg.Timeline(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, store.StatusReverted, all[0].Status)

	idx := 0
	one, err := f.neg.Timeline(ctx, &idx)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, store.StatusAccepted, one[0].Status)
}

func TestTimeline_ReadErrorReturned(t *testing.T) {
	f := newFixture()
	f.activity.failReads = true
	_, err := f.neg.Timeline(context.Background(), nil)
	var perr *store.PersistenceError
	assert.True(t, errors.As(err, &perr))
}
