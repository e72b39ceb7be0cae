// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package branchstate

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir, false)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seedBranches() []BranchSeed {
	return []BranchSeed{
		{ID: "auth", Scope: "authentication approach"},
		{ID: "storage", Scope: "storage layer"},
	}
}

func TestStore_CreateSession_BranchOrderMatchesInput(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_abc12345", "build a thing", seedBranches()))

	st, err := s.GetSession("ses_abc12345")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, []string{"auth", "storage"}, st.BranchOrder)
	assert.Len(t, st.Branches, 2)
	assert.Equal(t, BranchExploring, st.Branches["auth"].Status)
}

func TestStore_CreateSession_DuplicateFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_dup00001", "req", seedBranches()))
	err := s.CreateSession("ses_dup00001", "req", seedBranches())
	assert.ErrorIs(t, err, ErrSessionAlreadyExists)
}

func TestStore_GetSession_UnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)
	st, err := s.GetSession("ses_missing1")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStore_AddQuestionToBranch_UnknownBranchFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_q0000001", "req", seedBranches()))

	err := s.AddQuestionToBranch("ses_q0000001", "nonexistent", BranchQuestion{ID: "q_1", Type: "ask_text", Text: "x"})
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestStore_AddQuestionToBranch_DoneBranchFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_q0000002", "req", seedBranches()))
	require.NoError(t, s.CompleteBranch("ses_q0000002", "auth", "use OAuth"))

	err := s.AddQuestionToBranch("ses_q0000002", "auth", BranchQuestion{ID: "q_1", Type: "ask_text", Text: "x"})
	assert.ErrorIs(t, err, ErrBranchAlreadyDone)
}

func TestStore_CompleteBranch_IsImmutableAfterward(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_done0001", "req", seedBranches()))
	require.NoError(t, s.AddQuestionToBranch("ses_done0001", "auth", BranchQuestion{ID: "q_1", Type: "ask_text", Text: "which?"}))
	require.NoError(t, s.RecordAnswer("ses_done0001", "q_1", map[string]any{"text": "oauth"}))
	require.NoError(t, s.CompleteBranch("ses_done0001", "auth", "Use OAuth2"))

	before, err := s.GetSession("ses_done0001")
	require.NoError(t, err)

	// Recording a second answer for a question that already has one must
	// be a no-op even though the branch is done.
	require.NoError(t, s.RecordAnswer("ses_done0001", "q_1", map[string]any{"text": "saml"}))

	after, err := s.GetSession("ses_done0001")
	require.NoError(t, err)

	assert.Equal(t, before.Branches["auth"].Finding, after.Branches["auth"].Finding)
	assert.Equal(t, before.Branches["auth"].Questions, after.Branches["auth"].Questions)
	assert.Equal(t, "Use OAuth2", after.Branches["auth"].Finding)
}

func TestStore_RecordAnswer_IdempotentForRepeatedDelivery(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_idem0001", "req", seedBranches()))
	require.NoError(t, s.AddQuestionToBranch("ses_idem0001", "auth", BranchQuestion{ID: "q_1", Type: "ask_text", Text: "which?"}))

	require.NoError(t, s.RecordAnswer("ses_idem0001", "q_1", map[string]any{"text": "oauth"}))
	require.NoError(t, s.RecordAnswer("ses_idem0001", "q_1", map[string]any{"text": "saml"}))

	st, err := s.GetSession("ses_idem0001")
	require.NoError(t, err)
	assert.Equal(t, "oauth", st.Branches["auth"].Questions[0].Answer["text"])
}

func TestStore_RecordAnswer_UnknownQuestionIsNoOp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_noq00001", "req", seedBranches()))
	assert.NoError(t, s.RecordAnswer("ses_noq00001", "q_ghost", map[string]any{"text": "x"}))
}

func TestStore_GetNextExploringBranch_SkipsDoneAndNilsWhenAllDone(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_next0001", "req", seedBranches()))

	b, err := s.GetNextExploringBranch("ses_next0001")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "auth", b.ID)

	require.NoError(t, s.CompleteBranch("ses_next0001", "auth", "f1"))
	b, err = s.GetNextExploringBranch("ses_next0001")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "storage", b.ID)

	require.NoError(t, s.CompleteBranch("ses_next0001", "storage", "f2"))
	b, err = s.GetNextExploringBranch("ses_next0001")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestStore_IsSessionComplete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_comp0001", "req", seedBranches()))

	complete, err := s.IsSessionComplete("ses_comp0001")
	require.NoError(t, err)
	assert.False(t, complete)

	require.NoError(t, s.CompleteBranch("ses_comp0001", "auth", "f1"))
	require.NoError(t, s.CompleteBranch("ses_comp0001", "storage", "f2"))

	complete, err = s.IsSessionComplete("ses_comp0001")
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestStore_DeleteSession_RemovesFileAndCache(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_del00001", "req", seedBranches()))
	require.NoError(t, s.DeleteSession("ses_del00001"))

	st, err := s.GetSession("ses_del00001")
	require.NoError(t, err)
	assert.Nil(t, st)

	_, statErr := os.Stat(statePath(s.dir, "ses_del00001"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_list0001", "req", seedBranches()))
	require.NoError(t, s.CreateSession("ses_list0002", "req", seedBranches()))

	ids, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ses_list0001", "ses_list0002"}, ids)
}

func TestStore_SaveLoadRoundTrip_PreservesFields(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession("ses_rt000001", "the original request", seedBranches()))
	require.NoError(t, s.SetBrowserSessionID("ses_rt000001", "ses_browser01"))
	require.NoError(t, s.AddQuestionToBranch("ses_rt000001", "auth", BranchQuestion{
		ID: "q_1", Type: "ask_text", Text: "which auth?", Config: map[string]any{"question": "which auth?"},
	}))
	require.NoError(t, s.RecordAnswer("ses_rt000001", "q_1", map[string]any{"text": "oauth2"}))

	// Force a fresh load from disk by opening a second store over the
	// same directory.
	s2, err := NewStore(s.dir, false)
	require.NoError(t, err)
	defer s2.Close()

	st, err := s2.GetSession("ses_rt000001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "the original request", st.Request)
	assert.Equal(t, "ses_browser01", st.BrowserSessionID)
	assert.Equal(t, "oauth2", st.Branches["auth"].Questions[0].Answer["text"])
	assert.NotNil(t, st.Branches["auth"].Questions[0].AnsweredAt)
}

// No lost writes: N concurrent RecordAnswer calls against N distinct
// branches, each carrying one unanswered question, must all be persisted.
func TestStore_RecordAnswer_NoLostWritesAcrossConcurrentBranches(t *testing.T) {
	s := newTestStore(t)

	const n = 5
	branches := make([]BranchSeed, n)
	for i := 0; i < n; i++ {
		branches[i] = BranchSeed{ID: branchID(i), Scope: "scope"}
	}
	require.NoError(t, s.CreateSession("ses_conc0001", "req", branches))
	for i := 0; i < n; i++ {
		require.NoError(t, s.AddQuestionToBranch("ses_conc0001", branchID(i), BranchQuestion{
			ID: questionID(i), Type: "ask_text", Text: "q",
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.RecordAnswer("ses_conc0001", questionID(i), map[string]any{"text": "answer"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, err := s.GetSession("ses_conc0001")
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		b := st.Branches[branchID(i)]
		require.Len(t, b.Questions, 1)
		assert.Equal(t, "answer", b.Questions[0].Answer["text"])
	}

	// And the persisted file agrees, independent of the in-memory cache.
	reopened, err := NewStore(s.dir, false)
	require.NoError(t, err)
	defer reopened.Close()
	fromDisk, err := reopened.GetSession("ses_conc0001")
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.Equal(t, "answer", fromDisk.Branches[branchID(i)].Questions[0].Answer["text"])
	}
}

func TestStore_ExternalEdit_InvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, true)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateSession("ses_watch0001", "req", seedBranches()))
	// Warm the cache.
	_, err = s.GetSession("ses_watch0001")
	require.NoError(t, err)

	// Simulate an external editor rewriting the file directly (not
	// through the store), well after the store's own write.
	time.Sleep(600 * time.Millisecond)
	st, err := loadState(statePath(dir, "ses_watch0001"))
	require.NoError(t, err)
	st.Request = "edited externally"
	require.NoError(t, saveState(statePath(dir, "ses_watch0001"), st))

	require.Eventually(t, func() bool {
		got, err := s.GetSession("ses_watch0001")
		return err == nil && got != nil && got.Request == "edited externally"
	}, 2*time.Second, 20*time.Millisecond)
}

func branchID(i int) string   { return "branch_" + string(rune('a'+i)) }
func questionID(i int) string { return "q_" + string(rune('a'+i)) }
