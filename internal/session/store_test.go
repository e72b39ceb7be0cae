// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(Options{SkipBrowser: true})
}

func TestStore_StartSession_SeedQuestionsReturnedInOrder(t *testing.T) {
	s := newTestStore()
	defer s.EndSession("")

	res, err := s.StartSession("My Brainstorm", []SeedQuestion{
		{Type: "ask_text", Config: map[string]any{"question": "Which services?"}},
		{Type: "pick_one", Config: map[string]any{"question": "JSON or plain?"}},
	})
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	assert.True(t, strings.HasPrefix(res.SessionID, "ses_"))
	assert.True(t, strings.HasPrefix(res.URL, "http://localhost:"))
	require.Len(t, res.QuestionIDs, 2)
	assert.Equal(t, "ask_text", s.sessions[res.SessionID].Questions[res.QuestionIDs[0]].Type)
	assert.Equal(t, "pick_one", s.sessions[res.SessionID].Questions[res.QuestionIDs[1]].Type)

	listed := s.ListQuestions(res.SessionID)
	require.Len(t, listed, 2)
}

func TestStore_EndSession_UnknownReturnsFalse(t *testing.T) {
	s := newTestStore()
	assert.False(t, s.EndSession("ses_doesnotexist"))
}

func TestStore_EndSession_Twice(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)

	assert.True(t, s.EndSession(res.SessionID))
	assert.False(t, s.EndSession(res.SessionID))
}

func TestStore_PushQuestion_UnknownSessionErrors(t *testing.T) {
	s := newTestStore()
	_, err := s.PushQuestion("ses_nope", "ask_text", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_PushQuestion_Allocates(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "confirm", map[string]any{"question": "OK?"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qid, "q_"))
}

// A blocking single-question wait with no response times out.
func TestStore_GetAnswer_Timeout(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "confirm", map[string]any{"question": "OK?"})
	require.NoError(t, err)

	start := time.Now()
	out := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: qid, Block: true, Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	assert.False(t, out.Completed)
	assert.Equal(t, StatusTimeout, out.Status)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// The question's persistent status becomes timeout.
	again := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: qid})
	assert.Equal(t, StatusTimeout, again.Status)
}

func TestStore_GetAnswer_NonBlockingPending(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "confirm", nil)
	require.NoError(t, err)

	out := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: qid})
	assert.False(t, out.Completed)
	assert.Equal(t, StatusPending, out.Status)
}

func TestStore_GetAnswer_MissingQuestionIsCancelled(t *testing.T) {
	s := newTestStore()
	out := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: "q_missing"})
	assert.False(t, out.Completed)
	assert.Equal(t, StatusCancelled, out.Status)
}

// Two concurrent get_answer waiters, then cancel: both resolve as
// cancelled.
func TestStore_CancelQuestion_UnblocksAllWaiters(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "confirm", nil)
	require.NoError(t, err)

	results := make(chan GetAnswerOutput, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: qid, Block: true, Timeout: 5 * time.Second})
			results <- out
		}()
	}

	// Give both goroutines a chance to register before cancelling.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.CancelQuestion(qid))

	wg.Wait()
	close(results)
	for out := range results {
		assert.False(t, out.Completed)
		assert.Equal(t, StatusCancelled, out.Status)
	}
}

func TestStore_CancelQuestion_TwiceThenFalse(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "confirm", nil)
	require.NoError(t, err)

	assert.True(t, s.CancelQuestion(qid))
	assert.False(t, s.CancelQuestion(qid))
}

func TestStore_CancelQuestion_UnknownReturnsFalse(t *testing.T) {
	s := newTestStore()
	assert.False(t, s.CancelQuestion("q_missing"))
}

// After end_session, every subsequent get_answer for that session
// returns status cancelled.
func TestStore_EndSession_QuestionsBecomeCancelledToCallers(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)

	qid, err := s.PushQuestion(res.SessionID, "confirm", nil)
	require.NoError(t, err)

	require.True(t, s.EndSession(res.SessionID))

	out := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: qid})
	assert.False(t, out.Completed)
	assert.Equal(t, StatusCancelled, out.Status)
}

func TestStore_ListQuestions_SortedDescending(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	_, err = s.PushQuestion(res.SessionID, "ask_text", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.PushQuestion(res.SessionID, "confirm", nil)
	require.NoError(t, err)

	listed := s.ListQuestions(res.SessionID)
	require.Len(t, listed, 2)
	assert.True(t, listed[0].CreatedAt.After(listed[1].CreatedAt) || listed[0].CreatedAt.Equal(listed[1].CreatedAt))
}

// A WebSocket connect replays every pending question once, in
// insertion order.
func TestSessionServer_ConnectReplaysPendingQuestions(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	q1, err := s.PushQuestion(res.SessionID, "ask_text", map[string]any{"question": "first"})
	require.NoError(t, err)
	q2, err := s.PushQuestion(res.SessionID, "confirm", map[string]any{"question": "second"})
	require.NoError(t, err)

	conn := dialWS(t, res.URL)
	defer conn.Close()

	frames := readFrames(t, conn, 2)
	require.Len(t, frames, 2)
	assert.Equal(t, "question", frames[0].Type)
	assert.Equal(t, q1, frames[0].ID)
	assert.Equal(t, "question", frames[1].Type)
	assert.Equal(t, q2, frames[1].ID)
}

func TestSessionServer_ResponseFrame_AnswersQuestionAndNotifiesWaiters(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "ask_text", nil)
	require.NoError(t, err)

	// Two concurrent get_answer waiters should both receive the answer
	// (fan-out via notify_all).
	results := make(chan GetAnswerOutput, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := s.GetAnswer(context.Background(), GetAnswerInput{QuestionID: qid, Block: true, Timeout: 5 * time.Second})
			results <- out
		}()
	}
	time.Sleep(50 * time.Millisecond)

	conn := dialWS(t, res.URL)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(wsFrame{Type: "connected"}))
	require.NoError(t, conn.WriteJSON(wsFrame{Type: "response", ID: qid, Answer: map[string]any{"text": "api, worker"}}))

	wg.Wait()
	close(results)
	for out := range results {
		assert.True(t, out.Completed)
		assert.Equal(t, StatusAnswered, out.Status)
		assert.Equal(t, "api, worker", out.Response["text"])
	}
}

// Two concurrent get_next_answer(block=true) on the same session,
// followed by response frames for Q1 then Q2, must resolve the first
// waiter with Q1 and the second with Q2.
func TestStore_GetNextAnswer_FIFOAcrossConcurrentWaiters(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	q1, err := s.PushQuestion(res.SessionID, "ask_text", nil)
	require.NoError(t, err)
	q2, err := s.PushQuestion(res.SessionID, "ask_text", nil)
	require.NoError(t, err)

	first := make(chan GetNextAnswerOutput, 1)
	second := make(chan GetNextAnswerOutput, 1)

	go func() {
		first <- s.GetNextAnswer(context.Background(), GetNextAnswerInput{SessionID: res.SessionID, Block: true, Timeout: 2 * time.Second})
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		second <- s.GetNextAnswer(context.Background(), GetNextAnswerInput{SessionID: res.SessionID, Block: true, Timeout: 2 * time.Second})
	}()
	time.Sleep(20 * time.Millisecond)

	s.handleResponse(res.SessionID, q1, map[string]any{"text": "answer one"})
	out1 := <-first
	require.True(t, out1.Completed)
	assert.Equal(t, q1, out1.QuestionID)

	s.handleResponse(res.SessionID, q2, map[string]any{"text": "answer two"})
	out2 := <-second
	require.True(t, out2.Completed)
	assert.Equal(t, q2, out2.QuestionID)
}

func TestStore_GetNextAnswer_NonePending(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	out := s.GetNextAnswer(context.Background(), GetNextAnswerInput{SessionID: res.SessionID})
	assert.False(t, out.Completed)
	assert.Equal(t, "none_pending", out.Status)
}

func TestStore_GetNextAnswer_ImmediateWhenAlreadyAnswered(t *testing.T) {
	s := newTestStore()
	res, err := s.StartSession("", nil)
	require.NoError(t, err)
	defer s.EndSession(res.SessionID)

	qid, err := s.PushQuestion(res.SessionID, "ask_text", nil)
	require.NoError(t, err)
	s.handleResponse(res.SessionID, qid, map[string]any{"text": "hi"})

	out := s.GetNextAnswer(context.Background(), GetNextAnswerInput{SessionID: res.SessionID})
	assert.True(t, out.Completed)
	assert.Equal(t, qid, out.QuestionID)

	// At-most-once delivery: a second call finds nothing new.
	out2 := s.GetNextAnswer(context.Background(), GetNextAnswerInput{SessionID: res.SessionID})
	assert.False(t, out2.Completed)
	assert.Equal(t, "none_pending", out2.Status)
}

func TestStore_StartSession_BrowserOpenFailedRollsBack(t *testing.T) {
	s := NewStore(Options{Launcher: failingLauncher{}})
	_, err := s.StartSession("", []SeedQuestion{{Type: "ask_text", Config: map[string]any{}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBrowserOpenFailed)

	// Nothing should be left behind: listing questions across every
	// session finds nothing.
	assert.Empty(t, s.ListQuestions(""))
}

type failingLauncher struct{}

func (failingLauncher) Open(string) error { return fmt.Errorf("no display") }

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn, n int) []wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frames := make([]wsFrame, 0, n)
	for i := 0; i < n; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var f wsFrame
		require.NoError(t, json.Unmarshal(data, &f))
		frames = append(frames, f)
	}
	return frames
}
