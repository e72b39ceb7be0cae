// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wingedpig/brainloom/internal/browser"
	"github.com/wingedpig/brainloom/internal/idgen"
	"github.com/wingedpig/brainloom/internal/qcatalog"
	"github.com/wingedpig/brainloom/internal/waiter"
)

// Sentinel errors.
var (
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrBrowserOpenFailed = fmt.Errorf("browser open failed")
)

// DefaultTimeout is used by GetAnswer/GetNextAnswer when the caller
// supplies a zero Timeout.
const DefaultTimeout = 300 * time.Second

// Options configures a Store.
type Options struct {
	Host        string
	Port        int // 0 means ephemeral; applies to every session's listener
	SkipBrowser bool
	Launcher    browser.Launcher // nil defaults to browser.Noop{} when SkipBrowser, else browser.New("")
}

// Store owns every live Session, the question→session index, and the
// two waiter registries that back blocking reads.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	questionIndex map[string]string // question id -> session id

	questionWaiters *waiter.Registry // keyed by question id
	sessionWaiters  *waiter.Registry // keyed by session id

	answerValidator *qcatalog.Validator

	opts Options
}

// NewStore creates an empty Store.
func NewStore(opts Options) *Store {
	if opts.Launcher == nil {
		if opts.SkipBrowser {
			opts.Launcher = browser.Noop{}
		} else {
			opts.Launcher = browser.New("")
		}
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	return &Store{
		sessions:        make(map[string]*Session),
		questionIndex:   make(map[string]string),
		questionWaiters: waiter.New(),
		sessionWaiters:  waiter.New(),
		answerValidator: qcatalog.NewValidator(),
		opts:            opts,
	}
}

// StartSession allocates a session id, binds an ephemeral HTTP+WS
// server, inserts any seed questions, and launches the browser.
func (s *Store) StartSession(title string, seeds []SeedQuestion) (StartSessionResult, error) {
	id := idgen.Session()
	now := time.Now()

	sess := &Session{
		ID:        id,
		Title:     title,
		Questions: make(map[string]*Question),
		CreatedAt: now,
	}

	srv, err := newSessionServer(s, sess, s.opts.Host, s.opts.Port)
	if err != nil {
		return StartSessionResult{}, fmt.Errorf("start session: %w", err)
	}
	sess.srv = srv
	sess.Port = srv.port
	sess.URL = fmt.Sprintf("http://localhost:%d", srv.port)

	questionIDs := make([]string, 0, len(seeds))
	s.mu.Lock()
	s.sessions[id] = sess
	for _, seed := range seeds {
		qid := idgen.Question()
		q := &Question{
			ID:        qid,
			SessionID: id,
			Type:      seed.Type,
			Config:    seed.Config,
			Status:    StatusPending,
			CreatedAt: time.Now(),
		}
		sess.Questions[qid] = q
		sess.Order = append(sess.Order, qid)
		s.questionIndex[qid] = id
		questionIDs = append(questionIDs, qid)
	}
	s.mu.Unlock()

	if !s.opts.SkipBrowser {
		if err := s.opts.Launcher.Open(sess.URL); err != nil {
			s.rollbackSession(id)
			return StartSessionResult{}, fmt.Errorf("%w: %v", ErrBrowserOpenFailed, err)
		}
	}

	return StartSessionResult{SessionID: id, URL: sess.URL, QuestionIDs: questionIDs}, nil
}

// rollbackSession undoes a partially created session after a failed
// browser launch.
func (s *Store) rollbackSession(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sessionID)
	for qid := range sess.Questions {
		delete(s.questionIndex, qid)
	}
	s.mu.Unlock()

	sess.srv.stop()
}

// EndSession tears down a session: notifies the browser, stops its
// server, unlinks its questions, and deletes it.
func (s *Store) EndSession(sessionID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, sessionID)
	for qid := range sess.Questions {
		delete(s.questionIndex, qid)
	}
	s.mu.Unlock()

	sess.srv.sendEnd()
	sess.srv.stop()

	for qid := range sess.Questions {
		s.questionWaiters.Clear(qid)
	}
	s.sessionWaiters.Clear(sessionID)

	return true
}

// PushQuestion inserts a new pending question and, if a client is
// attached, emits it immediately.
func (s *Store) PushQuestion(sessionID, qType string, config map[string]any) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("push question: %w", ErrSessionNotFound)
	}

	qid := idgen.Question()
	q := &Question{
		ID:        qid,
		SessionID: sessionID,
		Type:      qType,
		Config:    config,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	sess.Questions[qid] = q
	sess.Order = append(sess.Order, qid)
	s.questionIndex[qid] = sessionID
	connected := sess.srv.connected()
	s.mu.Unlock()

	if connected {
		sess.srv.sendQuestion(q)
	} else if !s.opts.SkipBrowser {
		// Best-effort, non-blocking reopen; failures are ignored.
		_ = s.opts.Launcher.Open(sess.URL)
	}

	return qid, nil
}

// GetAnswer resolves a single question's answer, optionally blocking
// until it is answered, cancelled, or the timeout elapses.
func (s *Store) GetAnswer(ctx context.Context, in GetAnswerInput) GetAnswerOutput {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// The status check and the waiter registration must be one atomic
	// step: s.mu is held across both so that handleResponse/CancelQuestion
	// (which also take s.mu to mutate q.Status before notifying) can never
	// land their transition in the gap between "saw pending" and
	// "registered", where their NotifyAll/NotifyFirst would find no
	// callback and silently drop the answer.
	s.mu.Lock()
	sessionID, known := s.questionIndex[in.QuestionID]
	var q *Question
	if known {
		sess := s.sessions[sessionID]
		if sess != nil {
			q = sess.Questions[in.QuestionID]
		}
	}

	if q == nil {
		s.mu.Unlock()
		return GetAnswerOutput{Completed: false, Status: StatusCancelled, Reason: "cancelled"}
	}

	switch q.Status {
	case StatusAnswered:
		response := q.Response
		s.mu.Unlock()
		return GetAnswerOutput{Completed: true, Status: StatusAnswered, Response: response}
	case StatusCancelled, StatusTimeout:
		status := q.Status
		s.mu.Unlock()
		return GetAnswerOutput{Completed: false, Status: status, Reason: string(status)}
	}

	// q.Status == pending
	if !in.Block {
		s.mu.Unlock()
		return GetAnswerOutput{Completed: false, Status: StatusPending, Reason: "pending"}
	}

	result := make(chan GetAnswerOutput, 1)
	cleanup := s.questionWaiters.Register(in.QuestionID, func(payload any) {
		if _, cancelled := payload.(cancelledMarker); cancelled {
			result <- GetAnswerOutput{Completed: false, Status: StatusCancelled}
			return
		}
		response, _ := payload.(map[string]any)
		result <- GetAnswerOutput{Completed: true, Status: StatusAnswered, Response: response}
	})
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-result:
		return out
	case <-timer.C:
		cleanup()
		s.markTimeout(in.QuestionID)
		return GetAnswerOutput{Completed: false, Status: StatusTimeout}
	case <-ctx.Done():
		cleanup()
		return GetAnswerOutput{Completed: false, Status: StatusCancelled, Reason: "context cancelled"}
	}
}

func (s *Store) markTimeout(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID, ok := s.questionIndex[questionID]
	if !ok {
		return
	}
	sess := s.sessions[sessionID]
	if sess == nil {
		return
	}
	q := sess.Questions[questionID]
	if q != nil && q.Status == StatusPending {
		q.Status = StatusTimeout
	}
}

// GetNextAnswer returns the first unretrieved answered question for a
// session, optionally blocking for the next one to arrive.
func (s *Store) GetNextAnswer(ctx context.Context, in GetNextAnswerInput) GetNextAnswerOutput {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// As in GetAnswer, the scan-for-an-answer, the pending check, and the
	// waiter registration must happen as one atomic step under s.mu: held
	// across all three, so handleResponse's NotifyFirst (which also takes
	// s.mu to mutate state before notifying) cannot deliver into the gap
	// between "found nothing to take" and "registered" and be dropped.
	s.mu.Lock()
	if out, ok := s.tryTakeNextAnswerLocked(in.SessionID); ok {
		s.mu.Unlock()
		return out
	}

	if !s.hasPendingLocked(in.SessionID) {
		s.mu.Unlock()
		return GetNextAnswerOutput{Completed: false, Status: "none_pending"}
	}

	if !in.Block {
		s.mu.Unlock()
		return GetNextAnswerOutput{Completed: false, Status: "pending"}
	}

	result := make(chan GetNextAnswerOutput, 1)
	cleanup := s.sessionWaiters.Register(in.SessionID, func(payload any) {
		delivered, _ := payload.(sessionWaiterPayload)
		out, ok := s.takeAnswer(in.SessionID, delivered.questionID)
		if !ok {
			// Raced with another consumer; fall back to a fresh scan.
			if fresh, ok := s.tryTakeNextAnswer(in.SessionID); ok {
				result <- fresh
				return
			}
			result <- GetNextAnswerOutput{Completed: false, Status: "none_pending"}
			return
		}
		result <- out
	})
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-result:
		return out
	case <-timer.C:
		cleanup()
		return GetNextAnswerOutput{Completed: false, Status: "timeout"}
	case <-ctx.Done():
		cleanup()
		return GetNextAnswerOutput{Completed: false, Status: "cancelled"}
	}
}

func (s *Store) tryTakeNextAnswer(sessionID string) (GetNextAnswerOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryTakeNextAnswerLocked(sessionID)
}

// tryTakeNextAnswerLocked is tryTakeNextAnswer's body, for callers that
// already hold s.mu.
func (s *Store) tryTakeNextAnswerLocked(sessionID string) (GetNextAnswerOutput, bool) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return GetNextAnswerOutput{}, false
	}
	for _, qid := range sess.Order {
		q := sess.Questions[qid]
		if q.Status == StatusAnswered && !q.Retrieved {
			q.Retrieved = true
			return GetNextAnswerOutput{
				Completed:    true,
				Status:       "answered",
				QuestionID:   q.ID,
				QuestionType: q.Type,
				Response:     q.Response,
			}, true
		}
	}
	return GetNextAnswerOutput{}, false
}

func (s *Store) takeAnswer(sessionID, questionID string) (GetNextAnswerOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return GetNextAnswerOutput{}, false
	}
	q, ok := sess.Questions[questionID]
	if !ok || q.Status != StatusAnswered || q.Retrieved {
		return GetNextAnswerOutput{}, false
	}
	q.Retrieved = true
	return GetNextAnswerOutput{
		Completed:    true,
		Status:       "answered",
		QuestionID:   q.ID,
		QuestionType: q.Type,
		Response:     q.Response,
	}, true
}

func (s *Store) hasPending(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPendingLocked(sessionID)
}

// hasPendingLocked is hasPending's body, for callers that already hold
// s.mu.
func (s *Store) hasPendingLocked(sessionID string) bool {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	for _, qid := range sess.Order {
		if sess.Questions[qid].Status == StatusPending {
			return true
		}
	}
	return false
}

// CancelQuestion transitions a pending question to cancelled and wakes
// its blocking waiters.
func (s *Store) CancelQuestion(questionID string) bool {
	s.mu.Lock()
	sessionID, ok := s.questionIndex[questionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess := s.sessions[sessionID]
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	q := sess.Questions[questionID]
	if q == nil || q.Status != StatusPending {
		s.mu.Unlock()
		return false
	}
	q.Status = StatusCancelled
	s.mu.Unlock()

	sess.srv.sendCancel(questionID)
	s.questionWaiters.NotifyAll(questionID, cancelledMarker{})

	return true
}

// ListQuestions returns questions (all sessions, or one) sorted by
// created_at descending.
func (s *Store) ListQuestions(sessionID string) []QuestionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []QuestionSummary
	collect := func(sess *Session) {
		for _, qid := range sess.Order {
			q := sess.Questions[qid]
			summary := QuestionSummary{
				ID:        q.ID,
				Type:      q.Type,
				Status:    q.Status,
				CreatedAt: q.CreatedAt,
			}
			if !q.AnsweredAt.IsZero() {
				t := q.AnsweredAt
				summary.AnsweredAt = &t
			}
			out = append(out, summary)
		}
	}

	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			collect(sess)
		}
	} else {
		for _, sess := range s.sessions {
			collect(sess)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// handleResponse is invoked by the WS transport when a client submits a
// {"type":"response"} frame. An answer that fails its catalog validator
// is logged and the frame dropped, like any other malformed inbound
// frame.
func (s *Store) handleResponse(sessionID, questionID string, answer map[string]any) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	q, ok := sess.Questions[questionID]
	if !ok || q.Status != StatusPending {
		s.mu.Unlock()
		return
	}
	qType := q.Type
	s.mu.Unlock()

	if err := s.answerValidator.ValidateAnswer(qType, answer); err != nil {
		log.Printf("session %s: dropping invalid answer for %s: %v", sessionID, questionID, err)
		return
	}

	s.mu.Lock()
	sess, ok = s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	q, ok = sess.Questions[questionID]
	if !ok || q.Status != StatusPending {
		s.mu.Unlock()
		return
	}
	q.Status = StatusAnswered
	q.AnsweredAt = time.Now()
	q.Response = answer
	s.mu.Unlock()

	s.questionWaiters.NotifyAll(questionID, answer)
	s.sessionWaiters.NotifyFirst(sessionID, sessionWaiterPayload{questionID: questionID})
}

// pendingQuestionsInOrder returns the session's currently pending
// questions, insertion order, for WS-connect replay.
func (s *Store) pendingQuestionsInOrder(sessionID string) []*Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	var pending []*Question
	for _, qid := range sess.Order {
		if q := sess.Questions[qid]; q.Status == StatusPending {
			pending = append(pending, q)
		}
	}
	return pending
}
