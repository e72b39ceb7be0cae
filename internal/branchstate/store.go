// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package branchstate

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// sessionActor drains a per-session job queue sequentially, so every
// mutation against one session's state is strictly ordered with respect
// to every other mutation against that same session.
type sessionActor struct {
	jobs  chan func()
	state *BrainstormState
}

func newSessionActor() *sessionActor {
	a := &sessionActor{jobs: make(chan func(), 64)}
	go a.run()
	return a
}

func (a *sessionActor) run() {
	for job := range a.jobs {
		job()
	}
}

func (a *sessionActor) stop() {
	close(a.jobs)
}

// Store is the durable branch-state store: one JSON file per session
// under dir, mutated only through each session's actor.
type Store struct {
	mu     sync.Mutex
	dir    string
	actors map[string]*sessionActor
	watch  *stateWatcher
}

// NewStore creates a Store rooted at dir, creating it if necessary. When
// watch is true, external edits to a session's file (not produced by this
// Store's own writer) invalidate that session's in-memory cache.
func NewStore(dir string, watch bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s := &Store{dir: dir, actors: make(map[string]*sessionActor)}
	if watch {
		w, err := newStateWatcher(dir, s.invalidate)
		if err != nil {
			return nil, err
		}
		s.watch = w
	}
	return s, nil
}

// Close stops every session actor and the filesystem watcher, if any.
func (s *Store) Close() {
	s.mu.Lock()
	for _, a := range s.actors {
		a.stop()
	}
	s.actors = make(map[string]*sessionActor)
	s.mu.Unlock()

	if s.watch != nil {
		s.watch.close()
	}
}

func (s *Store) actorFor(sessionID string) *sessionActor {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[sessionID]
	if !ok {
		a = newSessionActor()
		s.actors[sessionID] = a
	}
	return a
}

func (s *Store) path(sessionID string) string {
	return statePath(s.dir, sessionID)
}

// submit runs fn on sessionID's actor and blocks for its result. fn is
// given the actor's cached state by reference so it can lazily load,
// mutate, and swap it.
func (s *Store) submit(sessionID string, fn func(cache **BrainstormState) (any, error)) (any, error) {
	a := s.actorFor(sessionID)
	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	a.jobs <- func() {
		v, err := fn(&a.state)
		done <- result{v, err}
	}
	r := <-done
	return r.v, r.err
}

// ensureLoaded returns the actor's cached state, loading it from disk on
// first access. Returns (nil, nil) if no state has ever been persisted
// for this session.
func (s *Store) ensureLoaded(sessionID string, cache **BrainstormState) (*BrainstormState, error) {
	if *cache != nil {
		return *cache, nil
	}
	st, err := loadState(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	*cache = st
	return st, nil
}

func (s *Store) persist(sessionID string, st *BrainstormState) error {
	if err := saveState(s.path(sessionID), st); err != nil {
		return err
	}
	if s.watch != nil {
		s.watch.markOwnWrite(s.path(sessionID))
	}
	return nil
}

// invalidate drops a session's cached state so the next access reloads it
// from disk; invoked by the filesystem watcher on an external edit.
func (s *Store) invalidate(sessionID string) {
	s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		*cache = nil
		return nil, nil
	})
}

// CreateSession initializes a fresh BrainstormState with every branch in
// status exploring, in the given order.
func (s *Store) CreateSession(sessionID, request string, branches []BranchSeed) error {
	_, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		existing, err := s.ensureLoaded(sessionID, cache)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("create session %s: %w", sessionID, ErrSessionAlreadyExists)
		}

		now := time.Now()
		st := &BrainstormState{
			SessionID:   sessionID,
			Request:     request,
			CreatedAt:   now,
			UpdatedAt:   now,
			Branches:    make(map[string]*Branch, len(branches)),
			BranchOrder: make([]string, 0, len(branches)),
		}
		for _, b := range branches {
			st.Branches[b.ID] = &Branch{ID: b.ID, Scope: b.Scope, Status: BranchExploring}
			st.BranchOrder = append(st.BranchOrder, b.ID)
		}

		if err := s.persist(sessionID, st); err != nil {
			return nil, err
		}
		*cache = st
		return nil, nil
	})
	return err
}

// GetSession returns a deep copy of a session's current state, or nil if
// it does not exist.
func (s *Store) GetSession(sessionID string) (*BrainstormState, error) {
	v, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil || st == nil {
			return nil, err
		}
		return st.clone(), nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*BrainstormState), nil
}

// SetBrowserSessionID attaches the live session-store session id this
// brainstorm is currently bound to.
func (s *Store) SetBrowserSessionID(sessionID, browserSessionID string) error {
	_, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, fmt.Errorf("set browser session id: %w", ErrSessionNotFound)
		}
		st.BrowserSessionID = browserSessionID
		if err := s.persist(sessionID, st); err != nil {
			return nil, err
		}
		*cache = st
		return nil, nil
	})
	return err
}

// AddQuestionToBranch appends a question to a branch's history.
func (s *Store) AddQuestionToBranch(sessionID, branchID string, q BranchQuestion) error {
	_, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, fmt.Errorf("add question to branch: %w", ErrSessionNotFound)
		}
		b, ok := st.Branches[branchID]
		if !ok {
			return nil, fmt.Errorf("add question to branch %s: %w", branchID, ErrBranchNotFound)
		}
		if b.Status == BranchDone {
			return nil, fmt.Errorf("add question to branch %s: %w", branchID, ErrBranchAlreadyDone)
		}
		b.Questions = append(b.Questions, q)
		if err := s.persist(sessionID, st); err != nil {
			return nil, err
		}
		*cache = st
		return nil, nil
	})
	return err
}

// RecordAnswer locates the (branch, question) pair by question id and
// records the answer. It is a no-op if the question is absent, already
// answered, or belongs to a done branch, so repeated delivery of the
// same response is idempotent.
func (s *Store) RecordAnswer(sessionID, questionID string, answer map[string]any) error {
	_, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil || st == nil {
			return nil, err
		}

		var target *BranchQuestion
		var owner *Branch
		for _, b := range st.Branches {
			for i := range b.Questions {
				if b.Questions[i].ID == questionID {
					target = &b.Questions[i]
					owner = b
					break
				}
			}
			if target != nil {
				break
			}
		}
		if target == nil || target.Answer != nil || owner.Status == BranchDone {
			return nil, nil
		}

		target.Answer = answer
		now := time.Now()
		target.AnsweredAt = &now

		if err := s.persist(sessionID, st); err != nil {
			return nil, err
		}
		*cache = st
		return nil, nil
	})
	return err
}

// CompleteBranch marks a branch done with its finding. Done branches are
// never mutated again except to read their finding.
func (s *Store) CompleteBranch(sessionID, branchID, finding string) error {
	_, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return nil, fmt.Errorf("complete branch: %w", ErrSessionNotFound)
		}
		b, ok := st.Branches[branchID]
		if !ok {
			return nil, fmt.Errorf("complete branch %s: %w", branchID, ErrBranchNotFound)
		}
		if b.Status == BranchDone {
			return nil, fmt.Errorf("complete branch %s: %w", branchID, ErrBranchAlreadyDone)
		}
		b.Status = BranchDone
		b.Finding = finding

		if err := s.persist(sessionID, st); err != nil {
			return nil, err
		}
		*cache = st
		return nil, nil
	})
	return err
}

// GetNextExploringBranch returns the first branch in branch_order whose
// status is exploring, or nil if none remain.
func (s *Store) GetNextExploringBranch(sessionID string) (*Branch, error) {
	v, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil || st == nil {
			return nil, err
		}
		for _, id := range st.BranchOrder {
			b := st.Branches[id]
			if b.Status == BranchExploring {
				bc := *b
				bc.Questions = append([]BranchQuestion(nil), b.Questions...)
				return &bc, nil
			}
		}
		return nil, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Branch), nil
}

// IsSessionComplete reports whether every branch has reached done.
func (s *Store) IsSessionComplete(sessionID string) (bool, error) {
	v, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		st, err := s.ensureLoaded(sessionID, cache)
		if err != nil {
			return false, err
		}
		if st == nil {
			return false, nil
		}
		for _, id := range st.BranchOrder {
			if st.Branches[id].Status != BranchDone {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// DeleteSession removes the in-memory entry and the persistence file.
func (s *Store) DeleteSession(sessionID string) error {
	_, err := s.submit(sessionID, func(cache **BrainstormState) (any, error) {
		*cache = nil
		if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("delete session state: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if a, ok := s.actors[sessionID]; ok {
		a.stop()
		delete(s.actors, sessionID)
	}
	s.mu.Unlock()
	return nil
}

// List enumerates persisted session ids.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
