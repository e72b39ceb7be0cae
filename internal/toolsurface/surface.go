// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package toolsurface

import (
	"context"
	"fmt"
	"time"

	"github.com/wingedpig/brainloom/internal/orchestrator"
	"github.com/wingedpig/brainloom/internal/qcatalog"
	"github.com/wingedpig/brainloom/internal/session"
)

// Surface exposes the orchestrator and session-store operations as the
// small set of named tool calls an agent's tool-call plumbing wraps.
// It performs no business logic of its own: it validates question config
// payloads against the question type catalog, delegates to the
// corresponding core operation, and returns the result.
type Surface struct {
	sessions     *session.Store
	orchestrator *orchestrator.Orchestrator
	validator    *qcatalog.Validator
}

// New creates a Surface wrapping the given stores.
func New(sessions *session.Store, orch *orchestrator.Orchestrator) *Surface {
	return &Surface{sessions: sessions, orchestrator: orch, validator: qcatalog.NewValidator()}
}

// CreateBrainstorm validates nothing itself (branch specs are structural,
// not part of the question type catalog) beyond each branch's seed
// question config, then delegates to the orchestrator.
func (s *Surface) CreateBrainstorm(request string, branches []orchestrator.BranchSpec) (string, error) {
	for _, b := range branches {
		if err := s.validator.ValidateConfig(b.InitialQuestion.Type, b.InitialQuestion.Config); err != nil {
			return "", fmt.Errorf("create_brainstorm: branch %s: %w", b.ID, err)
		}
	}
	return s.orchestrator.CreateBrainstorm(request, branches)
}

// AwaitBrainstormComplete delegates directly; both ids are opaque.
func (s *Surface) AwaitBrainstormComplete(ctx context.Context, sessionID, browserSessionID string) (string, error) {
	return s.orchestrator.AwaitBrainstormComplete(ctx, sessionID, browserSessionID)
}

// GetSessionSummary delegates directly.
func (s *Surface) GetSessionSummary(sessionID string) (string, error) {
	return s.orchestrator.GetSessionSummary(sessionID)
}

// EndBrainstorm delegates directly.
func (s *Surface) EndBrainstorm(sessionID string) (string, error) {
	return s.orchestrator.EndBrainstorm(sessionID)
}

// PushQuestion validates config against qType's catalog row before
// admitting the question into the session store.
func (s *Surface) PushQuestion(sessionID, qType string, config map[string]any) (string, error) {
	if err := s.validator.ValidateConfig(qType, config); err != nil {
		return "", fmt.Errorf("push_question: %w", err)
	}
	return s.sessions.PushQuestion(sessionID, qType, config)
}

// GetAnswerArgs parameterizes GetAnswer.
type GetAnswerArgs struct {
	QuestionID string
	Block      bool
	TimeoutMs  int
}

// GetAnswer delegates to the session store's blocking/non-blocking read.
func (s *Surface) GetAnswer(ctx context.Context, args GetAnswerArgs) session.GetAnswerOutput {
	return s.sessions.GetAnswer(ctx, session.GetAnswerInput{
		QuestionID: args.QuestionID,
		Block:      args.Block,
		Timeout:    time.Duration(args.TimeoutMs) * time.Millisecond,
	})
}

// GetNextAnswerArgs parameterizes GetNextAnswer.
type GetNextAnswerArgs struct {
	SessionID string
	Block     bool
	TimeoutMs int
}

// GetNextAnswer delegates to the session store.
func (s *Surface) GetNextAnswer(ctx context.Context, args GetNextAnswerArgs) session.GetNextAnswerOutput {
	return s.sessions.GetNextAnswer(ctx, session.GetNextAnswerInput{
		SessionID: args.SessionID,
		Block:     args.Block,
		Timeout:   time.Duration(args.TimeoutMs) * time.Millisecond,
	})
}

// CancelQuestion delegates directly.
func (s *Surface) CancelQuestion(questionID string) bool {
	return s.sessions.CancelQuestion(questionID)
}

// ListQuestions delegates directly.
func (s *Surface) ListQuestions(sessionID string) []session.QuestionSummary {
	return s.sessions.ListQuestions(sessionID)
}
