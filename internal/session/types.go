// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session owns live brainstorm sessions: per-session question
// queues, the WebSocket transport that carries questions to a browser
// and answers back, and the two blocking-read flavors (per-question and
// per-session) that the orchestrator and tool surface consume.
package session

import "time"

// QuestionStatus is the question lifecycle state.
type QuestionStatus string

const (
	StatusPending   QuestionStatus = "pending"
	StatusAnswered  QuestionStatus = "answered"
	StatusCancelled QuestionStatus = "cancelled"
	StatusTimeout   QuestionStatus = "timeout"
)

// Question is a single prompt pushed to the browser.
type Question struct {
	ID         string
	SessionID  string
	Type       string
	Config     map[string]any
	Status     QuestionStatus
	Response   map[string]any
	Retrieved  bool // at-most-once delivery to get_next_answer
	CreatedAt  time.Time
	AnsweredAt time.Time
}

// QuestionSummary is the projection returned by ListQuestions.
type QuestionSummary struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Status     QuestionStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	AnsweredAt *time.Time     `json:"answered_at,omitempty"`
}

// Session is a live browser connection and its question queue.
type Session struct {
	ID        string
	Title     string
	Port      int
	URL       string
	Questions map[string]*Question // by question id
	Order     []string             // insertion order of question ids
	CreatedAt time.Time

	srv *sessionServer
}

// WSConnected reports whether a browser client is currently attached.
func (s *Session) WSConnected() bool {
	if s.srv == nil {
		return false
	}
	return s.srv.connected()
}

// SeedQuestion describes a question supplied at start_session time.
type SeedQuestion struct {
	Type   string
	Config map[string]any
}

// StartSessionResult is returned by Store.StartSession.
type StartSessionResult struct {
	SessionID   string
	URL         string
	QuestionIDs []string
}

// GetAnswerInput parameterizes Store.GetAnswer.
type GetAnswerInput struct {
	QuestionID string
	Block      bool
	Timeout    time.Duration
}

// GetAnswerOutput is returned by Store.GetAnswer.
type GetAnswerOutput struct {
	Completed bool
	Status    QuestionStatus
	Reason    string
	Response  map[string]any
}

// GetNextAnswerInput parameterizes Store.GetNextAnswer.
type GetNextAnswerInput struct {
	SessionID string
	Block     bool
	Timeout   time.Duration
}

// GetNextAnswerOutput is returned by Store.GetNextAnswer.
type GetNextAnswerOutput struct {
	Completed    bool
	Status       string
	QuestionID   string
	QuestionType string
	Response     map[string]any
}

// cancelledMarker is the payload NotifyAll delivers to question waiters
// when a question is cancelled, distinguishing it from a normal answer.
type cancelledMarker struct{}

// sessionWaiterPayload is what NotifyFirst delivers to a session-scoped
// waiter when an answer becomes available.
type sessionWaiterPayload struct {
	questionID string
}
