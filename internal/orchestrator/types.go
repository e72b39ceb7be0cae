// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives a brainstorm: it creates branches, opens a
// browser session with one seed question per branch, consumes answers
// from the session store, routes each to its branch in the branch state
// store, invokes probe, and pushes follow-up questions until every
// branch is done, then drives the terminal plan-review interaction.
package orchestrator

import "time"

// InitialQuestion is a branch's seed question, before the orchestrator
// tags its context with the branch's scope.
type InitialQuestion struct {
	Type   string
	Config map[string]any
}

// BranchSpec describes one exploration branch at create_brainstorm time.
type BranchSpec struct {
	ID              string
	Scope           string
	InitialQuestion InitialQuestion
}

// Options configures an Orchestrator's loop bounds and timeouts,
// mirroring config.SessionConfig.
type Options struct {
	DefaultTimeout time.Duration
	ReviewTimeout  time.Duration
	MaxIterations  int
	Title          string
}

// defaulted returns a copy of o with zero fields replaced by the
// production defaults.
func (o Options) defaulted() Options {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 300 * time.Second
	}
	if o.ReviewTimeout <= 0 {
		o.ReviewTimeout = 600 * time.Second
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 50
	}
	return o
}

// PlanSection is one entry of the show_plan payload pushed when every
// branch has reached done.
type PlanSection struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ReviewResult is what the orchestrator extracts from the browser's
// response to the show_plan question.
type ReviewResult struct {
	Approved    bool
	Annotations map[string]string
	Feedback    string
}
