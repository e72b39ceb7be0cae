// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/brainloom/internal/branchstate"
	"github.com/wingedpig/brainloom/internal/idgen"
	"github.com/wingedpig/brainloom/internal/probe"
	"github.com/wingedpig/brainloom/internal/session"
)

// Orchestrator couples the session store and the branch state store.
type Orchestrator struct {
	sessions *session.Store
	state    *branchstate.Store
	prober   probe.Prober
	opts     Options

	mu       sync.Mutex
	inFlight map[string]*errgroup.Group // session id -> in-flight process_answer tasks
}

// New creates an Orchestrator.
func New(sessions *session.Store, state *branchstate.Store, prober probe.Prober, opts Options) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		state:    state,
		prober:   prober,
		opts:     opts.defaulted(),
		inFlight: make(map[string]*errgroup.Group),
	}
}

// CreateBrainstorm allocates a session, seeds one question per branch
// (tagged with its scope), and returns a summary naming the branches and
// the browser URL.
func (o *Orchestrator) CreateBrainstorm(request string, branches []BranchSpec) (string, error) {
	sessionID := idgen.Session()

	seeds := make([]branchstate.BranchSeed, 0, len(branches))
	for _, b := range branches {
		seeds = append(seeds, branchstate.BranchSeed{ID: b.ID, Scope: b.Scope})
	}
	if err := o.state.CreateSession(sessionID, request, seeds); err != nil {
		return "", fmt.Errorf("create brainstorm: %w", err)
	}

	seedQuestions := make([]session.SeedQuestion, 0, len(branches))
	for _, b := range branches {
		config := cloneConfig(b.InitialQuestion.Config)
		if ctx, ok := config["context"].(string); ok {
			config["context"] = fmt.Sprintf("[%s] %s", b.Scope, ctx)
		} else {
			config["context"] = fmt.Sprintf("[%s]", b.Scope)
		}
		seedQuestions = append(seedQuestions, session.SeedQuestion{Type: b.InitialQuestion.Type, Config: config})
	}

	started, err := o.sessions.StartSession(o.opts.Title, seedQuestions)
	if err != nil {
		return "", fmt.Errorf("create brainstorm: %w", err)
	}

	if err := o.state.SetBrowserSessionID(sessionID, started.SessionID); err != nil {
		return "", fmt.Errorf("create brainstorm: %w", err)
	}

	for i, b := range branches {
		q := branchstate.BranchQuestion{
			ID:     started.QuestionIDs[i],
			Type:   b.InitialQuestion.Type,
			Text:   questionText(seedQuestions[i].Config),
			Config: seedQuestions[i].Config,
		}
		if err := o.state.AddQuestionToBranch(sessionID, b.ID, q); err != nil {
			return "", fmt.Errorf("create brainstorm: %w", err)
		}
	}

	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.ID)
	}
	summary := fmt.Sprintf("Started brainstorm %s with branches [%s] at %s", sessionID, strings.Join(names, ", "), started.URL)
	return summary, nil
}

// AwaitBrainstormComplete is the main loop: it consumes answers from the
// browser session until every branch is done (or the loop's bounds are
// exhausted), then drives the plan-review interaction.
func (o *Orchestrator) AwaitBrainstormComplete(ctx context.Context, sessionID, browserSessionID string) (string, error) {
loop:
	for i := 0; i < o.opts.MaxIterations; i++ {
		complete, err := o.state.IsSessionComplete(sessionID)
		if err != nil {
			return "", fmt.Errorf("await brainstorm complete: %w", err)
		}
		if complete {
			break
		}

		out := o.sessions.GetNextAnswer(ctx, session.GetNextAnswerInput{
			SessionID: browserSessionID,
			Block:     true,
			Timeout:   o.opts.DefaultTimeout,
		})

		if !out.Completed {
			switch out.Status {
			case "none_pending":
				o.awaitInFlight(sessionID)
				continue
			case "timeout":
				break loop
			default:
				continue
			}
		}

		o.spawnProcessAnswer(sessionID, browserSessionID, out.QuestionID, out.Response)
	}

	o.awaitInFlight(sessionID)

	complete, err := o.state.IsSessionComplete(sessionID)
	if err != nil {
		return "", fmt.Errorf("await brainstorm complete: %w", err)
	}
	if !complete {
		return o.progressSummary(sessionID)
	}

	return o.reviewPlan(ctx, sessionID, browserSessionID)
}

// spawnProcessAnswer runs process_answer on sessionID's in-flight group
// so AwaitBrainstormComplete can keep consuming answers without waiting
// for probe/state-store work to finish. Panics are recovered and
// logged, never taking the loop down.
func (o *Orchestrator) spawnProcessAnswer(sessionID, browserSessionID, questionID string, response map[string]any) {
	g := o.groupFor(sessionID)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("orchestrator: process_answer panic for session %s: %v", sessionID, r)
			}
		}()
		if perr := o.processAnswer(sessionID, browserSessionID, questionID, response); perr != nil {
			log.Printf("orchestrator: process_answer error for session %s: %v", sessionID, perr)
		}
		return nil
	})
}

func (o *Orchestrator) groupFor(sessionID string) *errgroup.Group {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.inFlight[sessionID]
	if !ok {
		g = &errgroup.Group{}
		o.inFlight[sessionID] = g
	}
	return g
}

func (o *Orchestrator) awaitInFlight(sessionID string) {
	o.mu.Lock()
	g, ok := o.inFlight[sessionID]
	delete(o.inFlight, sessionID)
	o.mu.Unlock()
	if ok {
		_ = g.Wait()
	}
}

// processAnswer locates the branch owning questionID, records the
// answer, invokes probe, and either completes the branch or pushes a
// follow-up question.
func (o *Orchestrator) processAnswer(sessionID, browserSessionID, questionID string, response map[string]any) error {
	if err := o.state.RecordAnswer(sessionID, questionID, response); err != nil {
		return fmt.Errorf("process answer: record: %w", err)
	}

	st, err := o.state.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("process answer: reload: %w", err)
	}
	if st == nil {
		return fmt.Errorf("process answer: session %s vanished", sessionID)
	}

	branchID, branch := findBranchByQuestion(st, questionID)
	if branch == nil {
		return fmt.Errorf("process answer: no branch owns question %s", questionID)
	}
	if branch.Status == branchstate.BranchDone {
		return nil
	}

	verdict := o.prober.Evaluate(branch)
	if verdict.Done {
		return o.state.CompleteBranch(sessionID, branchID, verdict.Finding)
	}
	if verdict.Question == nil {
		return nil
	}

	newQuestionID, err := o.sessions.PushQuestion(browserSessionID, verdict.Question.Type, verdict.Question.Config)
	if err != nil {
		return fmt.Errorf("process answer: push follow-up: %w", err)
	}

	return o.state.AddQuestionToBranch(sessionID, branchID, branchstate.BranchQuestion{
		ID:     newQuestionID,
		Type:   verdict.Question.Type,
		Text:   questionText(verdict.Question.Config),
		Config: verdict.Question.Config,
	})
}

func findBranchByQuestion(st *branchstate.BrainstormState, questionID string) (string, *branchstate.Branch) {
	for id, b := range st.Branches {
		for _, q := range b.Questions {
			if q.ID == questionID {
				return id, b
			}
		}
	}
	return "", nil
}

// progressSummary renders an "in progress" summary of branch statuses
// when the loop ends without every branch reaching done.
func (o *Orchestrator) progressSummary(sessionID string) (string, error) {
	st, err := o.state.GetSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("progress summary: %w", err)
	}
	if st == nil {
		return "", fmt.Errorf("progress summary: session %s not found", sessionID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Brainstorm %s in progress:\n", sessionID)
	for _, id := range st.BranchOrder {
		branch := st.Branches[id]
		fmt.Fprintf(&b, "  - %s: %s\n", id, branch.Status)
	}
	return b.String(), nil
}

// reviewPlan builds the show_plan payload once every branch is done,
// pushes it, and awaits the review response.
func (o *Orchestrator) reviewPlan(ctx context.Context, sessionID, browserSessionID string) (string, error) {
	st, err := o.state.GetSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("review plan: %w", err)
	}
	if st == nil {
		return "", fmt.Errorf("review plan: session %s not found", sessionID)
	}

	sections := []PlanSection{{ID: "_request", Title: "Original Request", Content: st.Request}}
	for _, id := range st.BranchOrder {
		b := st.Branches[id]
		sections = append(sections, PlanSection{
			ID:      id,
			Title:   b.Scope,
			Content: fmt.Sprintf("Finding: %s\nDiscussion: %s", b.Finding, discussionOf(b)),
		})
	}

	config := map[string]any{"sections": planSectionsToAny(sections)}
	_, err = o.sessions.PushQuestion(browserSessionID, "show_plan", config)
	if err != nil {
		// The browser session may already be gone; return findings
		// without review rather than failing the whole brainstorm.
		return o.findingsSummary(st), nil
	}

	out := o.sessions.GetNextAnswer(ctx, session.GetNextAnswerInput{
		SessionID: browserSessionID,
		Block:     true,
		Timeout:   o.opts.ReviewTimeout,
	})
	if !out.Completed {
		return o.findingsSummary(st), nil
	}

	review := parseReview(out.Response)
	var b strings.Builder
	b.WriteString(o.findingsSummary(st))
	fmt.Fprintf(&b, "\nReview: approved=%v", review.Approved)
	if review.Feedback != "" {
		fmt.Fprintf(&b, " feedback=%q", review.Feedback)
	}
	for section, note := range review.Annotations {
		fmt.Fprintf(&b, "\n  annotation[%s]: %s", section, note)
	}
	return b.String(), nil
}

func parseReview(response map[string]any) ReviewResult {
	var r ReviewResult
	if approved, ok := response["approved"].(bool); ok && approved {
		r.Approved = true
	}
	if choice, ok := response["choice"].(string); ok && choice == "yes" {
		r.Approved = true
	}
	if raw, ok := response["annotations"].(map[string]any); ok {
		r.Annotations = make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				r.Annotations[k] = s
			}
		}
	}
	if fb, ok := response["feedback"].(string); ok && fb != "" {
		r.Feedback = fb
	} else if txt, ok := response["text"].(string); ok && txt != "" {
		r.Feedback = txt
	}
	return r
}

func (o *Orchestrator) findingsSummary(st *branchstate.BrainstormState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brainstorm %s complete:\n", st.SessionID)
	for _, id := range st.BranchOrder {
		branch := st.Branches[id]
		fmt.Fprintf(&b, "  - %s: %s\n", id, branch.Finding)
	}
	return b.String()
}

// EndBrainstorm closes out a session: ends the live browser session if
// it is still around, deletes the persisted state, and returns the
// final findings.
func (o *Orchestrator) EndBrainstorm(sessionID string) (string, error) {
	st, err := o.state.GetSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("end brainstorm: %w", err)
	}
	if st == nil {
		return "", fmt.Errorf("end brainstorm: session %s not found", sessionID)
	}

	if st.BrowserSessionID != "" {
		o.sessions.EndSession(st.BrowserSessionID)
	}

	findings := o.findingsSummary(st)

	if err := o.state.DeleteSession(sessionID); err != nil {
		return "", fmt.Errorf("end brainstorm: %w", err)
	}
	return findings, nil
}

// GetSessionSummary renders each branch's current status, Q&A history,
// and finding.
func (o *Orchestrator) GetSessionSummary(sessionID string) (string, error) {
	st, err := o.state.GetSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("get session summary: %w", err)
	}
	if st == nil {
		return "", fmt.Errorf("get session summary: session %s not found", sessionID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Brainstorm %s: %s\n", st.SessionID, st.Request)
	for _, id := range st.BranchOrder {
		branch := st.Branches[id]
		fmt.Fprintf(&b, "\n[%s] %s (%s)\n", id, branch.Scope, branch.Status)
		if len(branch.Questions) == 0 {
			b.WriteString("  (no answers)\n")
		}
		for _, q := range branch.Questions {
			if q.Answer == nil {
				fmt.Fprintf(&b, "  Q: %s (no answers)\n", q.Text)
				continue
			}
			fmt.Fprintf(&b, "  Q: %s\n  A: %v\n", q.Text, q.Answer)
		}
		if branch.Status == branchstate.BranchDone {
			fmt.Fprintf(&b, "  Finding: %s\n", branch.Finding)
		}
	}
	return b.String(), nil
}

func discussionOf(b *branchstate.Branch) string {
	var parts []string
	for _, q := range b.Questions {
		if q.Answer != nil {
			parts = append(parts, q.Text)
		}
	}
	return strings.Join(parts, "; ")
}

func questionText(config map[string]any) string {
	if q, ok := config["question"].(string); ok {
		return q
	}
	return ""
}

func cloneConfig(config map[string]any) map[string]any {
	out := make(map[string]any, len(config)+1)
	for k, v := range config {
		out[k] = v
	}
	return out
}

func planSectionsToAny(sections []PlanSection) []map[string]any {
	out := make([]map[string]any, 0, len(sections))
	for _, s := range sections {
		out = append(out, map[string]any{"id": s.ID, "title": s.Title, "content": s.Content})
	}
	return out
}
