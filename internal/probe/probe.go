// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package probe decides, given a branch's question/answer history,
// whether exploration of that branch is finished (and what its finding
// is) or whether it needs one more follow-up question.
package probe

import (
	"fmt"
	"strings"

	"github.com/wingedpig/brainloom/internal/branchstate"
)

// MaxAnswersPerBranch bounds how many answered questions a branch may
// accumulate before probe forces it done, matching probe.max_answers_per_branch.
const MaxAnswersPerBranch = 3

// Question is a follow-up probe wants pushed to the branch.
type Question struct {
	Type   string
	Config map[string]any
}

// Verdict is probe's answer for one branch.
type Verdict struct {
	Done     bool
	Finding  string
	Question *Question // nil when Done, or when the caller should simply wait
}

// Prober is the decision function's interface. RulesProber is the
// reference implementation; an LLM-backed implementation can satisfy the
// same interface without the orchestrator changing.
type Prober interface {
	Evaluate(branch *branchstate.Branch) Verdict
}

// RulesProber implements the reference rule set.
type RulesProber struct {
	MaxAnswers int
}

// NewRulesProber creates a RulesProber with the given answer cap; a
// non-positive value falls back to MaxAnswersPerBranch.
func NewRulesProber(maxAnswers int) *RulesProber {
	if maxAnswers <= 0 {
		maxAnswers = MaxAnswersPerBranch
	}
	return &RulesProber{MaxAnswers: maxAnswers}
}

// Evaluate implements Prober.
func (p *RulesProber) Evaluate(branch *branchstate.Branch) Verdict {
	for _, q := range branch.Questions {
		if q.Answer == nil {
			return Verdict{Done: false}
		}
	}

	answered := answeredQuestions(branch)
	if len(answered) == 0 {
		return Verdict{Done: false}
	}

	if len(answered) >= p.MaxAnswers {
		return Verdict{Done: true, Finding: synthesize(answered)}
	}

	last := answered[len(answered)-1]
	if last.Type == "confirm" {
		switch last.Answer["choice"] {
		case "yes":
			return Verdict{Done: true, Finding: synthesize(answered)}
		case "no":
			return Verdict{Done: false, Question: &Question{
				Type:   "ask_text",
				Config: map[string]any{"question": fmt.Sprintf("What aspect of '%s' needs more discussion?", branch.Scope)},
			}}
		}
	}

	switch len(answered) {
	case 1:
		return Verdict{Done: false, Question: &Question{
			Type: "pick_one",
			Config: map[string]any{
				"question": fmt.Sprintf("What should take priority for %s?", branch.Scope),
				"options":  []string{"Correctness", "Performance", "Simplicity"},
			},
		}}
	case 2:
		return Verdict{Done: false, Question: &Question{
			Type:   "confirm",
			Config: map[string]any{"question": fmt.Sprintf("Is the direction clear for '%s'?", branch.Scope)},
		}}
	default:
		return Verdict{Done: true, Finding: synthesize(answered)}
	}
}

func answeredQuestions(branch *branchstate.Branch) []branchstate.BranchQuestion {
	var out []branchstate.BranchQuestion
	for _, q := range branch.Questions {
		if q.Answer != nil {
			out = append(out, q)
		}
	}
	return out
}

// synthesize concatenates the first answer's summary as the headline and
// the remaining non-affirmation summaries as qualifiers.
func synthesize(answered []branchstate.BranchQuestion) string {
	headline := summarizeAnswer(answered[0].Answer)

	var quals []string
	for _, q := range answered[1:] {
		// A bare confirm is a "ready to proceed" affirmation, not new
		// information; it never contributes a qualifier.
		if q.Type == "confirm" {
			continue
		}
		s := summarizeAnswer(q.Answer)
		if s != "" && s != "unspecified" {
			quals = append(quals, s)
		}
	}

	if len(quals) == 0 {
		return headline
	}
	return headline + "; " + strings.Join(quals, "; ")
}

// summarizeAnswer reduces a type-specific answer payload to one human
// summary string, trying fields in a fixed order of preference.
func summarizeAnswer(answer map[string]any) string {
	if s, ok := answer["selected"]; ok {
		switch v := s.(type) {
		case []string:
			return strings.Join(v, ", ")
		case []any:
			parts := make([]string, 0, len(v))
			for _, e := range v {
				parts = append(parts, fmt.Sprint(e))
			}
			return strings.Join(parts, ", ")
		case string:
			return v
		}
	}
	if c, ok := answer["choice"].(string); ok && c != "" {
		return c
	}
	if t, ok := answer["text"].(string); ok && t != "" {
		if len(t) > 100 {
			return t[:100]
		}
		return t
	}
	if v, ok := answer["value"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	for _, v := range answer {
		if v != nil {
			return fmt.Sprint(v)
		}
	}
	return "unspecified"
}
