// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError aggregates multiple field validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateState(cfg, errs)
	v.validateSession(cfg, errs)
	v.validateProbe(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
}

func (v *Validator) validateState(cfg *Config, errs *ValidationError) {
	if cfg.State.Dir == "" {
		errs.Add("state.dir", "is required")
	}
}

func (v *Validator) validateSession(cfg *Config, errs *ValidationError) {
	if cfg.Session.DefaultTimeoutMs < 0 {
		errs.Add("session.default_timeout_ms", "must not be negative")
	}
	if cfg.Session.ReviewTimeoutMs < 0 {
		errs.Add("session.review_timeout_ms", "must not be negative")
	}
	if cfg.Session.MaxIterations < 1 {
		errs.Add("session.max_iterations", "must be at least 1")
	}
}

func (v *Validator) validateProbe(cfg *Config, errs *ValidationError) {
	if cfg.Probe.Kind != "" && cfg.Probe.Kind != "rules" && cfg.Probe.Kind != "llm" {
		errs.Add("probe.kind", `must be "rules" or "llm"`)
	}
	if cfg.Probe.MaxAnswersPerBranch < 1 {
		errs.Add("probe.max_answers_per_branch", "must be at least 1")
	}
}
