// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package qcatalog

import "fmt"

// FieldError names the offending field of a rejected config/answer
// payload, mirroring internal/config's FieldError shape.
type FieldError struct {
	Type    string
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Type, e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidQuestionPayload
}

func fieldErr(qType, field, message string) error {
	return &FieldError{Type: qType, Field: field, Message: message}
}

// Validator checks config/answer payloads against the catalog.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig checks a push_question config payload before the
// question is admitted into the session store.
func (v *Validator) ValidateConfig(qType string, config map[string]any) error {
	if !IsKnownType(qType) {
		return fieldErr(qType, "type", "unknown question type")
	}

	switch QuestionType(qType) {
	case PickOne, PickMany, Rank, Rate:
		// options may be a flat list of labels or a list of {id,label}
		// objects; only non-emptiness is the adapter's concern.
		if err := requireSliceField(qType, config, "options"); err != nil {
			return err
		}
		return requireStringField(qType, config, "question")
	case Confirm, AskText, AskImage, AskFile, AskCode, Thumbs, EmojiReact, Slider:
		return requireStringField(qType, config, "question")
	case ShowOptions:
		if err := requireSliceField(qType, config, "options"); err != nil {
			return err
		}
		return requireStringField(qType, config, "question")
	case ShowDiff:
		return requireStringField(qType, config, "diff")
	case ShowPlan:
		return requireSliceField(qType, config, "sections")
	case ReviewSection:
		return requireStringField(qType, config, "content")
	}
	return nil
}

// ValidateAnswer checks a browser-submitted answer payload against the
// shape the catalog names for qType, before it is recorded.
func (v *Validator) ValidateAnswer(qType string, answer map[string]any) error {
	if !IsKnownType(qType) {
		return fieldErr(qType, "type", "unknown question type")
	}

	switch QuestionType(qType) {
	case PickOne:
		if hasField(answer, "selected") {
			return requireStringField(qType, answer, "selected")
		}
		return requireStringField(qType, answer, "other")
	case PickMany:
		return requireStringSliceField(qType, answer, "selected")
	case Confirm:
		return requireOneOfField(qType, answer, "choice", "yes", "no", "cancel")
	case AskText:
		return requireStringField(qType, answer, "text")
	case AskImage, AskFile:
		return requireField(qType, answer, "files")
	case AskCode:
		return requireStringField(qType, answer, "code")
	case ShowOptions:
		return requireStringField(qType, answer, "selected")
	case ShowDiff:
		return requireOneOfField(qType, answer, "decision", "approve", "reject", "edit")
	case ShowPlan:
		if hasField(answer, "approved") {
			return requireBoolField(qType, answer, "approved")
		}
		// A plan review submitted through a confirm-style control carries
		// choice instead of approved.
		return requireOneOfField(qType, answer, "choice", "yes", "no")
	case ReviewSection:
		return requireOneOfField(qType, answer, "decision", "approve", "revise")
	case Rank:
		return requireStringSliceField(qType, answer, "ranking")
	case Rate:
		return requireField(qType, answer, "ratings")
	case Thumbs:
		return requireOneOfField(qType, answer, "choice", "up", "down")
	case EmojiReact:
		return requireStringField(qType, answer, "choice")
	case Slider:
		return requireNumberField(qType, answer, "value")
	}
	return nil
}

func hasField(m map[string]any, field string) bool {
	_, ok := m[field]
	return ok
}

func requireField(qType string, m map[string]any, field string) error {
	if v, ok := m[field]; !ok || v == nil {
		return fieldErr(qType, field, "is required")
	}
	return nil
}

func requireStringField(qType string, m map[string]any, field string) error {
	v, ok := m[field]
	if !ok {
		return fieldErr(qType, field, "is required")
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fieldErr(qType, field, "must be a non-empty string")
	}
	return nil
}

func requireBoolField(qType string, m map[string]any, field string) error {
	v, ok := m[field]
	if !ok {
		return fieldErr(qType, field, "is required")
	}
	if _, ok := v.(bool); !ok {
		return fieldErr(qType, field, "must be a boolean")
	}
	return nil
}

func requireNumberField(qType string, m map[string]any, field string) error {
	v, ok := m[field]
	if !ok {
		return fieldErr(qType, field, "is required")
	}
	switch v.(type) {
	case float64, int, int64:
		return nil
	default:
		return fieldErr(qType, field, "must be a number")
	}
}

func requireSliceField(qType string, m map[string]any, field string) error {
	v, ok := m[field]
	if !ok {
		return fieldErr(qType, field, "is required")
	}
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return fieldErr(qType, field, "must be non-empty")
		}
	case []string:
		if len(t) == 0 {
			return fieldErr(qType, field, "must be non-empty")
		}
	case []map[string]any:
		if len(t) == 0 {
			return fieldErr(qType, field, "must be non-empty")
		}
	default:
		return fieldErr(qType, field, "must be an array")
	}
	return nil
}

func requireStringSliceField(qType string, m map[string]any, field string) error {
	v, ok := m[field]
	if !ok {
		return fieldErr(qType, field, "is required")
	}
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return fieldErr(qType, field, "must be non-empty")
		}
	case []any:
		if len(t) == 0 {
			return fieldErr(qType, field, "must be non-empty")
		}
		for _, e := range t {
			if _, ok := e.(string); !ok {
				return fieldErr(qType, field, "must be an array of strings")
			}
		}
	default:
		return fieldErr(qType, field, "must be an array of strings")
	}
	return nil
}

func requireOneOfField(qType string, m map[string]any, field string, allowed ...string) error {
	v, ok := m[field]
	if !ok {
		return fieldErr(qType, field, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return fieldErr(qType, field, "must be a string")
	}
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return fieldErr(qType, field, fmt.Sprintf("must be one of %v", allowed))
}
