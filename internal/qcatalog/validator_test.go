// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package qcatalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfig_UnknownTypeRejected(t *testing.T) {
	v := NewValidator()
	err := v.ValidateConfig("not_a_type", map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidQuestionPayload)
}

func TestValidateConfig_PickOneRequiresOptionsAndQuestion(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.ValidateConfig("pick_one", map[string]any{}))
	assert.Error(t, v.ValidateConfig("pick_one", map[string]any{"options": []string{"a"}}))
	assert.NoError(t, v.ValidateConfig("pick_one", map[string]any{
		"question": "pick one",
		"options":  []string{"a", "b"},
	}))
}

func TestValidateConfig_OptionsAcceptsObjectList(t *testing.T) {
	v := NewValidator()
	err := v.ValidateConfig("pick_one", map[string]any{
		"question": "JSON or plain?",
		"options":  []map[string]any{{"id": "j", "label": "JSON"}},
	})
	assert.NoError(t, err)
}

func TestValidateAnswer_Confirm(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateAnswer("confirm", map[string]any{"choice": "yes"}))
	assert.NoError(t, v.ValidateAnswer("confirm", map[string]any{"choice": "no"}))
	assert.Error(t, v.ValidateAnswer("confirm", map[string]any{"choice": "maybe"}))
	assert.Error(t, v.ValidateAnswer("confirm", map[string]any{}))
}

func TestValidateAnswer_PickOne_SelectedOrOther(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateAnswer("pick_one", map[string]any{"selected": "j"}))
	assert.NoError(t, v.ValidateAnswer("pick_one", map[string]any{"other": "custom"}))
	assert.Error(t, v.ValidateAnswer("pick_one", map[string]any{}))
}

func TestValidateAnswer_PickMany_RequiresNonEmptySelected(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.ValidateAnswer("pick_many", map[string]any{"selected": []any{}}))
	assert.NoError(t, v.ValidateAnswer("pick_many", map[string]any{"selected": []any{"a", "b"}}))
}

func TestValidateAnswer_Slider_RequiresNumber(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.ValidateAnswer("slider", map[string]any{"value": "not a number"}))
	assert.NoError(t, v.ValidateAnswer("slider", map[string]any{"value": 3.5}))
}

func TestValidateAnswer_ShowPlan_ApprovedBoolOrChoice(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.ValidateAnswer("show_plan", map[string]any{"approved": "yes"}))
	assert.NoError(t, v.ValidateAnswer("show_plan", map[string]any{"approved": true}))
	assert.NoError(t, v.ValidateAnswer("show_plan", map[string]any{"choice": "yes"}))
	assert.Error(t, v.ValidateAnswer("show_plan", map[string]any{}))
}
