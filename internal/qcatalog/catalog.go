// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package qcatalog names the fixed question type catalog and validates
// config/answer payloads against it. It is shared by
// internal/session (which validates inbound WS response frames before
// recording them) and internal/toolsurface (which validates
// push_question config before admitting a question).
package qcatalog

// QuestionType enumerates the fixed question type catalog. The core
// itself treats config/answer as opaque maps; only this adapter layer
// knows their per-type shape.
type QuestionType string

const (
	PickOne       QuestionType = "pick_one"
	PickMany      QuestionType = "pick_many"
	Confirm       QuestionType = "confirm"
	AskText       QuestionType = "ask_text"
	AskImage      QuestionType = "ask_image"
	AskFile       QuestionType = "ask_file"
	AskCode       QuestionType = "ask_code"
	ShowOptions   QuestionType = "show_options"
	ShowDiff      QuestionType = "show_diff"
	ShowPlan      QuestionType = "show_plan"
	ReviewSection QuestionType = "review_section"
	Rank          QuestionType = "rank"
	Rate          QuestionType = "rate"
	Thumbs        QuestionType = "thumbs"
	EmojiReact    QuestionType = "emoji_react"
	Slider        QuestionType = "slider"
)

// knownTypes is used to reject an unrecognized type string outright.
var knownTypes = map[QuestionType]bool{
	PickOne: true, PickMany: true, Confirm: true, AskText: true,
	AskImage: true, AskFile: true, AskCode: true, ShowOptions: true,
	ShowDiff: true, ShowPlan: true, ReviewSection: true, Rank: true,
	Rate: true, Thumbs: true, EmojiReact: true, Slider: true,
}

// IsKnownType reports whether t names a row of the catalog.
func IsKnownType(t string) bool {
	return knownTypes[QuestionType(t)]
}
