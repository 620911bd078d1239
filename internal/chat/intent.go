// Package chat implements the conversation core: classifying a user turn,
// routing it to the right Gemini call shape, and orchestrating session and
// quota state around the round-trip.
package chat

import (
	"regexp"
	"strings"
)

// Mode is the classified action for a user turn.
type Mode int

const (
	// ModeConverse sends the turn to the chat model, with or without an
	// attached image.
	ModeConverse Mode = iota
	// ModeGenerate asks the image model for a new picture from text.
	ModeGenerate
	// ModeEdit asks the image model to transform the attached picture.
	ModeEdit
)

// String returns the mode name for logging.
func (m Mode) String() string {
	switch m {
	case ModeGenerate:
		return "generate"
	case ModeEdit:
		return "edit"
	default:
		return "converse"
	}
}

// Leading-word triggers, Arabic and English. Both sets anchor at the start
// of the trimmed prompt and match case-insensitively.
var (
	generateTriggers = regexp.MustCompile(`(?i)^(ارسم|draw|generate|create image|صورة لـ|تخيل)`)
	editTriggers     = regexp.MustCompile(`(?i)^(غير|عدل|حول|اضف|احذف|اجعل|change|edit|modify|add|remove|make|style|filter|background)`)
)

// Classify selects the mode for a turn. Generation triggers are checked
// first and only apply when no image is attached; edit triggers only apply
// when one is. A generation-style prompt WITH an attached image therefore
// falls through to conversing over the image unless an edit trigger also
// matches — that keeps an edit request from being misrouted as generation.
func Classify(prompt string, hasImage bool) Mode {
	trimmed := strings.TrimSpace(prompt)

	if generateTriggers.MatchString(trimmed) && !hasImage {
		return ModeGenerate
	}
	if editTriggers.MatchString(trimmed) && hasImage {
		return ModeEdit
	}
	return ModeConverse
}
