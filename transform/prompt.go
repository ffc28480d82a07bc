package transform

import "strings"

const promptSuffix = " Keep the meaning exactly the same, just adjust the style. Return only the transformed text, no explanations:"

var stylePrompts = map[Style]string{
	Formal:     "Transform this text to be formal with proper capitalization and punctuation.",
	Casual:     "Transform this text to be casual with capitalization but less punctuation (remove trailing periods).",
	VeryCasual: "Transform this text to be very casual with no capitalization and less punctuation (remove trailing periods).",
	Excited:    "Transform this text to be more excited with exclamation marks.",
}

var categoryContext = map[Category]string{
	Personal: "This is for personal messaging.",
	Work:     "This is for workplace messaging.",
	Email:    "This is for email communication.",
	Other:    "This is for general text output.",
}

// Instruction is the rewrite instruction for a style and category.
func Instruction(style Style, category Category) string {
	p, ok := stylePrompts[style]
	if !ok {
		p = stylePrompts[Formal]
	}
	if ctx := categoryContext[category]; ctx != "" {
		p = ctx + " " + p
	}
	return p + promptSuffix
}

// Prompt is the single-string form used by completion-style backends.
func Prompt(req Request) string {
	return Instruction(req.Style, req.Category) + "\n\n\"" + req.Text + "\""
}

// cleanOutput keeps the first line of a model reply and strips one layer of
// surrounding quotes.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
