package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	lineCommentRe  = regexp.MustCompile(`(?m)//.*?$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma  = regexp.MustCompile(`,(\s*[\]}])`)
	rawNewlineRe   = regexp.MustCompile(`(["\w])\n(["\w])`)
)

// DecodeLoose parses model output into out, recovering from the usual
// ways models break JSON: markdown fences, leading prose, comments,
// trailing commas, and raw newlines inside string values.
func DecodeLoose(text string, out any) error {
	candidate := extractCandidate(text)

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	repaired := trailingComma.ReplaceAllString(
		blockCommentRe.ReplaceAllString(
			lineCommentRe.ReplaceAllString(candidate, ""), ""), "$1")
	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	// Models frequently emit literal newlines inside string values.
	escaped := rawNewlineRe.ReplaceAllString(candidate, "$1\\n$2")
	if err := json.Unmarshal([]byte(escaped), out); err != nil {
		return fmt.Errorf("unparseable model JSON: %w", err)
	}
	return nil
}

// extractCandidate pulls the most plausible JSON document out of text:
// a fenced block if present, otherwise the outermost braces or brackets.
func extractCandidate(text string) string {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if s := outermost(text, '{', '}'); s != "" {
		return s
	}
	if s := outermost(text, '[', ']'); s != "" {
		return s
	}
	return strings.TrimSpace(text)
}

func outermost(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
