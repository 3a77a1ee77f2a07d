// Package jsonx recovers JSON values from free-form model output. Models
// wrap structured answers in markdown fences, prose, or partial text more
// often than they return clean JSON, so every extraction strategy here is
// tried in order and individual failures are swallowed.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports that no valid JSON object or array could be recovered
// from the input text.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	preview := e.Input
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return fmt.Sprintf("no valid JSON found in text: %q", preview)
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	greedyRe      = regexp.MustCompile(`(?s)[{\[].*[}\]]`)
)

// Extract recovers a JSON object or array from text. Strategies are tried in
// order, first success wins:
//
//  1. Parse the trimmed text directly.
//  2. Parse the contents of a fenced code block, with or without a language tag.
//  3. Scan for the first '{' or '[' and find its matching close with a depth
//     counter that ignores braces inside string literals.
//  4. Greedy match from the first opening to the last closing bracket.
//
// Returns *ParseError when all strategies fail.
func Extract(text string) (any, error) {
	trimmed := strings.TrimSpace(text)

	if v, ok := tryParse(trimmed); ok {
		return v, nil
	}

	for _, match := range fencedBlockRe.FindAllStringSubmatch(trimmed, -1) {
		if v, ok := tryParse(strings.TrimSpace(match[1])); ok {
			return v, nil
		}
	}

	if candidate := matchBalanced(trimmed); candidate != "" {
		if v, ok := tryParse(candidate); ok {
			return v, nil
		}
	}

	if candidate := greedyRe.FindString(trimmed); candidate != "" {
		if v, ok := tryParse(candidate); ok {
			return v, nil
		}
	}

	return nil, &ParseError{Input: text}
}

// ExtractObject is Extract narrowed to JSON objects.
func ExtractObject(text string) (map[string]any, error) {
	v, err := Extract(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Input: text}
	}
	return obj, nil
}

// ExtractArray is Extract narrowed to JSON arrays.
func ExtractArray(text string) ([]any, error) {
	v, err := Extract(text)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &ParseError{Input: text}
	}
	return arr, nil
}

func tryParse(candidate string) (any, bool) {
	if candidate == "" {
		return nil, false
	}
	// Only objects and arrays count as structured output.
	if candidate[0] != '{' && candidate[0] != '[' {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

// matchBalanced finds the first '{' or '[' and returns the substring up to
// its matching close. Braces inside string literals are skipped by tracking
// quote and backslash-escape state character by character.
func matchBalanced(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}
