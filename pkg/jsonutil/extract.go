// Package jsonutil extracts JSON payloads from generation-backend responses.
// Models frequently wrap JSON in markdown code fences or surround it with
// prose; both the planner and the safety validator go through this one
// utility so the two decode paths cannot drift apart.
package jsonutil

import (
	"errors"
	"regexp"
)

var (
	// ErrNoObject is returned when no balanced JSON object is present.
	ErrNoObject = errors.New("no JSON object found in response")

	// fencePattern matches a markdown code block, optionally tagged json.
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
)

// ExtractObject returns the first balanced {...} object in content, after
// stripping an enclosing markdown code fence when present. Truncated
// responses (an opening brace that never closes) yield ErrNoObject; the
// caller treats that as an invalid response, never as something to repair.
func ExtractObject(content string) (string, error) {
	if matches := fencePattern.FindStringSubmatch(content); len(matches) > 1 {
		if obj, err := firstBalancedObject(matches[1]); err == nil {
			return obj, nil
		}
		// A fence without a complete object inside it falls through to
		// scanning the whole response.
	}

	return firstBalancedObject(content)
}

// firstBalancedObject scans for the first '{' and returns the substring up
// to its matching '}', tracking string literals and escapes so braces inside
// strings do not count.
func firstBalancedObject(content string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if escaped {
			escaped = false

			continue
		}

		switch {
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// Braces inside strings are content, not structure.
		case ch == '{':
			if start == -1 {
				start = i
			}

			depth++
		case ch == '}':
			if start == -1 {
				continue
			}

			depth--
			if depth == 0 {
				return content[start : i+1], nil
			}
		}
	}

	return "", ErrNoObject
}
