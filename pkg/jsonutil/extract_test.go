package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "bare object",
			content:  `{"workflow":[],"summary":"s"}`,
			expected: `{"workflow":[],"summary":"s"}`,
		},
		{
			name:     "json fence",
			content:  "```json\n{\"approved\": true}\n```",
			expected: `{"approved": true}`,
		},
		{
			name:     "untagged fence",
			content:  "```\n{\"approved\": false}\n```",
			expected: `{"approved": false}`,
		},
		{
			name:     "surrounding prose",
			content:  "Here is the plan you asked for:\n{\"workflow\": [{\"capability_id\": \"diag.disk.free\"}]}\nLet me know if you need changes.",
			expected: `{"workflow": [{"capability_id": "diag.disk.free"}]}`,
		},
		{
			name:     "nested objects",
			content:  `prefix {"a": {"b": {"c": 1}}, "d": 2} suffix`,
			expected: `{"a": {"b": {"c": 1}}, "d": 2}`,
		},
		{
			name:     "braces inside strings",
			content:  `{"summary": "use {braces} carefully", "n": 1}`,
			expected: `{"summary": "use {braces} carefully", "n": 1}`,
		},
		{
			name:     "escaped quote inside string",
			content:  `{"summary": "a \"quoted\" phrase"}`,
			expected: `{"summary": "a \"quoted\" phrase"}`,
		},
		{
			name:     "fence with prose around object",
			content:  "```json\nSure thing:\n{\"x\": 1}\n```",
			expected: `{"x": 1}`,
		},
		{
			name:     "first of two objects",
			content:  `{"first": 1} {"second": 2}`,
			expected: `{"first": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, json.Valid([]byte(got)), "extracted text should be valid JSON")
		})
	}
}

func TestExtractObject_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "no object at all", content: "I could not produce a plan."},
		{name: "truncated response", content: `{"workflow": [{"capability_id": "diag.disk.free"`},
		{name: "truncated inside fence", content: "```json\n{\"workflow\": [\n```"},
		{name: "only closing brace", content: "}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractObject(tt.content)
			assert.ErrorIs(t, err, ErrNoObject)
		})
	}
}
