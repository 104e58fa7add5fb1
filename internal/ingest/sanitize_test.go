package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain text untouched", "Uncaught TypeError: x is undefined", 2000, "Uncaught TypeError: x is undefined"},
		{"script block removed", `before <script>alert(1)</script> after`, 2000, "before [SCRIPT_REMOVED] after"},
		{"html stripped", "<b>bold</b> message", 2000, "bold message"},
		{"control chars removed", "line\x00one\x1ftwo", 2000, "lineonetwo"},
		{"whitespace trimmed", "  padded  ", 2000, "padded"},
		{"truncated at cap", strings.Repeat("a", 3000), 2000, strings.Repeat("a", 2000)},
		{"empty in empty out", "", 2000, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in, tt.max))
		})
	}
}

func TestSanitizeTextIdempotent(t *testing.T) {
	inputs := []string{
		"<script>x</script>",
		strings.Repeat("word ", 500),
		"  <b>mixed</b>\x00 content  ",
		strings.Repeat("a", 1999) + " b",
	}
	for _, in := range inputs {
		once := SanitizeText(in, 2000)
		assert.Equal(t, once, SanitizeText(once, 2000))
	}
}

func TestSanitizeTextPreservesUTF8(t *testing.T) {
	s := strings.Repeat("é", 1500)
	out := SanitizeText(s, 2000)
	assert.LessOrEqual(t, len(out), 2000)
	for _, r := range out {
		assert.Equal(t, 'é', r)
	}
}

func TestRedactStack(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"unix home path",
			"at doWork (/home/alice/app/src/index.js:10:5)",
			"at doWork (/home/USER/app/src/index.js:10:5)",
		},
		{
			"windows profile path",
			`at doWork (C:\Users\alice\app\index.js:10:5)`,
			`at doWork (C:\Users\USER\app\index.js:10:5)`,
		},
		{
			"password literal",
			`config = {password: "hunter2"}`,
			"config = {password: [REDACTED]}",
		},
		{
			"token literal",
			`headers token="abc123"`,
			"headers token: [REDACTED]",
		},
		{
			"api key literal",
			`api_key: "sk-live-xyz"`,
			"api_key: [REDACTED]",
		},
		{"clean stack untouched", "at f (app.js:1:1)", "at f (app.js:1:1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactStack(tt.in))
		})
	}
}

func TestRedactStackCapsLength(t *testing.T) {
	out := RedactStack(strings.Repeat("x", MaxStackLen*2))
	assert.LessOrEqual(t, len(out), MaxStackLen)
}

func TestSanitizeAdditionalData(t *testing.T) {
	t.Run("nil and empty collapse to nil", func(t *testing.T) {
		assert.Nil(t, SanitizeAdditionalData(nil))
		assert.Nil(t, SanitizeAdditionalData(map[string]any{}))
	})

	t.Run("string values sanitized", func(t *testing.T) {
		out := SanitizeAdditionalData(map[string]any{"note": "<script>x</script>hi"})
		assert.Equal(t, "[SCRIPT_REMOVED]hi", out["note"])
	})

	t.Run("non-string values pass through", func(t *testing.T) {
		out := SanitizeAdditionalData(map[string]any{"count": float64(3), "flag": true})
		assert.Equal(t, float64(3), out["count"])
		assert.Equal(t, true, out["flag"])
	})

	t.Run("oversized map replaced with marker", func(t *testing.T) {
		out := SanitizeAdditionalData(map[string]any{"big": strings.Repeat("a", MaxAdditionalDataLen)})
		assert.Equal(t, true, out["truncated"])
		assert.NotNil(t, out["original_size"])
	})

	t.Run("empty keys dropped", func(t *testing.T) {
		out := SanitizeAdditionalData(map[string]any{"  ": "a", "ok": "b"})
		assert.Len(t, out, 1)
		assert.Equal(t, "b", out["ok"])
	})
}
