package ingest

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Field length caps applied before storage.
const (
	MaxMessageLen        = 2000
	MaxStackLen          = 2000
	MaxSourceLen         = 255
	MaxAdditionalDataLen = 1000
)

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	controlRe     = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

	// Secret-bearing fragments stripped from stack traces.
	redactions = []struct {
		re          *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`/home/[^/\s]+`), "/home/USER"},
		{regexp.MustCompile(`(?i)C:\\Users\\[^\\\s]+`), `C:\Users\USER`},
		{regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["'][^"']+["']`), "password: [REDACTED]"},
		{regexp.MustCompile(`(?i)token["']?\s*[:=]\s*["'][^"']+["']`), "token: [REDACTED]"},
		{regexp.MustCompile(`(?i)api[_-]?key["']?\s*[:=]\s*["'][^"']+["']`), "api_key: [REDACTED]"},
	}
)

// SanitizeText strips executable markup and control characters from s and
// caps it at maxLen. The result is stable under re-sanitization:
// SanitizeText(SanitizeText(s, n), n) == SanitizeText(s, n).
func SanitizeText(s string, maxLen int) string {
	s = scriptBlockRe.ReplaceAllString(s, "[SCRIPT_REMOVED]")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = controlRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if maxLen > 0 && len(s) > maxLen {
		// Trim again: the cut can expose trailing whitespace, and the
		// result must be stable under re-sanitization.
		s = strings.TrimSpace(truncateUTF8(s, maxLen))
	}
	return s
}

// RedactStack removes filesystem usernames and credential assignments from a
// stack trace, then sanitizes and caps it.
func RedactStack(stack string) string {
	for _, r := range redactions {
		stack = r.re.ReplaceAllString(stack, r.replacement)
	}
	return SanitizeText(stack, MaxStackLen)
}

// SanitizeAdditionalData re-serializes the map and drops it entirely when the
// serialized form exceeds the cap, replacing it with a truncation marker.
func SanitizeAdditionalData(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	clean := make(map[string]any, len(data))
	for k, v := range data {
		key := SanitizeText(k, 100)
		if key == "" {
			continue
		}
		if s, ok := v.(string); ok {
			clean[key] = SanitizeText(s, MaxAdditionalDataLen)
		} else {
			clean[key] = v
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return map[string]any{"error": "serialization failed"}
	}
	if len(raw) > MaxAdditionalDataLen {
		return map[string]any{"truncated": true, "original_size": len(raw)}
	}
	return clean
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
