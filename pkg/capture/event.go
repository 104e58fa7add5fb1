// Package capture is the client SDK: it collects error events from an
// application, queues them with debounce and rate limiting, and delivers
// them to the ingestion endpoint one at a time.
package capture

import (
	"fmt"
	"strings"
)

// Event is one error observation, shaped like the ingestion payload.
type Event struct {
	ErrorType      string         `json:"error_type"`
	ErrorMessage   string         `json:"error_message"`
	ErrorSource    string         `json:"error_source,omitempty"`
	ErrorLine      *int           `json:"error_line,omitempty"`
	ErrorColumn    *int           `json:"error_column,omitempty"`
	StackTrace     string         `json:"stack_trace,omitempty"`
	PageURL        string         `json:"page_url,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	IsLoginPage    *bool          `json:"is_login_page,omitempty"`
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// normalize trims and caps the fields callers control. The server applies
// the same limits again; doing it here keeps payloads small on the wire.
func (e *Event) normalize() {
	e.ErrorType = strings.TrimSpace(e.ErrorType)
	if e.ErrorType == "" {
		e.ErrorType = "error"
	}
	e.ErrorMessage = capString(strings.TrimSpace(e.ErrorMessage), 2000)
	e.StackTrace = capString(e.StackTrace, 2000)
	e.ErrorSource = capString(e.ErrorSource, 255)
	e.PageURL = capString(e.PageURL, 255)
}

func capString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

// classifyRuntimeError maps a recovered value's type name onto the wire
// error types the server understands.
func classifyRuntimeError(recovered any) string {
	name := fmt.Sprintf("%T", recovered)
	switch {
	case strings.Contains(name, "SyntaxError"):
		return "syntax_error"
	case strings.Contains(name, "TypeError"):
		return "type_error"
	case strings.Contains(name, "ReferenceError"):
		return "reference_error"
	default:
		return "error"
	}
}
