package models

import "time"

// Error type values after server-side classification.
const (
	TypeJavaScriptError    = "javascript_error"
	TypeUnhandledRejection = "unhandled_rejection"
	TypeConsoleError       = "console_error"
	TypeConsoleWarning     = "console_warning"
	TypeAjaxError          = "ajax_error"
	TypeFetchError         = "fetch_error"
	TypeResourceError      = "resource_error"
	TypeLoginTimeout       = "login_timeout"
	TypePerformance        = "performance"
)

// Login event types. Logins are stored in the same table as errors so the
// IP correlation and retention machinery applies to them uniformly.
const (
	TypeLoginSuccess           = "login_success"
	TypeLoginFailedValidUser   = "login_failed_valid_user"
	TypeLoginFailedInvalidUser = "login_failed_invalid_user"
	TypeLoginFailedEmpty       = "login_failed_empty"
)

// LoginEventTypes is the set of error_type values that represent login events.
var LoginEventTypes = []string{
	TypeLoginSuccess,
	TypeLoginFailedValidUser,
	TypeLoginFailedInvalidUser,
	TypeLoginFailedEmpty,
}

// ErrorRecord represents one captured client error event. Timestamps are
// server-assigned; line/column and the user id fields are optional.
type ErrorRecord struct {
	ID               int64          `db:"id"                 json:"id"`
	Timestamp        time.Time      `db:"timestamp"          json:"timestamp"`
	ErrorType        string         `db:"error_type"         json:"error_type"`
	ErrorMessage     string         `db:"error_message"      json:"error_message"`
	ErrorSource      string         `db:"error_source"       json:"error_source,omitempty"`
	ErrorLine        *int           `db:"error_line"         json:"error_line,omitempty"`
	ErrorColumn      *int           `db:"error_column"       json:"error_column,omitempty"`
	StackTrace       string         `db:"stack_trace"        json:"stack_trace,omitempty"`
	UserAgent        string         `db:"user_agent"         json:"user_agent,omitempty"`
	PageURL          string         `db:"page_url"           json:"page_url,omitempty"`
	UserIP           string         `db:"user_ip"            json:"user_ip,omitempty"`
	UserID           *int64         `db:"user_id"            json:"user_id,omitempty"`
	AssociatedUserID *int64         `db:"associated_user_id" json:"associated_user_id,omitempty"`
	SessionID        string         `db:"session_id"         json:"session_id,omitempty"`
	IsLoginPage      bool           `db:"is_login_page"      json:"is_login_page"`
	AdditionalData   map[string]any `db:"additional_data"    json:"additional_data,omitempty"`
}

// IsLoginEvent reports whether the record is a login event rather than a
// captured browser error.
func (r *ErrorRecord) IsLoginEvent() bool {
	for _, t := range LoginEventTypes {
		if r.ErrorType == t {
			return true
		}
	}
	return false
}
