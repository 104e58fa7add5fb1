package ingest

import (
	"regexp"
	"strings"

	"github.com/errsink/errsink/pkg/models"
)

// errorTypeMap normalizes client-reported error types into stored
// categories. Unrecognized types pass through unchanged.
var errorTypeMap = map[string]string{
	"error":              models.TypeJavaScriptError,
	"unhandledrejection": models.TypeUnhandledRejection,
	"console.error":      models.TypeConsoleError,
	"console.warn":       models.TypeConsoleWarning,
	"ajax_error":         models.TypeAjaxError,
	"fetch_error":        models.TypeFetchError,
	"resource_error":     models.TypeResourceError,
	"login_timeout":      models.TypeLoginTimeout,
	"syntax_error":       models.TypeJavaScriptError,
	"type_error":         models.TypeJavaScriptError,
	"reference_error":    models.TypeJavaScriptError,
}

// ClassifyErrorType lowercases and normalizes a client-reported error type.
func ClassifyErrorType(errorType string) string {
	t := strings.ToLower(strings.TrimSpace(errorType))
	if mapped, ok := errorTypeMap[t]; ok {
		return mapped
	}
	return t
}

// authKeywords mark javascript errors as critical when present in the message.
var authKeywords = []string{"auth", "login", "password", "credential", "token"}

// IsCritical reports whether a record needs side-channel operator attention:
// login timeouts always, AJAX failures on a login page, and javascript
// errors whose message touches authentication.
func IsCritical(rec *models.ErrorRecord) bool {
	switch rec.ErrorType {
	case models.TypeLoginTimeout:
		return true
	case models.TypeAjaxError:
		return rec.IsLoginPage
	case models.TypeJavaScriptError:
		msg := strings.ToLower(rec.ErrorMessage)
		for _, kw := range authKeywords {
			if strings.Contains(msg, kw) {
				return true
			}
		}
	}
	return false
}

// loginPathRes identify login views from a page URL.
var loginPathRes = []*regexp.Regexp{
	regexp.MustCompile(`wp-login\.php`),
	regexp.MustCompile(`wp-admin`),
	regexp.MustCompile(`/login`),
	regexp.MustCompile(`/signin`),
	regexp.MustCompile(`/admin`),
}

// IsLoginPageURL reports whether url looks like a login or admin view.
func IsLoginPageURL(url string) bool {
	if url == "" {
		return false
	}
	for _, re := range loginPathRes {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
