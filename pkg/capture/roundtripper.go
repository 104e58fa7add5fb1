package capture

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const snippetLimit = 500

// reportingTransport wraps an http.RoundTripper and reports failed
// requests as fetch_error events. Requests to the reporter's own ingest
// endpoint are never reported, or a failing collector would feed itself.
type reportingTransport struct {
	inner    http.RoundTripper
	reporter *Reporter
	exclude  string
}

// NewRoundTripper wraps inner (nil means http.DefaultTransport) so that
// transport failures and error responses are captured. Exclude is the
// ingest endpoint URL.
func NewRoundTripper(inner http.RoundTripper, r *Reporter, exclude string) http.RoundTripper {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &reportingTransport{inner: inner, reporter: r, exclude: exclude}
}

func (t *reportingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if t.exclude != "" && strings.HasPrefix(req.URL.String(), t.exclude) {
		return resp, err
	}

	if err != nil {
		t.reporter.Report(Event{
			ErrorType:    "fetch_error",
			ErrorMessage: fmt.Sprintf("%s %s failed: %v", req.Method, req.URL, err),
			ErrorSource:  req.URL.String(),
			AdditionalData: map[string]any{
				"method": req.Method,
			},
		})
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := drainSnippet(resp)
		t.reporter.Report(Event{
			ErrorType:    "fetch_error",
			ErrorMessage: fmt.Sprintf("%s %s returned %d", req.Method, req.URL, resp.StatusCode),
			ErrorSource:  req.URL.String(),
			AdditionalData: map[string]any{
				"method":   req.Method,
				"status":   resp.StatusCode,
				"response": snippet,
			},
		})
	}
	return resp, nil
}

// drainSnippet reads the leading response bytes for context and splices
// them back so the caller still sees the full body.
func drainSnippet(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	head := make([]byte, snippetLimit)
	n, _ := io.ReadFull(resp.Body, head)
	head = head[:n]
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), resp.Body), resp.Body}
	return string(head)
}
