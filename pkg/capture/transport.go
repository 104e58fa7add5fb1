package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors for delivery failures.
var (
	ErrUnreachable    = errors.New("ingest endpoint unreachable")
	ErrSendTimeout    = errors.New("send timed out")
	ErrServerRejected = errors.New("ingest endpoint rejected event")
)

// Sender delivers one event to the collector.
type Sender interface {
	Send(ctx context.Context, e Event) error
}

// noopSender discards events. It stands in when no Sender is configured so
// the reporter stays inert instead of panicking in its worker.
type noopSender struct{}

func (noopSender) Send(context.Context, Event) error { return nil }

// HTTPSender posts events to the ingestion endpoint.
type HTTPSender struct {
	endpoint string
	token    string
	userID   int64
	client   *http.Client
}

// NewHTTPSender creates a sender for the given ingest URL. Token is the
// shared capture token; userID identifies the reporting user when known
// (zero means anonymous).
func NewHTTPSender(endpoint, token string, userID int64, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSender{
		endpoint: endpoint,
		token:    token,
		userID:   userID,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the ingest URL, used to keep transport hooks from
// reporting failures of their own delivery requests.
func (s *HTTPSender) Endpoint() string { return s.endpoint }

func (s *HTTPSender) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("X-Errsink-Token", s.token)
	}
	if s.userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(s.userID, 10))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return classifySendError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrServerRejected, resp.StatusCode)
	}
	return nil
}

func classifySendError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
