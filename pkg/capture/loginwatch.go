package capture

import (
	"fmt"
	"sync"
	"time"
)

// LoginWatch raises a login_timeout event when an armed login attempt does
// not complete within the configured timeout. The host application arms it
// when a login form is submitted and disarms it on success or navigation.
type LoginWatch struct {
	reporter *Reporter
	timeout  time.Duration
	// probe reports whether the login UI still looks stuck (the spinner
	// check); nil means unknown.
	probe func() bool

	mu       sync.Mutex
	timer    *time.Timer
	username string
}

// NewLoginWatch creates a watch with the given timeout (ten seconds when
// unset).
func NewLoginWatch(r *Reporter, timeout time.Duration, probe func() bool) *LoginWatch {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LoginWatch{reporter: r, timeout: timeout, probe: probe}
}

// Arm starts (or restarts) the timeout clock for one login attempt.
func (w *LoginWatch) Arm(username string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.username = username
	w.timer = time.AfterFunc(w.timeout, w.fire)
}

// Disarm cancels the pending timeout, if any.
func (w *LoginWatch) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.username = ""
}

func (w *LoginWatch) fire() {
	w.mu.Lock()
	if w.timer == nil {
		w.mu.Unlock()
		return
	}
	username := w.username
	w.timer = nil
	w.username = ""
	w.mu.Unlock()

	stuck := false
	if w.probe != nil {
		stuck = w.probe()
	}
	w.reporter.Report(Event{
		ErrorType:    "login_timeout",
		ErrorMessage: fmt.Sprintf("Login attempt did not complete within %s", w.timeout),
		AdditionalData: map[string]any{
			"attempted_username": username,
			"spinner_detected":   stuck,
		},
	})
}
