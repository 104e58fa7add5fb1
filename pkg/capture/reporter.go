package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Queue and delivery defaults.
const (
	defaultQueueCapacity = 50
	defaultDebounce      = 100 * time.Millisecond
	defaultRateLimit     = 10
	defaultRateWindow    = 60 * time.Second
	defaultSendTimeout   = 5 * time.Second
	flushMax             = 10
)

// Config tunes the reporter. Only Sender is required.
type Config struct {
	Sender        Sender
	Logger        *slog.Logger
	QueueCapacity int
	Debounce      time.Duration
	RateLimit     int
	RateWindow    time.Duration
	SendTimeout   time.Duration
}

// Reporter queues events and delivers them to the collector with exactly
// one request in flight at a time. All methods are safe for concurrent use
// and never panic; a reporter must not take its host application down.
type Reporter struct {
	sender      Sender
	logger      *slog.Logger
	capacity    int
	debounce    time.Duration
	rateLimit   int
	rateWindow  time.Duration
	sendTimeout time.Duration

	mu        sync.Mutex
	queue     []Event
	sendTimes []time.Time
	closed    bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	now func() time.Time
}

// New creates a reporter and starts its delivery worker.
func New(cfg Config) *Reporter {
	if cfg.Sender == nil {
		cfg.Sender = noopSender{}
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Reporter{
		sender:      cfg.Sender,
		logger:      cfg.Logger,
		capacity:    cfg.QueueCapacity,
		debounce:    cfg.Debounce,
		rateLimit:   cfg.RateLimit,
		rateWindow:  cfg.RateWindow,
		sendTimeout: cfg.SendTimeout,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		now:         time.Now,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Report enqueues one event. Over-limit and overflow events are dropped
// silently; the oldest queued event gives way to the newest on overflow.
func (r *Reporter) Report(e Event) {
	e.normalize()
	if e.ErrorMessage == "" {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if !r.allowLocked() {
		r.mu.Unlock()
		return
	}
	if len(r.queue) >= r.capacity {
		r.queue = r.queue[1:]
	}
	r.queue = append(r.queue, e)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// allowLocked applies the sliding-window client rate limit. Caller holds mu.
func (r *Reporter) allowLocked() bool {
	now := r.now()
	cutoff := now.Add(-r.rateWindow)
	kept := r.sendTimes[:0]
	for _, t := range r.sendTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.sendTimes = kept
	if len(r.sendTimes) >= r.rateLimit {
		return false
	}
	r.sendTimes = append(r.sendTimes, now)
	return true
}

func (r *Reporter) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case <-r.wake:
		}

		// Debounce: a burst settles before delivery starts.
		timer := time.NewTimer(r.debounce)
	settle:
		for {
			select {
			case <-r.done:
				timer.Stop()
				return
			case <-r.wake:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(r.debounce)
			case <-timer.C:
				break settle
			}
		}

		r.drain()
	}
}

// drain delivers queued events one at a time, pausing between items.
func (r *Reporter) drain() {
	for {
		e, ok := r.pop()
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
		if err := r.sender.Send(ctx, e); err != nil {
			r.logger.Debug("event delivery failed", "error_type", e.ErrorType, "error", err)
		}
		cancel()

		select {
		case <-r.done:
			return
		case <-time.After(r.debounce):
		}
	}
}

func (r *Reporter) pop() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return Event{}, false
	}
	e := r.queue[0]
	r.queue = r.queue[1:]
	return e, true
}

// Flush sends up to the last ten undelivered events, newest-biased,
// fire-and-forget. It is the teardown path; delivery errors are dropped.
func (r *Reporter) Flush(ctx context.Context) {
	r.mu.Lock()
	pending := r.queue
	if len(pending) > flushMax {
		pending = pending[len(pending)-flushMax:]
	}
	r.queue = nil
	r.mu.Unlock()

	for _, e := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := r.sender.Send(ctx, e); err != nil {
			r.logger.Debug("flush delivery failed", "error_type", e.ErrorType, "error", err)
		}
	}
}

// Close stops the worker and flushes the remaining tail with a bounded
// context. Safe to call once.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Flush(ctx)
}

func (r *Reporter) queueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
