package notify

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/nhle/farmfresh-notify/internal/gateway"
)

// WritePolicy controls how optimistic local mutations are echoed to the
// backend. Under every policy the local state is kept as-is when the remote
// write finally fails: there is no rollback.
type WritePolicy int

const (
	// WriteBestEffort makes a single attempt and logs a failure.
	WriteBestEffort WritePolicy = iota

	// WriteRetry retries with exponential backoff for a bounded number of
	// attempts before logging the failure.
	WriteRetry
)

func (p WritePolicy) String() string {
	switch p {
	case WriteRetry:
		return "retry"
	default:
		return "best_effort"
	}
}

// ParseWritePolicy parses the configuration spelling of a policy.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best_effort", "best-effort", "besteffort":
		return WriteBestEffort, nil
	case "retry":
		return WriteRetry, nil
	default:
		return WriteBestEffort, fmt.Errorf("unknown write policy %q", s)
	}
}

// WriteErrorHandler is called after a remote write has failed for good.
type WriteErrorHandler func(op, id string, err error)

// writeJob is one queued remote write.
type writeJob struct {
	op string
	id string
	fn func(ctx context.Context) error
}

// remoteWriter runs remote writes one at a time, in submission order, on a
// background goroutine. Submitting never blocks the caller.
type remoteWriter struct {
	policy          WritePolicy
	maxRetries      uint64
	initialInterval time.Duration
	logger          *zap.Logger
	onError         WriteErrorHandler

	mu      gosync.Mutex
	queue   []writeJob
	started bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	pending gosync.WaitGroup
}

func newRemoteWriter(policy WritePolicy, maxRetries uint64, logger *zap.Logger) *remoteWriter {
	return &remoteWriter{
		policy:          policy,
		maxRetries:      maxRetries,
		initialInterval: 500 * time.Millisecond,
		logger:          logger,
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
}

// Submit queues a write. Writes submitted after Close are dropped and logged.
func (w *remoteWriter) Submit(op, id string, fn func(ctx context.Context) error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("dropping remote write after close", zap.String("op", op), zap.String("id", id))
		return
	}
	w.queue = append(w.queue, writeJob{op: op, id: id, fn: fn})
	w.pending.Add(1)
	if !w.started {
		w.started = true
		go w.run()
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until every submitted write has completed.
func (w *remoteWriter) Wait() {
	w.pending.Wait()
}

// Close drains queued writes and stops the worker.
func (w *remoteWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	started := w.started
	w.mu.Unlock()

	if started {
		close(w.done)
	}
	w.pending.Wait()
}

func (w *remoteWriter) run() {
	for {
		for {
			job, ok := w.next()
			if !ok {
				break
			}
			w.execute(job)
		}

		select {
		case <-w.wake:
		case <-w.done:
			for {
				job, ok := w.next()
				if !ok {
					return
				}
				w.execute(job)
			}
		}
	}
}

func (w *remoteWriter) next() (writeJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		return writeJob{}, false
	}
	job := w.queue[0]
	w.queue[0] = writeJob{}
	w.queue = w.queue[1:]
	return job, true
}

func (w *remoteWriter) execute(job writeJob) {
	defer w.pending.Done()

	// Remote echoes carry no deadline of their own; the HTTP client timeout
	// bounds each attempt.
	ctx := context.Background()

	var err error
	switch w.policy {
	case WriteRetry:
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = w.initialInterval
		attempts := 0
		err = backoff.Retry(func() error {
			attempts++
			err := job.fn(ctx)
			if err != nil && gateway.IsAuthError(err) {
				return backoff.Permanent(err)
			}
			return err
		}, backoff.WithMaxRetries(policy, w.maxRetries))
		if err != nil {
			err = fmt.Errorf("after %d attempts: %w", attempts, err)
		}
	default:
		err = job.fn(ctx)
	}

	if err == nil {
		return
	}

	w.logger.Error("remote notification write failed; keeping local state",
		zap.String("op", job.op),
		zap.String("id", job.id),
		zap.Stringer("policy", w.policy),
		zap.Error(err),
	)
	if w.onError != nil {
		w.onError(job.op, job.id, err)
	}
}
