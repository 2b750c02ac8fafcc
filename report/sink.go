package report

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
)

// Sink accepts a whole table and replaces whatever target held before
type Sink interface {
	Write(ctx context.Context, target string, table Table) error
}

// WriteResult tells a success on attempt N apart from exhaustion
type WriteResult struct {
	Attempts int
	Err      error
}

// OK reports whether the table was written
func (r WriteResult) OK() bool {
	return r.Err == nil
}

// Writer retries a sink a fixed number of times
type Writer struct {
	sink     Sink
	attempts int
	wait     time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      logrus.FieldLogger
}

// NewWriter wraps sink; attempts <= 0 means one attempt
func NewWriter(sink Sink, attempts int, wait time.Duration, log logrus.FieldLogger) *Writer {
	if attempts <= 0 {
		attempts = 1
	}
	return &Writer{
		sink:     sink,
		attempts: attempts,
		wait:     wait,
		sleep:    helpers.SleepContext,
		log:      log,
	}
}

// SetSleeper replaces the wait function
func (w *Writer) SetSleeper(s func(ctx context.Context, d time.Duration) error) {
	w.sleep = s
}

// Write delivers table to target. It does not log the final outcome; the
// caller logs the returned result once.
func (w *Writer) Write(ctx context.Context, target string, table Table) WriteResult {
	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		err := w.sink.Write(ctx, target, table)
		if err == nil {
			return WriteResult{Attempts: attempt}
		}
		lastErr = err
		w.log.WithFields(logrus.Fields{
			"target":  target,
			"attempt": attempt,
		}).WithError(err).Warn("sink write failed")

		if attempt == w.attempts {
			break
		}
		if err := w.sleep(ctx, w.wait); err != nil {
			return WriteResult{Attempts: attempt, Err: err}
		}
	}
	return WriteResult{
		Attempts: w.attempts,
		Err:      fmt.Errorf("write %s: giving up after %d attempts: %w", target, w.attempts, lastErr),
	}
}
