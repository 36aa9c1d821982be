// Package retrier wraps fallible control-plane RPC attempts with a bounded
// linear-backoff retry policy. Only connection-level faults are retried;
// anything the peer answered deliberately is returned to the caller at once.
package retrier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultAttempts = 20
	DefaultDelay    = 100 * time.Millisecond
)

var retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ric_sdk_retry_attempts_total",
	Help: "Retried control-plane RPC attempts, by operation.",
}, []string{"operation"})

type Retrier struct {
	attempts uint
	delay    time.Duration
}

func New(attempts uint, delay time.Duration) *Retrier {
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Retrier{attempts: attempts, delay: delay}
}

// ExhaustedError is returned when every attempt failed with a transient
// fault. Last holds the final attempt's error.
type ExhaustedError struct {
	Op       string
	Attempts uint
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s exhausted %d retry attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs fn up to the configured number of attempts, sleeping delay*k
// before attempt k. The first retry happens immediately. A non-transient
// error aborts the loop and is returned as-is.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(
		func() error {
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.DelayType(LinearDelay(r.delay)),
		retry.RetryIf(Transient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			retryAttempts.WithLabelValues(op).Inc()
			log.Warn().Err(err).Uint("attempt", attempt).Str("operation", op).
				Msg("transient failure, retrying")
		}),
	)
	if err == nil {
		return nil
	}
	if Transient(err) {
		return &ExhaustedError{Op: op, Attempts: r.attempts, Last: err}
	}
	return err
}

// LinearDelay returns a retry-go delay function sleeping base*n after the
// n-th failed attempt (zero-based), so the first retry is immediate.
func LinearDelay(base time.Duration) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		return base * time.Duration(n)
	}
}

// Transient reports whether err looks like a connection-level fault worth
// retrying, as opposed to a deliberate protocol answer from the peer.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
