// internal/resilience/wrapper.go
package resilience

import (
	"context"
	"errors"
	"time"

	"notification-dispatch/internal/channels"
	"notification-dispatch/internal/common/config"
	stderrors "notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"

	"github.com/sony/gobreaker"
)

// Result is the structured outcome of a guarded channel call. Failures carry
// a reason code instead of surfacing as an error so the caller can persist
// an accurate failure reason.
type Result struct {
	OK         bool
	ExternalID string
	ReasonCode stderrors.ErrorCode
	Retryable  bool
	Err        error
}

// Wrapper applies circuit breaker + retry + timeout around one channel
// sender. One instance per channel, independently tuned.
type Wrapper struct {
	sender  channels.Sender
	breaker *gobreaker.CircuitBreaker
	cfg     config.ResilienceConfig
	log     logger.Logger

	// sleep is swappable in tests to avoid real retry waits
	sleep func(time.Duration)
}

func NewWrapper(sender channels.Sender, cfg config.ResilienceConfig, log logger.Logger) *Wrapper {
	name := string(sender.Channel())

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenProbes,
		// gobreaker keeps a count-reset interval rather than a call-bounded
		// window; the reset period stands in for the configured window size.
		Interval: time.Duration(cfg.SlidingWindow) * time.Second,
		Timeout:  cfg.OpenWait,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumCalls {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRateThreshold
		},
		IsSuccessful: func(err error) bool {
			// Permanent rejections (bad address) are the message's fault,
			// not the provider's; they must not trip the breaker.
			return err == nil || !stderrors.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(stateGaugeValue(to))
			log.Warn("breaker state change", map[string]interface{}{
				"channel": name, "from": from.String(), "to": to.String(),
			})
		},
	}

	return &Wrapper{
		sender:  sender,
		breaker: gobreaker.NewCircuitBreaker(settings),
		cfg:     cfg,
		log:     log.WithFields(map[string]interface{}{"component": "resilience", "channel": name}),
		sleep:   time.Sleep,
	}
}

// Deliver runs one guarded delivery. Retries consume attempts only while the
// breaker is closed or half-open; an open breaker short-circuits immediately
// without reaching the sender.
func (w *Wrapper) Deliver(ctx context.Context, msg channels.Message) Result {
	channel := string(w.sender.Channel())

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxRetryAttempts; attempt++ {
		metrics.RetryAttempts.WithLabelValues(channel).Inc()

		out, err := w.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
			defer cancel()
			res, err := w.sender.Send(callCtx, msg)
			if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, stderrors.NewTimeoutError(channel, w.cfg.CallTimeout)
			}
			return res, err
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{
				ReasonCode: stderrors.ErrCodeCircuitOpen,
				Retryable:  true,
				Err:        stderrors.NewCircuitOpenError(channel),
			}
		}
		if err == nil {
			res := out.(channels.SendResult)
			return Result{OK: true, ExternalID: res.ExternalID}
		}

		lastErr = err
		if !stderrors.IsRetryable(err) {
			return Result{
				ReasonCode: stderrors.CodeOf(err),
				Retryable:  false,
				Err:        err,
			}
		}

		w.log.Warn("channel call failed", map[string]interface{}{
			"attempt": attempt, "maxAttempts": w.cfg.MaxRetryAttempts, "error": err.Error(),
		})

		if attempt < w.cfg.MaxRetryAttempts {
			w.sleep(w.cfg.RetryWait)
		}
	}

	if stderrors.CodeOf(lastErr) == stderrors.ErrCodeTimeout {
		return Result{
			ReasonCode: stderrors.ErrCodeTimeout,
			Retryable:  true,
			Err:        lastErr,
		}
	}
	return Result{
		ReasonCode: stderrors.ErrCodeRetryExhausted,
		Retryable:  true,
		Err:        stderrors.NewRetryExhaustedError(channel, w.cfg.MaxRetryAttempts, lastErr),
	}
}

// State exposes the breaker state for health reporting.
func (w *Wrapper) State() gobreaker.State {
	return w.breaker.State()
}

func stateGaugeValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
