package email

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
)

// BreakerConfig holds the circuit breaker settings for outbound email.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that opens the circuit once
	// MinRequests have been seen.
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "ses",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerSender fails fast while SES is failing. It lives for the life of the
// container, so it spans invocations.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewBreakerSender(next Sender, cfg BreakerConfig, logger *zap.Logger) *BreakerSender {
	logger = logger.Named("email")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A message nobody can receive says nothing about SES health.
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.IsValidation(err)
		},
	})
	return &BreakerSender{next: next, breaker: cb, logger: logger}
}

func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.External(apperrors.CodeEmailSendFailed, "email delivery temporarily unavailable").
			WithOperation("SendEmail").
			WithDetails(err.Error()).
			WithRetryable(true).
			WithCause(err).
			Build()
	}
	return err
}

// State reports the breaker state, for logging and tests.
func (b *BreakerSender) State() gobreaker.State {
	return b.breaker.State()
}
