// Package circuitbreaker wraps sony/gobreaker with the settings used for calls
// to external services.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Settings configures a breaker. Zero values fall back to defaults.
type Settings struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval after which closed-state counts are reset.
	Interval time.Duration `mapstructure:"interval"`
	// Timeout spent open before probing again.
	Timeout time.Duration `mapstructure:"timeout"`
	// ConsecutiveFailures that trip the breaker.
	ConsecutiveFailures uint32 `mapstructure:"consecutive_failures"`
}

func (s Settings) withDefaults() Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	return s
}

// New creates a breaker named name. isSuccessful decides which errors count
// as failures; nil counts every error.
func New[T any](name string, s Settings, isSuccessful func(error) bool, log *zap.Logger) *gobreaker.CircuitBreaker[T] {
	s = s.withDefaults()
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			}
		},
	})
}
