package scheduler

import (
	"time"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
)

const (
	DefaultMaxCount     = 100
	DefaultIdleTimeout  = time.Duration(time.Second * 5) // 5s
	DefaultPollInterval = time.Duration(time.Second * 1) // 1s
)

// DefaultOptions returns SchedulerOptions with the stock idle shutdown and
// poll cadence.
func DefaultOptions() *domain.SchedulerOptions {
	return &domain.SchedulerOptions{
		MaxCount:      DefaultMaxCount,
		IdleTimeout:   DefaultIdleTimeout,
		PollInterval:  DefaultPollInterval,
		AdvancePolicy: domain.AdvanceAlways,
	}
}

func prepareDefaults(opts *domain.SchedulerOptions) *domain.SchedulerOptions {
	if opts.MaxCount == 0 {
		opts.MaxCount = DefaultMaxCount
	}

	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return opts
}
