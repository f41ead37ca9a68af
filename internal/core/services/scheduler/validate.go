package scheduler

import (
	"fmt"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
)

// Validate checks SchedulerOptions after defaults have been applied.
func Validate(opts *domain.SchedulerOptions) error {
	if opts.MaxCount <= 0 {
		return errors.NewValidationError("maxCount", opts.MaxCount, fmt.Errorf("max count must be greater than 0"))
	}

	if opts.IdleTimeout <= 0 {
		return errors.NewValidationError(
			"idleTimeout", opts.IdleTimeout, fmt.Errorf("idle timeout must be positive, got %s", opts.IdleTimeout),
		)
	}

	if opts.PollInterval <= 0 {
		return errors.NewValidationError(
			"pollInterval", opts.PollInterval, fmt.Errorf("poll interval must be positive, got %s", opts.PollInterval),
		)
	}

	switch opts.AdvancePolicy {
	case domain.AdvanceAlways, domain.AdvanceOnSuccess:
	default:
		return errors.NewValidationError(
			"advancePolicy", opts.AdvancePolicy, fmt.Errorf("unsupported advance policy %d", opts.AdvancePolicy),
		)
	}

	return nil
}
