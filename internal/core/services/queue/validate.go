package queue

import (
	"fmt"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
)

var errMissingOptions = fmt.Errorf("queue options are required")

// Validate checks the parts of QueueOptions owned by neither the store nor
// the scheduler. Those validate their own sections.
func Validate(opts *domain.QueueOptions) error {
	if opts.Store == nil {
		return errors.NewValidationError("store", nil, fmt.Errorf("store options are required"))
	}
	return nil
}
