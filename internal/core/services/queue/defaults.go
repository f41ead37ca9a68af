package queue

import (
	"github.com/iamNilotpal/dataqueue/internal/adapters/codec"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/internal/core/services/scheduler"
	"github.com/iamNilotpal/dataqueue/pkg/logger"
)

const DefaultServiceName = "dataqueue"

func prepareDefaults(opts *domain.QueueOptions) *domain.QueueOptions {
	if opts.Format == "" {
		opts.Format = codec.FormatJSON
	}

	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.DefaultOptions()
	}

	if opts.Logger == nil {
		opts.Logger = logger.New(DefaultServiceName)
	}

	return opts
}
