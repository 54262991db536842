package matching

import (
	"runtime"

	"github.com/Gobusters/ectologger"
)

type options struct {
	log     ectologger.Logger
	workers int
}

// Option configures a Matcher, Detector or Reconciler
type Option func(*options)

// WithLogger sets the logger used for warnings and recovered row failures
func WithLogger(log ectologger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithWorkers sets the reconciler worker pool size. Values below 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func newOptions(opts []Option) options {
	o := options{
		log: ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o
}
