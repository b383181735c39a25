package impl

import (
	"log/slog"
	"time"

	"sessionlimit/internal/events"
	"sessionlimit/internal/lock"
)

type options struct {
	now    func() time.Time
	logger *slog.Logger
	events events.Publisher
	locks  lock.Locker
}

type Option func(*options)

// WithClock replaces the time source. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.events = p }
}

// WithLocker sets the per-user serialization point. Defaults to an
// in-process lock, which is only correct for a single instance.
func WithLocker(l lock.Locker) Option {
	return func(o *options) { o.locks = l }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.events == nil {
		o.events = events.LogPublisher{Logger: o.logger}
	}
	if o.locks == nil {
		o.locks = lock.NewLocal()
	}
	return o
}

func (o options) nowTime() time.Time {
	return o.now().UTC()
}
