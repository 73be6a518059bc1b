package store

import "time"

// Option configures a store
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for event timestamps and the current date
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
