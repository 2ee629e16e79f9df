package adaptive

import "github.com/ahrav/go-qlock/tunables"

// StrictFIFO, passed to WithQueueTimeout, keeps queued goroutines waiting
// until they are granted the lock instead of parking.
const StrictFIFO = -1

// Option configures a Mutex created with New.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options holds the settings applied by New.
type Options struct {
	// Config supplies the probe threshold. Defaults to tunables.Default.
	Config *tunables.Config

	// QueueTimeout is the number of polls a queued goroutine makes before it
	// leaves the queue and parks on the Blocker. Zero derives it from the
	// config's spin count. StrictFIFO (any negative value) keeps it queued
	// until granted.
	QueueTimeout int

	// Blocker parks goroutines that left the queue. Defaults to a
	// channel-broadcast blocker.
	Blocker Blocker
}

// WithOptions replaces all options at once.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithConfig sets the configuration the probe threshold is read from.
func WithConfig(config *tunables.Config) Option {
	return func(opts *Options) {
		opts.Config = config
	}
}

// WithQueueTimeout sets how long a queued goroutine polls before parking.
func WithQueueTimeout(spins int) Option {
	return func(opts *Options) {
		opts.QueueTimeout = spins
	}
}

// WithBlocker sets the fallback blocking primitive.
func WithBlocker(blocker Blocker) Option {
	return func(opts *Options) {
		opts.Blocker = blocker
	}
}
