// Package tunables holds the process-wide spin threshold consulted by the
// adaptive mutex before it commits to queue-based waiting.
//
// The threshold is set at most once, normally during program start, either
// from the GOQLOCK_TUNABLES environment variable or by calling
// TrySetSpinThreshold before any lock is used concurrently. Readers never take
// a lock; the value is published through an atomic.
//
//	GOQLOCK_TUNABLES=mutex.spin_count=200 ./server
package tunables

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	// DefaultSpinCount is the number of probes made before queueing when no
	// tunable overrides it.
	DefaultSpinCount = 100
	// MinSpinCount disables probing: every contended acquisition queues at once.
	MinSpinCount = 0
	// MaxSpinCount is the largest accepted threshold.
	MaxSpinCount = 0x7fff

	// EnvVar names the environment variable read by LoadEnv.
	EnvVar = "GOQLOCK_TUNABLES"

	spinCountKey = "mutex.spin_count"
)

var (
	// ErrAlreadySet is returned when the threshold has already been overridden.
	ErrAlreadySet = errors.New("spin threshold already set")
	// ErrOutOfRange is returned for a threshold outside [MinSpinCount, MaxSpinCount].
	ErrOutOfRange = errors.New("spin threshold out of range")
	// ErrMalformed is returned when the mutex.spin_count entry cannot be parsed.
	ErrMalformed = errors.New("malformed tunable")
)

// Config is a settable-once spin threshold.
type Config struct {
	spinCount atomic.Int32
	set       atomic.Bool
}

// New returns a Config initialized to DefaultSpinCount.
func New() *Config {
	c := new(Config)
	c.spinCount.Store(DefaultSpinCount)
	return c
}

// Default is the process-wide configuration. It is loaded from EnvVar when
// the package is initialized.
var Default = New()

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.Default())
	if err := Default.LoadEnv(); err != nil {
		lg().Warn("ignoring lock tunables", slog.String("env", EnvVar), slog.Any("error", err))
	}
}

// SetLogger replaces the logger used to report configuration events.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger.Store(l)
}

func lg() *slog.Logger { return logger.Load() }

// SpinCount returns the current threshold.
func (c *Config) SpinCount() int { return int(c.spinCount.Load()) }

// TrySetSpinThreshold overrides the threshold. Only the first successful call
// takes effect; later calls return ErrAlreadySet. A value outside
// [MinSpinCount, MaxSpinCount] is rejected without consuming the override.
func (c *Config) TrySetSpinThreshold(v int) error {
	if v < MinSpinCount || v > MaxSpinCount {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, v, MinSpinCount, MaxSpinCount)
	}
	if !c.set.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: current value %d", ErrAlreadySet, c.SpinCount())
	}
	c.spinCount.Store(int32(v))
	lg().Debug("mutex spin threshold set", slog.Int("spin_count", v))
	return nil
}

// TrySetSpinThreshold sets the threshold of Default.
func TrySetSpinThreshold(v int) error { return Default.TrySetSpinThreshold(v) }

// Apply parses a colon-separated list of name=value pairs and applies the
// ones this package understands. Entries for other names are skipped, even
// when they are malformed.
func (c *Config) Apply(src string) error {
	for _, field := range strings.Split(src, ":") {
		if field == "" {
			continue
		}
		name, value, ok := strings.Cut(field, "=")
		name = strings.TrimSpace(name)
		if !ok {
			if name == spinCountKey {
				return fmt.Errorf("%w: %q has no value", ErrMalformed, field)
			}
			lg().Debug("skipping malformed tunable", slog.String("entry", field))
			continue
		}
		if name != spinCountKey {
			lg().Debug("skipping unknown tunable", slog.String("name", name))
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
		}
		if err := c.TrySetSpinThreshold(n); err != nil {
			return fmt.Errorf("applying %s: %w", name, err)
		}
	}
	return nil
}

// LoadEnv applies the tunables found in EnvVar, if it is set.
func (c *Config) LoadEnv() error {
	src, ok := os.LookupEnv(EnvVar)
	if !ok {
		return nil
	}
	return c.Apply(src)
}
