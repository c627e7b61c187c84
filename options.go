package samba

import "time"

// Config holds Monitor settings.
type Config struct {
	// ReadTimeout bounds a single reply from the monitor.
	ReadTimeout time.Duration

	// FlashTimeout bounds a single flash controller command.
	FlashTimeout time.Duration

	// PollInterval is the pause between flash status reads.
	PollInterval time.Duration

	// Verify reads every page back after writing it.
	Verify bool
}

func defaultConfig() Config {
	return Config{
		ReadTimeout:  2 * time.Second,
		FlashTimeout: 5 * time.Second,
		PollInterval: time.Millisecond,
	}
}

// Option configures a Monitor.
type Option func(*Config)

// WithReadTimeout bounds each reply. Non-positive values are ignored.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReadTimeout = timeout
		}
	}
}

// WithFlashTimeout bounds each flash controller command. Non-positive values
// are ignored.
func WithFlashTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.FlashTimeout = timeout
		}
	}
}

// WithPollInterval sets the pause between flash status reads.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval >= 0 {
			c.PollInterval = interval
		}
	}
}

// WithVerify enables read-back of every written page.
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}
