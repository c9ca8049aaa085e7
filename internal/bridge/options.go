package bridge

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRetries and DefaultRetryDelay bound the volume-open loop; the
	// filesystem driver may still be initializing after being connected.
	DefaultRetries    = 4
	DefaultRetryDelay = 3 * time.Second

	// DefaultDriverNamespace keeps the driver lookup from latching onto a
	// user-installed driver of the same name.
	DefaultDriverNamespace = "rufus"
)

// Config holds the orchestrator configuration. Zero values are filled in by
// defaultConfig; use the options to override.
type Config struct {
	// Arch is the platform architecture tag used in driver and loader paths.
	Arch string

	// DriverNamespace is the directory under \efi holding the fs drivers.
	DriverNamespace string

	// Retries and RetryDelay bound the volume-open loop.
	Retries    int
	RetryDelay time.Duration

	// SameDiskCheck restricts discovery to partitions on the boot disk.
	// Disabled for single-device emulation.
	SameDiskCheck bool

	// WaitOnFailure blocks for a keypress before returning a failure status.
	WaitOnFailure bool

	// Sleep is the delay function for the retry loop; nil means the
	// platform's own stall.
	Sleep func(time.Duration)

	Logger zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		Arch:            ArchTag(runtime.GOARCH),
		DriverNamespace: DefaultDriverNamespace,
		Retries:         DefaultRetries,
		RetryDelay:      DefaultRetryDelay,
		SameDiskCheck:   true,
		WaitOnFailure:   true,
		Logger:          log.Logger,
	}
}

// ArchTag maps a Go architecture name onto the firmware file-name tag.
// Unrecognized names are passed through unchanged.
func ArchTag(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	case "arm64":
		return "aa64"
	case "arm":
		return "arm"
	case "riscv64":
		return "riscv64"
	case "loong64":
		return "loongarch64"
	default:
		return goarch
	}
}

// Option is a functional option for configuring the Bridge.
type Option func(*Config)

func WithArch(arch string) Option {
	return func(c *Config) {
		if arch != "" {
			c.Arch = arch
		}
	}
}

func WithDriverNamespace(ns string) Option {
	return func(c *Config) {
		if ns != "" {
			c.DriverNamespace = ns
		}
	}
}

func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.RetryDelay = delay
		}
	}
}

// WithSameDiskCheck toggles the boot-disk restriction during discovery.
func WithSameDiskCheck(enabled bool) Option {
	return func(c *Config) {
		c.SameDiskCheck = enabled
	}
}

// WithWaitOnFailure toggles the blocking keypress before a failure return.
func WithWaitOnFailure(enabled bool) Option {
	return func(c *Config) {
		c.WaitOnFailure = enabled
	}
}

// WithSleep injects the delay function used between volume-open attempts.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		c.Sleep = sleep
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
