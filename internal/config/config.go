package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/bridgectl/internal/bridge"
)

// BridgeConfig is the bridge profile loaded from TOML: the knobs of the
// chain-load flow itself, independent of which image it runs against.
type BridgeConfig struct {
	Arch            string `toml:"arch"`
	DriverNamespace string `toml:"driver_namespace"`
	Retries         int    `toml:"retries"`
	RetryDelay      string `toml:"retry_delay"`
	SameDiskCheck   bool   `toml:"same_disk_check"`
	WaitOnFailure   bool   `toml:"wait_on_failure"`
	SecureBoot      int    `toml:"secure_boot"`
}

// DefaultBridgeConfig mirrors the orchestrator defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		DriverNamespace: bridge.DefaultDriverNamespace,
		Retries:         bridge.DefaultRetries,
		RetryDelay:      bridge.DefaultRetryDelay.String(),
		SameDiskCheck:   true,
		WaitOnFailure:   false,
	}
}

// LoadBridgeConfig reads a TOML profile, filling absent fields with defaults.
func LoadBridgeConfig(path string) (BridgeConfig, error) {
	cfg := DefaultBridgeConfig()
	if err := loadToml(path, &cfg); err != nil {
		return BridgeConfig{}, err
	}
	if err := ValidateBridgeConfig(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateBridgeConfig(cfg BridgeConfig) error {
	if cfg.Retries < 0 {
		return fmt.Errorf("config retries must not be negative")
	}
	if d, err := cfg.Delay(); err != nil {
		return err
	} else if d < 0 {
		return fmt.Errorf("config retry_delay must not be negative")
	}
	if strings.ContainsAny(cfg.DriverNamespace, `\/`) {
		return fmt.Errorf("config driver_namespace must be a single path component")
	}
	return nil
}

// Delay parses the retry delay duration.
func (c BridgeConfig) Delay() (time.Duration, error) {
	raw := strings.TrimSpace(c.RetryDelay)
	if raw == "" {
		return bridge.DefaultRetryDelay, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config retry_delay invalid: %w", err)
	}
	return d, nil
}

// Options converts the profile into orchestrator options.
func (c BridgeConfig) Options() ([]bridge.Option, error) {
	delay, err := c.Delay()
	if err != nil {
		return nil, err
	}
	return []bridge.Option{
		bridge.WithArch(c.Arch),
		bridge.WithDriverNamespace(c.DriverNamespace),
		bridge.WithRetries(c.Retries),
		bridge.WithRetryDelay(delay),
		bridge.WithSameDiskCheck(c.SameDiskCheck),
		bridge.WithWaitOnFailure(c.WaitOnFailure),
	}, nil
}
