package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/config"
)

type toolConfig struct {
	Image      string
	Arch       string
	SecureBoot int
	Bridge     config.BridgeConfig
}

type fileConfig struct {
	Image         string `toml:"image"`
	Arch          string `toml:"arch"`
	SecureBoot    int    `toml:"secure_boot"`
	BridgeProfile string `toml:"bridge_profile"`
}

func defaultToolConfig() toolConfig {
	return toolConfig{
		Arch:   bridge.ArchTag(runtime.GOARCH),
		Bridge: config.DefaultBridgeConfig(),
	}
}

func loadToolConfig(path string) (toolConfig, error) {
	cfg := defaultToolConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return toolConfig{}, fmt.Errorf("load bridgectl config: %w", err)
	}

	if meta.IsDefined("image") {
		cfg.Image = strings.TrimSpace(raw.Image)
	}
	if meta.IsDefined("arch") {
		arch := strings.TrimSpace(raw.Arch)
		if arch != "" {
			cfg.Arch = arch
		}
	}
	if meta.IsDefined("secure_boot") {
		cfg.SecureBoot = raw.SecureBoot
	}
	if meta.IsDefined("bridge_profile") {
		profile, err := config.LoadBridgeConfig(strings.TrimSpace(raw.BridgeProfile))
		if err != nil {
			return toolConfig{}, err
		}
		cfg.Bridge = profile
	}

	return cfg, nil
}
