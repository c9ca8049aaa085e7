// bridgectl dry-runs the pre-boot bridge against a raw MBR disk image,
// reporting whether the medium would discover its target partition and
// chain-load the second-stage loader. Driver and loader binaries are
// simulated; partition layout, OEM IDs and the bridge flow are real.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/efi"
	"github.com/danmuck/bridgectl/internal/emulator"
	"github.com/danmuck/bridgectl/internal/logging"
)

func main() {
	logging.ConfigureRuntime()

	configPath := flag.String("config", "", "tool config file (TOML)")
	imagePath := flag.String("image", "", "raw MBR disk image to verify")
	arch := flag.String("arch", "", "architecture tag override (x64, ia32, aa64, ...)")
	secureBoot := flag.Int("secure-boot", 0, "secure boot tri-state: 0 disabled, >0 enabled, <0 setup")
	flag.Parse()

	cfg := defaultToolConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadToolConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("bridgectl")
		}
	}
	if *imagePath != "" {
		cfg.Image = *imagePath
	}
	if *arch != "" {
		cfg.Arch = *arch
	}
	if *secureBoot != 0 {
		cfg.SecureBoot = *secureBoot
	}
	if cfg.Image == "" {
		log.Fatal().Msg("bridgectl: an image is required (-image or config)")
	}

	st, err := verify(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("bridgectl")
	}
	if st.IsError() {
		log.Error().Stringer("status", st).Msg("image would not chain-load")
		os.Exit(1)
	}
	log.Info().Str("image", cfg.Image).Msg("image chain-loads")
}

func verify(cfg toolConfig) (efi.Status, error) {
	raw, err := os.ReadFile(cfg.Image)
	if err != nil {
		return efi.DeviceError, err
	}
	p, self, err := emulator.NewFromImage(raw)
	if err != nil {
		return efi.DeviceError, err
	}
	p.SetSecureBoot(cfg.SecureBoot)
	seedBinaries(p, self, cfg)

	opts, err := cfg.Bridge.Options()
	if err != nil {
		return efi.InvalidParameter, err
	}
	opts = append(opts,
		bridge.WithArch(cfg.Arch),
		bridge.WithWaitOnFailure(false),
		bridge.WithSleep(func(time.Duration) {}),
	)
	return bridge.New(p, self, opts...).Run(), nil
}

// seedBinaries registers simulated driver and loader executables so the
// verify run can exercise provisioning and chain-load against the image's
// real partition layout.
func seedBinaries(p *emulator.Platform, self efi.Handle, cfg toolConfig) {
	v, st := p.OpenProtocol(self, efi.ProtoLoadedImage, efi.AttrGet)
	if st.IsError() {
		return
	}
	bootDev := v.(*efi.LoadedImage).DeviceHandle

	loaderName := fmt.Sprintf("boot%s.efi", cfg.Arch)
	vol := &emulator.Volume{
		Label: "bridgectl-verify",
		Root: emulator.NewDir().AddDir("EFI",
			emulator.NewDir().AddDir("Boot",
				emulator.NewDir().AddFile(loaderName))),
	}
	for _, fs := range []bridge.Filesystem{bridge.FSNtfs, bridge.FSExfat} {
		driverPath := fmt.Sprintf(`\efi\%s\%s_%s.efi`,
			cfg.Bridge.DriverNamespace, fs.DriverID(), cfg.Arch)
		p.RegisterFile(bootDev, driverPath, &emulator.ImageSpec{
			CodeType: efi.BootServicesCode,
			Name:     fmt.Sprintf("simulated %s driver", fs),
			Driver:   &emulator.DriverSpec{Volume: vol},
		})
	}

	loaderPath := fmt.Sprintf(`\efi\boot\boot%s.efi`, cfg.Arch)
	for _, part := range p.Partitions() {
		p.RegisterFile(part, loaderPath, &emulator.ImageSpec{
			CodeType: efi.BootServicesCode,
			Code:     make([]byte, 4096),
		})
	}
}
