package bridge

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/bridgectl/internal/efi"
	"github.com/danmuck/bridgectl/internal/pathcase"
)

// fileInfoSize is the conventional buffer size for volume-info reads.
const fileInfoSize = 512

// Bridge is the phased discovery-and-chain-load orchestrator. The phases run
// strictly in order; any fatal failure aborts to the shared cleanup, which
// releases every tracked platform allocation exactly once.
type Bridge struct {
	bs   efi.BootServices
	self efi.Handle
	cfg  Config
	log  zerolog.Logger

	secureBoot int
	tracked    []any
}

// New creates a Bridge running on the given platform. self is the handle of
// the bridge's own loaded image.
func New(bs efi.BootServices, self efi.Handle, opts ...Option) *Bridge {
	if bs == nil {
		panic("bridge: platform cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{
		bs:   bs,
		self: self,
		cfg:  cfg,
		log:  cfg.Logger,
	}
}

// Run executes the full bridge sequence and returns the final status. A
// chain-loaded program's status is passed through verbatim; on the success
// path control normally never comes back here at all. On failure, cleanup
// runs first, then (if configured) the run blocks for one keypress.
func (b *Bridge) Run() efi.Status {
	st := b.run()
	b.releaseAll()
	if st.IsError() && b.cfg.WaitOnFailure {
		b.log.Warn().Msg("press any key to exit")
		b.bs.WaitForKey()
	}
	return st
}

func (b *Bridge) run() efi.Status {
	b.secureBoot = b.bs.SecureBootStatus()
	b.log.Info().Str("secure_boot", secureBootLabel(b.secureBoot)).Msg("secure boot status")

	self, st := b.loadedImage(b.self)
	if st.IsError() {
		b.log.Error().Stringer("status", st).Msg("unable to access boot image interface")
		return st
	}

	b.log.Info().Msg("disconnecting potentially blocking drivers")
	disconnectBlockingDrivers(b.bs, b.log)

	bootPart := b.bs.DevicePathForHandle(self.DeviceHandle)
	bootDisk := bootPart.Parent()
	b.log.Info().Str("disk", bootDisk.Text()).Msg("searching for target partition on boot disk")

	target, fs, st := b.discover(bootPart, bootDisk)
	if st.IsError() {
		return st
	}
	b.log.Info().Str("fs", fs.String()).
		Str("path", b.bs.DevicePathForHandle(target).Text()).
		Msg("found target partition")

	needsService, st := b.serviceCheck(target, fs)
	if st.IsError() {
		return st
	}
	if needsService {
		if st := b.provision(self.DeviceHandle, target, fs); st.IsError() {
			return st
		}
	}

	root, st := b.openVolume(target, fs)
	if st.IsError() {
		return st
	}
	defer root.Close()

	guess := fmt.Sprintf(`\efi\boot\boot%s.efi`, b.cfg.Arch)
	loaderPath, st := pathcase.Resolve(root, guess)
	if st.IsError() {
		b.log.Error().Str("loader", strings.TrimPrefix(guess, `\`)).
			Stringer("status", st).Msg("could not locate loader")
		return st
	}

	return b.chainLoad(target, loaderPath)
}

// discover walks every raw-block handle in enumeration order and selects the
// first partition, other than the one booted from, whose sector-0 OEM ID
// matches a supported filesystem.
func (b *Bridge) discover(bootPart, bootDisk *efi.DevicePath) (efi.Handle, Filesystem, efi.Status) {
	handles, st := b.bs.LocateHandles(efi.ProtoDiskIO)
	if st.IsError() {
		b.log.Error().Stringer("status", st).Msg("failed to list disks")
		return efi.NilHandle, FSUnknown, st
	}
	b.track(handles)

	for _, h := range handles.Handles {
		dp := b.bs.DevicePathForHandle(h)
		if dp.Compare(bootPart) == 0 {
			continue
		}
		if b.cfg.SameDiskCheck && dp.Parent().Compare(bootDisk) != 0 {
			continue
		}

		v, st := b.bs.OpenProtocol(h, efi.ProtoBlockIO, efi.AttrGet)
		if st.IsError() {
			continue
		}
		blk, ok := v.(efi.BlockIO)
		if !ok || blk == nil {
			continue
		}
		media := blk.Media()
		if media == nil || media.BlockSize == 0 {
			continue
		}
		sector := make([]byte, media.BlockSize)
		if st := blk.ReadBlocks(media.MediaID, 0, sector); st.IsError() {
			continue
		}
		if fs, ok := DetectFilesystem(sector); ok {
			return h, fs, efi.Success
		}
	}

	b.log.Error().Msg("could not locate target partition")
	return efi.NilHandle, FSUnknown, efi.NotFound
}

// serviceCheck decides whether the target still needs a filesystem driver.
// An already-serviced partition gets its native driver unloaded first: known
// third-party drivers have compatibility defects, so the policy is to always
// replace one with our own when the unload succeeds.
func (b *Bridge) serviceCheck(target efi.Handle, fs Filesystem) (bool, efi.Status) {
	_, st := b.bs.OpenProtocol(target, efi.ProtoSimpleFS, efi.AttrTest)
	switch st {
	case efi.Success:
		if unloadDriver(b.bs, target, b.log) == efi.Success {
			return true, efi.Success
		}
		return false, efi.Success
	case efi.Unsupported:
		return true, efi.Success
	default:
		b.log.Error().Str("fs", fs.String()).Stringer("status", st).
			Msg("could not check for service")
		return false, st
	}
}

func (b *Bridge) provision(bootDevice, target efi.Handle, fs Filesystem) efi.Status {
	b.log.Info().Str("fs", fs.String()).Msg("starting driver service")

	driverPath := fmt.Sprintf(`\efi\%s\%s_%s.efi`, b.cfg.DriverNamespace, fs.DriverID(), b.cfg.Arch)
	dp, st := b.bs.FileDevicePath(bootDevice, driverPath)
	if st.IsError() || dp == nil {
		b.log.Error().Str("driver", driverPath).Msg("unable to set driver path")
		return efi.DeviceError
	}
	img, st := b.bs.LoadImage(b.self, dp)
	b.bs.Release(dp)
	if st.IsError() {
		st = b.reclassifyLoadFailure(st)
		b.log.Error().Str("driver", driverPath).Stringer("status", st).
			Msg("unable to load driver")
		return st
	}

	li, lst := b.loadedImage(img)
	if lst.IsError() {
		b.log.Error().Stringer("status", lst).Msg("unable to access driver interface")
		return lst
	}
	// Some firmware refuses to start drivers not typed as boot-services code.
	if li.CodeType != efi.BootServicesCode {
		b.log.Error().Str("driver", driverPath).Msg("not a boot system driver")
		return efi.LoadError
	}

	if st := b.bs.StartImage(img); st.IsError() {
		b.log.Error().Stringer("status", st).Msg("unable to start driver")
		return st
	}
	b.log.Info().Str("driver", driverName(b.bs, img)).Msg("driver started")

	// Connecting with a one-driver list binds exactly this driver to the
	// target, recursively.
	if st := b.bs.ConnectController(target, []efi.Handle{img}, true); st.IsError() {
		b.log.Error().Str("fs", fs.String()).Stringer("status", st).
			Msg("could not start partition service")
		return st
	}
	return efi.Success
}

// openVolume acquires the filesystem volume on the target, retrying within
// the configured budget since the driver may still be initializing, then
// opens the root directory and best-effort reports the volume label.
func (b *Bridge) openVolume(target efi.Handle, fs Filesystem) (efi.File, efi.Status) {
	b.log.Info().Str("fs", fs.String()).Msg("opening target partition")

	sleep := b.cfg.Sleep
	if sleep == nil {
		sleep = b.bs.Stall
	}

	var vol efi.SimpleFileSystem
	st := retryStatus(b.cfg.Retries, b.cfg.RetryDelay, sleep,
		func(try int) efi.Status {
			v, st := b.bs.OpenProtocol(target, efi.ProtoSimpleFS, efi.AttrByHandle)
			if st.IsError() {
				b.log.Error().Int("attempt", try+1).Stringer("status", st).
					Msg("could not open partition")
				return st
			}
			fsys, ok := v.(efi.SimpleFileSystem)
			if !ok || fsys == nil {
				return efi.DeviceError
			}
			vol = fsys
			return efi.Success
		},
		func(try int, st efi.Status) {
			b.log.Warn().Dur("delay", b.cfg.RetryDelay).Msg("waiting before retrying")
		})
	if st.IsError() {
		return nil, st
	}

	root, st := vol.OpenVolume()
	if st.IsError() || root == nil {
		b.log.Error().Stringer("status", st).Msg("could not open root directory")
		if !st.IsError() {
			st = efi.DeviceError
		}
		return nil, st
	}

	b.reportVolumeLabel(root)
	return root, efi.Success
}

func (b *Bridge) reportVolumeLabel(root efi.File) {
	buf := make([]byte, fileInfoSize)
	n, st := root.VolumeLabel(buf)
	// Some firmware returns BufferTooSmall even with a large enough buffer,
	// unless the exact size is requested.
	if st == efi.BufferTooSmall && n <= fileInfoSize {
		n, st = root.VolumeLabel(buf[:n])
	}
	if st.IsError() {
		b.log.Warn().Stringer("status", st).Msg("could not read volume label")
		return
	}
	if n > len(buf) {
		n = len(buf)
	}
	b.log.Info().Str("label", string(buf[:n])).Msg("volume label")
}

func (b *Bridge) chainLoad(target efi.Handle, loaderPath string) efi.Status {
	b.log.Info().Str("loader", strings.TrimPrefix(loaderPath, `\`)).Msg("launching loader")

	dp, st := b.bs.FileDevicePath(target, loaderPath)
	if st.IsError() || dp == nil {
		b.log.Error().Msg("could not create loader path")
		return efi.DeviceError
	}
	img, st := b.bs.LoadImage(b.self, dp)
	b.bs.Release(dp)
	if st.IsError() {
		st = b.reclassifyLoadFailure(st)
		b.log.Error().Stringer("status", st).Msg("loader load failure")
		return st
	}

	windowsBootmgr := false
	if li, lst := b.loadedImage(img); lst.IsError() {
		b.log.Warn().Msg("unable to inspect loaded executable")
	} else if HasBootmgrSignature(li.Code) {
		windowsBootmgr = true
		b.log.Info().Msg("starting Microsoft Windows bootmgr")
	}

	// On success this call transfers control away and does not return.
	st = b.bs.StartImage(img)
	if st.IsError() {
		if st == efi.NoMapping && windowsBootmgr {
			// bootmgr reports this one code for both internal faults and
			// signature-validation failures, without distinguishing them.
			b.log.Error().
				Msg("Windows bootmgr encountered a security validation or internal error")
		} else {
			b.log.Error().Stringer("status", st).Msg("loader start failure")
		}
	}
	return st
}

// reclassifyLoadFailure maps the generic access error some platforms return
// for signature failures onto the explicit security status, but only while
// signature enforcement is not disabled.
func (b *Bridge) reclassifyLoadFailure(st efi.Status) efi.Status {
	if st == efi.AccessDenied && b.secureBoot != 0 {
		return efi.SecurityViolation
	}
	return st
}

func (b *Bridge) loadedImage(h efi.Handle) (*efi.LoadedImage, efi.Status) {
	v, st := b.bs.OpenProtocol(h, efi.ProtoLoadedImage, efi.AttrGet)
	if st.IsError() {
		return nil, st
	}
	li, ok := v.(*efi.LoadedImage)
	if !ok || li == nil {
		return nil, efi.Unsupported
	}
	return li, efi.Success
}

func (b *Bridge) track(res any) {
	b.tracked = append(b.tracked, res)
}

func (b *Bridge) releaseAll() {
	for i := len(b.tracked) - 1; i >= 0; i-- {
		b.bs.Release(b.tracked[i])
	}
	b.tracked = nil
}

func secureBootLabel(status int) string {
	switch {
	case status == 0:
		return "Disabled"
	case status > 0:
		return "Enabled"
	default:
		return "Setup"
	}
}
