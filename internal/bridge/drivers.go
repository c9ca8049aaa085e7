package bridge

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/bridgectl/internal/efi"
)

const unknownDriverName = "(unknown driver)"

// driverName resolves a human-readable name for a driver handle, trying the
// richer naming protocol first. It never fails; unnameable drivers get a
// placeholder.
func driverName(bs efi.BootServices, driver efi.Handle) string {
	for _, proto := range []efi.Protocol{efi.ProtoComponentName2, efi.ProtoComponentName} {
		v, st := bs.OpenProtocol(driver, proto, efi.AttrGet)
		if st.IsError() {
			continue
		}
		cn, ok := v.(efi.ComponentName)
		if !ok {
			continue
		}
		if name, st := cn.DriverName(); !st.IsError() {
			return name
		}
	}
	return unknownDriverName
}

// unloadDriver unloads a filesystem driver currently bound to the raw-block
// capability under fsHandle. A handle may report several bindings, including
// phantom ones without a live driver instance, so candidates are scanned in
// discovery order until one both exposes driver-binding metadata and unloads
// cleanly. NotFound means no candidate qualified.
func unloadDriver(bs efi.BootServices, fsHandle efi.Handle, log zerolog.Logger) efi.Status {
	info, st := bs.OpenProtocolInformation(fsHandle, efi.ProtoDiskIO)
	if st.IsError() {
		return efi.NotFound
	}
	defer bs.Release(info)

	for _, entry := range info.Entries {
		v, st := bs.OpenProtocol(entry.Agent, efi.ProtoDriverBinding, efi.AttrGet)
		if st.IsError() {
			continue
		}
		binding, ok := v.(*efi.DriverBinding)
		if !ok || binding == nil {
			continue
		}

		name := driverName(bs, entry.Agent)
		log.Warn().Str("driver", name).Uint32("version", binding.Version).
			Msg("unloading existing driver")
		if st := bs.UnloadImage(binding.ImageHandle); st.IsError() {
			log.Warn().Stringer("status", st).Msg("could not unload driver")
			continue
		}
		return efi.Success
	}

	return efi.NotFound
}
