package bridge

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/bridgectl/internal/efi"
)

// disconnectBlockingDrivers severs firmware-held raw-block bindings that
// would starve a filesystem driver of the ability to attach. Some firmware
// binds a partition-scanning driver onto every partition's disk interface
// even when no filesystem results; such a by-driver binding on a logical
// partition with no filesystem produced gets disconnected here.
//
// Best effort only: per-entry failures are logged and the scan continues.
func disconnectBlockingDrivers(bs efi.BootServices, log zerolog.Logger) {
	handles, st := bs.LocateHandles(efi.ProtoDiskIO)
	if st.IsError() || handles == nil || len(handles.Handles) == 0 {
		return
	}
	defer bs.Release(handles)

	for _, h := range handles.Handles {
		v, st := bs.OpenProtocol(h, efi.ProtoBlockIO, efi.AttrGet)
		if st.IsError() {
			continue
		}
		blk, ok := v.(efi.BlockIO)
		if !ok || blk == nil {
			continue
		}
		// A whole disk is supposed to have its disk interface opened by the
		// partition driver; only logical partitions are candidates.
		media := blk.Media()
		if media == nil || !media.LogicalPartition {
			continue
		}

		// A produced filesystem means the binding is doing its job.
		if _, st := bs.OpenProtocol(h, efi.ProtoSimpleFS, efi.AttrGet); !st.IsError() {
			continue
		}

		pathText := bs.DevicePathForHandle(h).Text()
		info, st := bs.OpenProtocolInformation(h, efi.ProtoDiskIO)
		if st.IsError() {
			log.Warn().Str("path", pathText).Stringer("status", st).
				Msg("could not get disk open information")
			continue
		}
		for _, entry := range info.Entries {
			if entry.Attributes&efi.AttrByDriver == 0 {
				continue
			}
			name := driverName(bs, entry.Agent)
			if st := bs.DisconnectController(h, entry.Agent); st.IsError() {
				log.Error().Str("driver", name).Str("path", pathText).
					Msg("could not disconnect driver")
			} else {
				log.Warn().Str("driver", name).Str("path", pathText).
					Msg("disconnected driver")
			}
		}
		bs.Release(info)
	}
}
