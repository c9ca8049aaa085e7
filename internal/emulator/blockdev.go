package emulator

import "github.com/danmuck/bridgectl/internal/efi"

type blockDevice struct {
	media   efi.BlockMedia
	data    []byte
	readErr efi.Status
}

func (d *blockDevice) Media() *efi.BlockMedia {
	return &d.media
}

func (d *blockDevice) ReadBlocks(mediaID uint32, lba uint64, buf []byte) efi.Status {
	if d.readErr.IsError() {
		return d.readErr
	}
	if mediaID != d.media.MediaID {
		return efi.DeviceError
	}
	bs := uint64(d.media.BlockSize)
	if bs == 0 || uint64(len(buf))%bs != 0 {
		return efi.BadBufferSize
	}
	off := lba * bs
	if off >= uint64(len(d.data)) {
		return efi.InvalidParameter
	}
	// Reads past the end of the backing data come back zeroed.
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, d.data[off:])
	return efi.Success
}
