package emulator

import (
	"errors"
	"fmt"

	"github.com/danmuck/bridgectl/internal/efi"
	"github.com/danmuck/bridgectl/internal/mbr"
)

var (
	ErrNoPartitions    = errors.New("emulator: image has no partitions")
	ErrNoBootPartition = errors.New("emulator: image has no boot-medium partition")
)

// NewFromImage builds a platform from a raw MBR disk image: one disk handle
// plus one logical-partition handle per table entry, and the bridge's own
// image anchored to the first boot-medium (FAT/ESP) partition. Returns the
// platform and the bridge's image handle.
func NewFromImage(raw []byte) (*Platform, efi.Handle, error) {
	if len(raw) < mbr.SectorSize {
		return nil, efi.NilHandle, mbr.ErrInvalidBootRecord
	}
	parts, err := mbr.Parse(raw[:mbr.SectorSize])
	if err != nil {
		return nil, efi.NilHandle, err
	}
	if len(parts) == 0 {
		return nil, efi.NilHandle, ErrNoPartitions
	}

	p := New()
	disk := p.AddDisk("usb(0,0)", raw)

	bootPart := efi.NilHandle
	for _, part := range parts {
		start := uint64(part.FirstLBA) * mbr.SectorSize
		end := start + uint64(part.Sectors)*mbr.SectorSize
		if start >= uint64(len(raw)) {
			return nil, efi.NilHandle,
				fmt.Errorf("%w: entry %d starts past image end", mbr.ErrInvalidBootRecord, part.Index)
		}
		if end > uint64(len(raw)) {
			end = uint64(len(raw))
		}
		h := p.AddPartition(disk, fmt.Sprintf("HD(%d)", part.Index+1), raw[start:end])
		if bootPart == efi.NilHandle && isBootMedium(part.Type) {
			bootPart = h
		}
	}
	if bootPart == efi.NilHandle {
		return nil, efi.NilHandle, ErrNoBootPartition
	}

	return p, p.AddBootImage(bootPart), nil
}

func isBootMedium(ptype byte) bool {
	switch ptype {
	case 0x01, 0x04, 0x06, 0x0b, 0x0c, 0x0e, 0xef:
		return true
	}
	return false
}
