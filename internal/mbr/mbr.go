// Package mbr reads classic master-boot-record partition tables, enough to
// slice a raw disk image into the partitions the emulator exposes.
package mbr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SectorSize is the MBR sector size; the partition table always lives in
	// the first 512 bytes regardless of the medium's logical block size.
	SectorSize = 512

	entryOffset = 446
	entrySize   = 16
	numEntries  = 4
)

var ErrInvalidBootRecord = errors.New("mbr: invalid master boot record")

// Partition is one primary partition table entry.
type Partition struct {
	Index    int
	Type     byte
	Bootable bool
	FirstLBA uint32
	Sectors  uint32
}

// Parse reads the partition table from the first sector of a disk. Empty
// (type 0) entries are skipped. The sector must carry the 0x55AA signature.
func Parse(sector []byte) ([]Partition, error) {
	if len(sector) < SectorSize {
		return nil, fmt.Errorf("%w: sector is %d bytes", ErrInvalidBootRecord, len(sector))
	}
	if sector[510] != 0x55 || sector[511] != 0xAA {
		return nil, fmt.Errorf("%w: missing boot signature", ErrInvalidBootRecord)
	}

	var parts []Partition
	for i := 0; i < numEntries; i++ {
		entry := sector[entryOffset+i*entrySize : entryOffset+(i+1)*entrySize]
		ptype := entry[4]
		if ptype == 0 {
			continue
		}
		status := entry[0]
		if status != 0x00 && status < 0x80 {
			return nil, fmt.Errorf("%w: entry %d has status 0x%02x", ErrInvalidBootRecord, i, status)
		}
		parts = append(parts, Partition{
			Index:    i,
			Type:     ptype,
			Bootable: status >= 0x80,
			FirstLBA: binary.LittleEndian.Uint32(entry[8:12]),
			Sectors:  binary.LittleEndian.Uint32(entry[12:16]),
		})
	}
	return parts, nil
}

// TypeName names the partition types this tool cares about.
func TypeName(t byte) string {
	switch t {
	case 0x07:
		return "NTFS/exFAT"
	case 0x0b, 0x0c:
		return "FAT32"
	case 0x0e:
		return "FAT16"
	case 0xee:
		return "GPT protective"
	case 0xef:
		return "EFI system"
	default:
		return fmt.Sprintf("type 0x%02x", t)
	}
}
