package mbr

import (
	"encoding/binary"
	"errors"
	"testing"
)

func sectorWith(entries ...[16]byte) []byte {
	s := make([]byte, SectorSize)
	for i, e := range entries {
		copy(s[entryOffset+i*entrySize:], e[:])
	}
	s[510] = 0x55
	s[511] = 0xAA
	return s
}

func entry(status, ptype byte, lba, sectors uint32) [16]byte {
	var e [16]byte
	e[0] = status
	e[4] = ptype
	binary.LittleEndian.PutUint32(e[8:12], lba)
	binary.LittleEndian.PutUint32(e[12:16], sectors)
	return e
}

func TestParse(t *testing.T) {
	s := sectorWith(
		entry(0x80, 0x0c, 2048, 20480),
		entry(0x00, 0x07, 22528, 40960),
	)
	parts, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts))
	}
	if !parts[0].Bootable || parts[0].Type != 0x0c || parts[0].FirstLBA != 2048 {
		t.Fatalf("first partition parsed wrong: %+v", parts[0])
	}
	if parts[1].Bootable || parts[1].Type != 0x07 || parts[1].Sectors != 40960 {
		t.Fatalf("second partition parsed wrong: %+v", parts[1])
	}
	if parts[1].Index != 1 {
		t.Fatalf("table slots must be preserved: %+v", parts[1])
	}
}

func TestParseSkipsEmptySlots(t *testing.T) {
	s := sectorWith(
		entry(0, 0, 0, 0),
		entry(0, 0x07, 2048, 4096),
	)
	parts, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parts) != 1 || parts[0].Index != 1 {
		t.Fatalf("empty slot handling wrong: %+v", parts)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	if _, err := Parse(make([]byte, 100)); !errors.Is(err, ErrInvalidBootRecord) {
		t.Fatalf("short sector: %v", err)
	}

	noSig := make([]byte, SectorSize)
	if _, err := Parse(noSig); !errors.Is(err, ErrInvalidBootRecord) {
		t.Fatalf("missing signature: %v", err)
	}

	badStatus := sectorWith(entry(0x05, 0x07, 2048, 4096))
	if _, err := Parse(badStatus); !errors.Is(err, ErrInvalidBootRecord) {
		t.Fatalf("invalid status byte: %v", err)
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(0x07); got != "NTFS/exFAT" {
		t.Fatalf("TypeName(0x07) = %q", got)
	}
	if got := TypeName(0x42); got != "type 0x42" {
		t.Fatalf("TypeName(0x42) = %q", got)
	}
}
