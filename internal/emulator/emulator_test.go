package emulator

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/danmuck/bridgectl/internal/efi"
	"github.com/danmuck/bridgectl/internal/mbr"
	"github.com/danmuck/bridgectl/internal/testutil/testlog"
)

type partSpec struct {
	ptype byte
	oem   string
}

// buildImage lays out a raw MBR disk with the given partitions, one sector
// each, back to back after the partition table.
func buildImage(parts ...partSpec) []byte {
	sectors := 1 + len(parts)
	raw := make([]byte, sectors*mbr.SectorSize)
	for i, part := range parts {
		entry := raw[446+i*16 : 446+(i+1)*16]
		entry[0] = 0x00
		entry[4] = part.ptype
		binary.LittleEndian.PutUint32(entry[8:12], uint32(1+i))
		binary.LittleEndian.PutUint32(entry[12:16], 1)
		copy(raw[(1+i)*mbr.SectorSize:], OEMSector(part.oem))
	}
	raw[510] = 0x55
	raw[511] = 0xAA
	return raw
}

func TestNewFromImage(t *testing.T) {
	testlog.Start(t)
	raw := buildImage(
		partSpec{0x0c, "MSDOS5.0"},
		partSpec{0x07, "NTFS    "},
	)
	p, self, err := NewFromImage(raw)
	if err != nil {
		t.Fatalf("NewFromImage: %v", err)
	}
	if self == efi.NilHandle {
		t.Fatalf("no boot image handle")
	}

	parts := p.Partitions()
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts))
	}

	// The boot image must be anchored to the FAT partition, not the NTFS one.
	v, st := p.OpenProtocol(self, efi.ProtoLoadedImage, efi.AttrGet)
	if st.IsError() {
		t.Fatalf("OpenProtocol(LoadedImage): %v", st)
	}
	li := v.(*efi.LoadedImage)
	if li.DeviceHandle != parts[0] {
		t.Fatalf("boot image anchored to %v, want %v", li.DeviceHandle, parts[0])
	}

	// Partition sector 0 content comes from the right slice of the image.
	bv, st := p.OpenProtocol(parts[1], efi.ProtoBlockIO, efi.AttrGet)
	if st.IsError() {
		t.Fatalf("OpenProtocol(BlockIO): %v", st)
	}
	blk := bv.(efi.BlockIO)
	sector := make([]byte, blk.Media().BlockSize)
	if st := blk.ReadBlocks(blk.Media().MediaID, 0, sector); st.IsError() {
		t.Fatalf("ReadBlocks: %v", st)
	}
	if string(sector[3:11]) != "NTFS    " {
		t.Fatalf("second partition OEM = %q", sector[3:11])
	}
}

func TestNewFromImageErrors(t *testing.T) {
	testlog.Start(t)
	if _, _, err := NewFromImage(make([]byte, 64)); !errors.Is(err, mbr.ErrInvalidBootRecord) {
		t.Fatalf("short image: %v", err)
	}

	empty := make([]byte, mbr.SectorSize)
	empty[510], empty[511] = 0x55, 0xAA
	if _, _, err := NewFromImage(empty); !errors.Is(err, ErrNoPartitions) {
		t.Fatalf("empty table: %v", err)
	}

	ntfsOnly := buildImage(partSpec{0x07, "NTFS    "})
	if _, _, err := NewFromImage(ntfsOnly); !errors.Is(err, ErrNoBootPartition) {
		t.Fatalf("no boot medium: %v", err)
	}
}

func TestReleaseTracking(t *testing.T) {
	testlog.Start(t)
	p := New()
	disk := p.AddDisk("usb(0,0)", nil)
	p.AddPartition(disk, "HD(1)", nil)

	handles, st := p.LocateHandles(efi.ProtoDiskIO)
	if st.IsError() {
		t.Fatalf("LocateHandles: %v", st)
	}
	if p.OutstandingAllocs() != 1 {
		t.Fatalf("allocation not tracked")
	}

	p.Release(handles)
	if p.OutstandingAllocs() != 0 {
		t.Fatalf("release not recorded")
	}

	p.Release(handles)
	if p.DoubleFrees() != 1 {
		t.Fatalf("double release not counted")
	}

	// Facade-owned paths must not be released.
	p.Release(p.DevicePathForHandle(disk))
	if p.WildReleases() != 1 {
		t.Fatalf("wild release not counted")
	}
}

func TestBlockReadsPastBackingEnd(t *testing.T) {
	testlog.Start(t)
	p := New()
	disk := p.AddDisk("usb(0,0)", nil)
	part := p.AddPartition(disk, "HD(1)", []byte{0xAB})

	v, st := p.OpenProtocol(part, efi.ProtoBlockIO, efi.AttrGet)
	if st.IsError() {
		t.Fatalf("OpenProtocol: %v", st)
	}
	blk := v.(efi.BlockIO)
	buf := make([]byte, 512)
	if st := blk.ReadBlocks(blk.Media().MediaID, 0, buf); st.IsError() {
		t.Fatalf("ReadBlocks: %v", st)
	}
	if buf[0] != 0xAB || buf[1] != 0 {
		t.Fatalf("short backing not zero-filled: % x", buf[:2])
	}
}

func TestVolumeLabelExactSizeQuirk(t *testing.T) {
	testlog.Start(t)
	vol := &Volume{Label: "PAYLOAD", Root: NewDir(), LabelExactSize: true}
	root, st := vol.OpenVolume()
	if st.IsError() {
		t.Fatalf("OpenVolume: %v", st)
	}

	n, st := root.VolumeLabel(make([]byte, 512))
	if st != efi.BufferTooSmall || n != len("PAYLOAD") {
		t.Fatalf("oversized buffer: n=%d st=%v", n, st)
	}

	buf := make([]byte, n)
	n, st = root.VolumeLabel(buf)
	if st.IsError() {
		t.Fatalf("exact-size read: %v", st)
	}
	if string(buf[:n]) != "PAYLOAD" {
		t.Fatalf("label = %q", buf[:n])
	}
}

func TestNotReadyOpensCountDown(t *testing.T) {
	testlog.Start(t)
	p := New()
	disk := p.AddDisk("usb(0,0)", nil)
	part := p.AddPartition(disk, "HD(1)", nil)
	boot := p.AddPartition(disk, "HD(2)", nil)
	self := p.AddBootImage(boot)

	vol := &Volume{Root: NewDir(), NotReadyOpens: 2}
	p.RegisterFile(boot, `\drv.efi`, &ImageSpec{
		CodeType: efi.BootServicesCode,
		Driver:   &DriverSpec{Volume: vol},
	})
	dp, st := p.FileDevicePath(boot, `\drv.efi`)
	if st.IsError() {
		t.Fatalf("FileDevicePath: %v", st)
	}
	img, st := p.LoadImage(self, dp)
	if st.IsError() {
		t.Fatalf("LoadImage: %v", st)
	}
	p.Release(dp)
	if st := p.StartImage(img); st.IsError() {
		t.Fatalf("StartImage: %v", st)
	}
	if st := p.ConnectController(part, []efi.Handle{img}, true); st.IsError() {
		t.Fatalf("ConnectController: %v", st)
	}

	for i := 0; i < 2; i++ {
		if _, st := p.OpenProtocol(part, efi.ProtoSimpleFS, efi.AttrByHandle); st != efi.Unsupported {
			t.Fatalf("open %d: %v", i+1, st)
		}
	}
	if _, st := p.OpenProtocol(part, efi.ProtoSimpleFS, efi.AttrByHandle); st.IsError() {
		t.Fatalf("open after countdown: %v", st)
	}
}
