package bridge

import "bytes"

// Filesystem tags the partition formats the bridge can service.
type Filesystem int

const (
	FSUnknown Filesystem = iota
	FSNtfs
	FSExfat
)

// oemIDOffset is where the 8-byte OEM ID sits inside sector 0.
const oemIDOffset = 3

var oemSignatures = []struct {
	fs  Filesystem
	tag [8]byte
}{
	{FSNtfs, [8]byte{'N', 'T', 'F', 'S', ' ', ' ', ' ', ' '}},
	{FSExfat, [8]byte{'E', 'X', 'F', 'A', 'T', ' ', ' ', ' '}},
}

// String is the display name of the filesystem kind.
func (f Filesystem) String() string {
	switch f {
	case FSNtfs:
		return "NTFS"
	case FSExfat:
		return "exFAT"
	default:
		return "unknown"
	}
}

// DriverID selects the driver binary for the filesystem kind.
func (f Filesystem) DriverID() string {
	switch f {
	case FSNtfs:
		return "ntfs"
	case FSExfat:
		return "exfat"
	default:
		return ""
	}
}

// DetectFilesystem matches the OEM ID of a partition's first sector against
// the supported filesystem signatures.
func DetectFilesystem(sector []byte) (Filesystem, bool) {
	if len(sector) < oemIDOffset+8 {
		return FSUnknown, false
	}
	oem := sector[oemIDOffset : oemIDOffset+8]
	for _, sig := range oemSignatures {
		if bytes.Equal(oem, sig.tag[:]) {
			return sig.fs, true
		}
	}
	return FSUnknown, false
}

// The Windows boot manager is identified by a "bootmgr.dll" string inside its
// image. The stored signature withholds the first byte so a scan can never
// match the copy embedded in this program itself.
var bootmgrTail = []byte("ootmgr.dll\x00")

const (
	bootmgrFirstByte = 'b'
	bootmgrScanStart = 0x40
)

// HasBootmgrSignature scans an image's code region for the Windows boot
// manager signature. The scan starts at a fixed offset past the image header
// and stops one signature length before the reported image end.
func HasBootmgrSignature(code []byte) bool {
	sig := make([]byte, 0, len(bootmgrTail)+1)
	sig = append(sig, bootmgrFirstByte)
	sig = append(sig, bootmgrTail...)

	if len(code) < bootmgrScanStart+len(sig) {
		return false
	}
	for i := bootmgrScanStart; i < len(code)-len(sig); i++ {
		if bytes.Equal(code[i:i+len(sig)], sig) {
			return true
		}
	}
	return false
}
