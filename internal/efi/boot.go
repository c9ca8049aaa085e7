package efi

import "time"

// Handle is an opaque identifier for a platform-exposed device or driver
// instance. Handles themselves are never released; lists of them are.
type Handle uint32

// NilHandle is the zero handle, never valid.
const NilHandle Handle = 0

// Protocol identifies one capability a handle can expose.
type Protocol string

const (
	ProtoDiskIO         Protocol = "disk-io"
	ProtoBlockIO        Protocol = "block-io"
	ProtoSimpleFS       Protocol = "simple-file-system"
	ProtoLoadedImage    Protocol = "loaded-image"
	ProtoDriverBinding  Protocol = "driver-binding"
	ProtoComponentName  Protocol = "component-name"
	ProtoComponentName2 Protocol = "component-name2"
)

// OpenAttr describes how a protocol is, or is to be, opened on a handle.
// Values match the firmware attribute bits.
type OpenAttr uint32

const (
	AttrByHandle  OpenAttr = 0x01
	AttrGet       OpenAttr = 0x02
	AttrTest      OpenAttr = 0x04
	AttrByChild   OpenAttr = 0x08
	AttrByDriver  OpenAttr = 0x10
	AttrExclusive OpenAttr = 0x20
)

// OpenInfoEntry records one agent currently holding a protocol on a handle.
type OpenInfoEntry struct {
	Agent      Handle
	Attributes OpenAttr
}

// HandleList is a caller-owned enumeration result; release it when done.
type HandleList struct {
	Handles []Handle
}

// OpenInfoList is a caller-owned open-information result; release it when done.
type OpenInfoList struct {
	Entries []OpenInfoEntry
}

// BlockMedia describes the medium behind a block device.
type BlockMedia struct {
	MediaID          uint32
	BlockSize        uint32
	LastBlock        uint64
	LogicalPartition bool
}

// BlockIO is the raw-block capability.
type BlockIO interface {
	Media() *BlockMedia
	// ReadBlocks reads len(buf) bytes starting at the given logical block.
	// len(buf) must be a multiple of the media block size.
	ReadBlocks(mediaID uint32, lba uint64, buf []byte) Status
}

// DirEntry is one directory entry of an emitted filesystem.
type DirEntry struct {
	Name  string
	IsDir bool
}

// File is an open file or directory on a serviced volume.
type File interface {
	// Open opens a child of a directory by exact name.
	Open(name string) (File, Status)
	ReadDir() ([]DirEntry, Status)
	// VolumeLabel writes the volume label into buf and returns the byte count
	// needed. Some firmware returns BufferTooSmall even when buf is large
	// enough, unless len(buf) equals the exact size it reports.
	VolumeLabel(buf []byte) (int, Status)
	Close() Status
}

// SimpleFileSystem is the filesystem-producing capability.
type SimpleFileSystem interface {
	OpenVolume() (File, Status)
}

// CodeType classifies a loaded image's code region.
type CodeType uint8

const (
	BootServicesCode CodeType = iota + 1
	RuntimeServicesCode
)

// LoadedImage is the metadata a platform exposes for a loaded executable.
type LoadedImage struct {
	DeviceHandle Handle
	FilePath     *DevicePath
	CodeType     CodeType
	// Code is the in-memory image; its length is the reported image size.
	Code []byte
}

// DriverBinding is the driver-binding metadata of a driver agent.
type DriverBinding struct {
	Version     uint32
	ImageHandle Handle
}

// ComponentName resolves a human-readable driver name.
type ComponentName interface {
	DriverName() (string, Status)
}

// BootServices is the platform facade. Every call blocks until it returns;
// the platform serializes calls internally. All allocating calls (handle
// lists, open-info lists, constructed device paths) return caller-owned
// values that must go back through Release exactly once.
type BootServices interface {
	// LocateHandles enumerates every handle exposing the given protocol.
	LocateHandles(p Protocol) (*HandleList, Status)

	// OpenProtocol acquires a protocol instance on a handle. With AttrTest the
	// returned value is nil and only the status is meaningful. The concrete
	// type of the returned value depends on the protocol: *BlockMedia-bearing
	// BlockIO, SimpleFileSystem, *LoadedImage, *DriverBinding, ComponentName.
	OpenProtocol(h Handle, p Protocol, attr OpenAttr) (any, Status)

	// OpenProtocolInformation lists the agents currently holding p on h.
	OpenProtocolInformation(h Handle, p Protocol) (*OpenInfoList, Status)

	LoadImage(parent Handle, path *DevicePath) (Handle, Status)
	StartImage(h Handle) Status
	UnloadImage(h Handle) Status

	// ConnectController starts drivers from the given list on a controller.
	ConnectController(controller Handle, drivers []Handle, recursive bool) Status
	DisconnectController(controller, agent Handle) Status

	// DevicePathForHandle returns the facade-owned device path of a handle,
	// or nil if the handle has none. The result must not be released.
	DevicePathForHandle(h Handle) *DevicePath

	// FileDevicePath builds a caller-owned device path anchoring a file path
	// to the device behind h. Release it exactly once.
	FileDevicePath(h Handle, path string) (*DevicePath, Status)

	// Release returns a caller-owned allocation to the platform.
	Release(res any)

	// Stall blocks for the given duration.
	Stall(d time.Duration)

	// WaitForKey blocks until a keypress.
	WaitForKey() Status

	// SecureBootStatus reports the signature-enforcement tri-state:
	// 0 disabled, positive enabled, negative setup mode.
	SecureBootStatus() int
}
