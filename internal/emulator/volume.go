package emulator

import "github.com/danmuck/bridgectl/internal/efi"

// Volume is an emulated filesystem a driver produces on a controller.
type Volume struct {
	Label string
	Root  *Dir

	// NotReadyOpens answers that many by-handle filesystem opens with
	// Unsupported before the volume becomes reachable.
	NotReadyOpens int

	// LabelExactSize reproduces firmware that rejects a larger-than-needed
	// buffer for the volume label unless the exact size is requested.
	LabelExactSize bool

	// LabelStatus, when an error, fails every label read.
	LabelStatus efi.Status

	openRoots int
}

// Dir is a directory tree node. Entries keep insertion order, mirroring the
// on-disk enumeration order a driver would report.
type Dir struct {
	entries []dirNode
}

type dirNode struct {
	name string
	dir  *Dir // nil for plain files
}

// NewDir builds a directory from name/child pairs via AddFile and AddDir.
func NewDir() *Dir {
	return &Dir{}
}

func (d *Dir) AddFile(name string) *Dir {
	d.entries = append(d.entries, dirNode{name: name})
	return d
}

func (d *Dir) AddDir(name string, child *Dir) *Dir {
	d.entries = append(d.entries, dirNode{name: name, dir: child})
	return d
}

// OpenVolume implements efi.SimpleFileSystem.
func (v *Volume) OpenVolume() (efi.File, efi.Status) {
	if v.Root == nil {
		return nil, efi.DeviceError
	}
	v.openRoots++
	return &fileHandle{vol: v, dir: v.Root}, efi.Success
}

type fileHandle struct {
	vol    *Volume
	dir    *Dir
	closed bool
}

func (f *fileHandle) Open(name string) (efi.File, efi.Status) {
	if f.dir == nil {
		return nil, efi.Unsupported
	}
	for _, e := range f.dir.entries {
		if e.name == name {
			if e.dir == nil {
				return &fileHandle{vol: f.vol}, efi.Success
			}
			return &fileHandle{vol: f.vol, dir: e.dir}, efi.Success
		}
	}
	return nil, efi.NotFound
}

func (f *fileHandle) ReadDir() ([]efi.DirEntry, efi.Status) {
	if f.dir == nil {
		return nil, efi.Unsupported
	}
	entries := make([]efi.DirEntry, len(f.dir.entries))
	for i, e := range f.dir.entries {
		entries[i] = efi.DirEntry{Name: e.name, IsDir: e.dir != nil}
	}
	return entries, efi.Success
}

func (f *fileHandle) VolumeLabel(buf []byte) (int, efi.Status) {
	if f.vol.LabelStatus.IsError() {
		return 0, f.vol.LabelStatus
	}
	need := len(f.vol.Label)
	if f.vol.LabelExactSize && len(buf) != need {
		return need, efi.BufferTooSmall
	}
	if len(buf) < need {
		return need, efi.BufferTooSmall
	}
	copy(buf, f.vol.Label)
	return need, efi.Success
}

func (f *fileHandle) Close() efi.Status {
	if f.closed {
		return efi.InvalidParameter
	}
	f.closed = true
	return efi.Success
}
