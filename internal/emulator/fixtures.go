package emulator

import (
	"strings"
	"time"

	"github.com/danmuck/bridgectl/internal/efi"
)

// ImageSpec describes a loadable executable registered on a device.
type ImageSpec struct {
	CodeType efi.CodeType
	Code     []byte

	// Name, when set, exposes the component-name protocols on the image.
	Name string

	// Driver marks the image as a filesystem driver; connecting it to a
	// controller produces Driver.Volume there.
	Driver *DriverSpec

	// LoadStatus / StartStatus / UnloadStatus inject failures for the
	// corresponding call; zero means success.
	LoadStatus   efi.Status
	StartStatus  efi.Status
	UnloadStatus efi.Status
}

// DriverSpec is the filesystem a driver image produces when connected.
type DriverSpec struct {
	Volume *Volume
}

type diskIOMarker struct{}

// OEMSector builds a 512-byte boot sector carrying the given OEM ID at the
// conventional offset.
func OEMSector(tag string) []byte {
	sector := make([]byte, 512)
	copy(sector[3:11], tag)
	return sector
}

// AddDisk creates a whole-disk handle backed by raw.
func (p *Platform) AddDisk(name string, raw []byte) efi.Handle {
	path := &efi.DevicePath{Nodes: []efi.PathNode{
		{Type: efi.NodeHardware, Text: "Pci(0x0,0x0)"},
		{Type: efi.NodeMessaging, Text: name},
	}}
	h, obj := p.addObject(path)
	obj.protocols[efi.ProtoDiskIO] = diskIOMarker{}
	obj.protocols[efi.ProtoBlockIO] = &blockDevice{
		media: efi.BlockMedia{MediaID: uint32(h), BlockSize: 512},
		data:  raw,
	}
	return h
}

// AddPartition creates a logical-partition handle on a disk, its block
// device backed by data (sector 0 first).
func (p *Platform) AddPartition(disk efi.Handle, name string, data []byte) efi.Handle {
	parent := p.objects[disk].path
	nodes := make([]efi.PathNode, len(parent.Nodes), len(parent.Nodes)+1)
	copy(nodes, parent.Nodes)
	path := &efi.DevicePath{Nodes: append(nodes, efi.PathNode{Type: efi.NodeMedia, Text: name})}

	h, obj := p.addObject(path)
	obj.protocols[efi.ProtoDiskIO] = diskIOMarker{}
	obj.protocols[efi.ProtoBlockIO] = &blockDevice{
		media: efi.BlockMedia{MediaID: uint32(h), BlockSize: 512, LogicalPartition: true},
		data:  data,
	}
	return h
}

// AddBootImage loads the bridge's own image record, anchored to the given
// boot partition, and returns its handle.
func (p *Platform) AddBootImage(bootPartition efi.Handle) efi.Handle {
	h, obj := p.addObject(nil)
	info := &efi.LoadedImage{
		DeviceHandle: bootPartition,
		CodeType:     efi.BootServicesCode,
	}
	obj.protocols[efi.ProtoLoadedImage] = info
	p.images[h] = &image{spec: &ImageSpec{CodeType: efi.BootServicesCode}, info: info}
	return h
}

// RegisterFile makes an executable loadable from a path on a device. Lookup
// is case-insensitive, like the FAT medium drivers load from.
func (p *Platform) RegisterFile(device efi.Handle, path string, spec *ImageSpec) {
	p.files[fileKey{device, strings.ToLower(path)}] = spec
}

func (p *Platform) lookupFile(device efi.Handle, path string) (*ImageSpec, bool) {
	spec, ok := p.files[fileKey{device, strings.ToLower(path)}]
	return spec, ok
}

// AddNativeDriver installs a filesystem driver already servicing target:
// a by-driver binding on the disk interface, driver-binding metadata on a
// separate agent handle, a live driver image, and a produced volume.
// unloadStatus injects an unload failure; zero lets the unload succeed.
func (p *Platform) AddNativeDriver(target efi.Handle, name string, version uint32, vol *Volume, unloadStatus efi.Status) (agent, img efi.Handle) {
	img, imgObj := p.addObject(nil)
	spec := &ImageSpec{CodeType: efi.BootServicesCode, Name: name, UnloadStatus: unloadStatus}
	info := &efi.LoadedImage{CodeType: efi.BootServicesCode}
	p.images[img] = &image{spec: spec, info: info, started: true, serviced: []efi.Handle{target}}
	imgObj.protocols[efi.ProtoLoadedImage] = info

	agent, agentObj := p.addObject(nil)
	agentObj.protocols[efi.ProtoDriverBinding] = &efi.DriverBinding{Version: version, ImageHandle: img}
	if name != "" {
		cn := componentName{name: name}
		agentObj.protocols[efi.ProtoComponentName] = cn
		agentObj.protocols[efi.ProtoComponentName2] = cn
	}
	p.images[img].agent = agent

	tgt := p.objects[target]
	tgt.protocols[efi.ProtoSimpleFS] = vol
	tgt.openInfo[efi.ProtoDiskIO] = append(tgt.openInfo[efi.ProtoDiskIO],
		efi.OpenInfoEntry{Agent: agent, Attributes: efi.AttrByDriver})
	return agent, img
}

// AddPhantomBinding records a disk-interface binding whose agent exposes no
// driver-binding metadata, as some firmware reports.
func (p *Platform) AddPhantomBinding(target efi.Handle) efi.Handle {
	agent, _ := p.addObject(nil)
	tgt := p.objects[target]
	tgt.openInfo[efi.ProtoDiskIO] = append(tgt.openInfo[efi.ProtoDiskIO],
		efi.OpenInfoEntry{Agent: agent, Attributes: efi.AttrByDriver})
	return agent
}

// AddBlockingDriver binds an agent by-driver onto a partition's disk
// interface without producing a filesystem there.
func (p *Platform) AddBlockingDriver(partition efi.Handle, name string) efi.Handle {
	agent, obj := p.addObject(nil)
	if name != "" {
		cn := componentName{name: name}
		obj.protocols[efi.ProtoComponentName] = cn
		obj.protocols[efi.ProtoComponentName2] = cn
	}
	part := p.objects[partition]
	part.openInfo[efi.ProtoDiskIO] = append(part.openInfo[efi.ProtoDiskIO],
		efi.OpenInfoEntry{Agent: agent, Attributes: efi.AttrByDriver})
	return agent
}

// Partitions lists the logical-partition handles in enumeration order.
func (p *Platform) Partitions() []efi.Handle {
	var out []efi.Handle
	for _, h := range p.order {
		blk, ok := p.objects[h].protocols[efi.ProtoBlockIO].(*blockDevice)
		if ok && blk.media.LogicalPartition {
			out = append(out, h)
		}
	}
	return out
}

// SetSecureBoot sets the signature-enforcement tri-state.
func (p *Platform) SetSecureBoot(status int) {
	p.secureBoot = status
}

// SetBlockReadError fails every block read on a handle.
func (p *Platform) SetBlockReadError(h efi.Handle, st efi.Status) {
	if blk, ok := p.objects[h].protocols[efi.ProtoBlockIO].(*blockDevice); ok {
		blk.readErr = st
	}
}

func (p *Platform) SetLocateError(proto efi.Protocol, st efi.Status) {
	p.locateErr[proto] = st
}

func (p *Platform) SetConnectError(controller efi.Handle, st efi.Status) {
	p.connectErr[controller] = st
}

func (p *Platform) SetDisconnectError(controller, agent efi.Handle, st efi.Status) {
	p.disconnectErr[agentKey{controller, agent}] = st
}

// HasFilesystem reports whether a filesystem is currently produced on h.
func (p *Platform) HasFilesystem(h efi.Handle) bool {
	obj, ok := p.objects[h]
	if !ok {
		return false
	}
	_, ok = obj.protocols[efi.ProtoSimpleFS]
	return ok
}

// AgentsOn lists the agents bound to a protocol on h, without allocating a
// caller-owned list.
func (p *Platform) AgentsOn(h efi.Handle, proto efi.Protocol) []efi.Handle {
	obj, ok := p.objects[h]
	if !ok {
		return nil
	}
	var agents []efi.Handle
	for _, e := range obj.openInfo[proto] {
		agents = append(agents, e.Agent)
	}
	return agents
}

// Stalls returns every delay the platform was asked to block for.
func (p *Platform) Stalls() []time.Duration {
	return p.stalls
}

// KeyWaits returns how many times a keypress was waited for.
func (p *Platform) KeyWaits() int {
	return p.keyWaits
}

// OutstandingAllocs counts caller-owned allocations never released.
func (p *Platform) OutstandingAllocs() int {
	n := 0
	for _, v := range p.allocs {
		if v != 0 {
			n++
		}
	}
	return n
}

// DoubleFrees counts releases of already-released allocations.
func (p *Platform) DoubleFrees() int {
	return p.doubleFrees
}

// WildReleases counts releases of values the platform never allocated,
// including facade-owned device paths.
func (p *Platform) WildReleases() int {
	return p.wildReleases
}
