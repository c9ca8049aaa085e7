package emulator

import (
	"time"

	"github.com/danmuck/bridgectl/internal/efi"
)

// object is one handle's state: its device path, the protocol instances it
// exposes, and who currently holds them.
type object struct {
	path      *efi.DevicePath
	protocols map[efi.Protocol]any
	openInfo  map[efi.Protocol][]efi.OpenInfoEntry

	// fsDelay is the number of by-handle filesystem opens still answered
	// with Unsupported, emulating a driver that is slow to initialize.
	fsDelay int
}

// image is a loaded-but-maybe-not-started executable.
type image struct {
	spec    *ImageSpec
	info    *efi.LoadedImage
	started bool
	// serviced lists the controllers this image produced a filesystem on.
	serviced []efi.Handle
	// agent is the separate binding handle of a natively-installed driver.
	agent efi.Handle
}

// Platform implements efi.BootServices in memory.
type Platform struct {
	objects map[efi.Handle]*object
	order   []efi.Handle
	next    efi.Handle

	images map[efi.Handle]*image
	files  map[fileKey]*ImageSpec

	secureBoot int

	connectErr    map[efi.Handle]efi.Status
	disconnectErr map[agentKey]efi.Status
	locateErr     map[efi.Protocol]efi.Status

	allocs       map[any]int
	doubleFrees  int
	wildReleases int

	stalls   []time.Duration
	keyWaits int
}

type fileKey struct {
	device efi.Handle
	path   string
}

type agentKey struct {
	controller efi.Handle
	agent      efi.Handle
}

// New creates an empty platform with signature enforcement disabled.
func New() *Platform {
	return &Platform{
		objects:       make(map[efi.Handle]*object),
		next:          1,
		images:        make(map[efi.Handle]*image),
		files:         make(map[fileKey]*ImageSpec),
		connectErr:    make(map[efi.Handle]efi.Status),
		disconnectErr: make(map[agentKey]efi.Status),
		locateErr:     make(map[efi.Protocol]efi.Status),
		allocs:        make(map[any]int),
	}
}

func (p *Platform) newHandle() efi.Handle {
	h := p.next
	p.next++
	return h
}

func (p *Platform) addObject(path *efi.DevicePath) (efi.Handle, *object) {
	h := p.newHandle()
	obj := &object{
		path:      path,
		protocols: make(map[efi.Protocol]any),
		openInfo:  make(map[efi.Protocol][]efi.OpenInfoEntry),
	}
	p.objects[h] = obj
	p.order = append(p.order, h)
	return h, obj
}

func (p *Platform) alloc(res any) {
	p.allocs[res] = 1
}

// LocateHandles enumerates handles in creation order.
func (p *Platform) LocateHandles(proto efi.Protocol) (*efi.HandleList, efi.Status) {
	if st, ok := p.locateErr[proto]; ok && st.IsError() {
		return nil, st
	}
	list := &efi.HandleList{}
	for _, h := range p.order {
		if _, ok := p.objects[h].protocols[proto]; ok {
			list.Handles = append(list.Handles, h)
		}
	}
	if len(list.Handles) == 0 {
		return nil, efi.NotFound
	}
	p.alloc(list)
	return list, efi.Success
}

func (p *Platform) OpenProtocol(h efi.Handle, proto efi.Protocol, attr efi.OpenAttr) (any, efi.Status) {
	obj, ok := p.objects[h]
	if !ok {
		return nil, efi.InvalidParameter
	}
	v, present := obj.protocols[proto]

	if proto == efi.ProtoSimpleFS && attr == efi.AttrByHandle && present && obj.fsDelay > 0 {
		obj.fsDelay--
		return nil, efi.Unsupported
	}

	if !present {
		return nil, efi.Unsupported
	}
	if attr == efi.AttrTest {
		return nil, efi.Success
	}
	return v, efi.Success
}

func (p *Platform) OpenProtocolInformation(h efi.Handle, proto efi.Protocol) (*efi.OpenInfoList, efi.Status) {
	obj, ok := p.objects[h]
	if !ok {
		return nil, efi.InvalidParameter
	}
	if _, ok := obj.protocols[proto]; !ok {
		return nil, efi.NotFound
	}
	list := &efi.OpenInfoList{
		Entries: append([]efi.OpenInfoEntry(nil), obj.openInfo[proto]...),
	}
	p.alloc(list)
	return list, efi.Success
}

func (p *Platform) LoadImage(parent efi.Handle, path *efi.DevicePath) (efi.Handle, efi.Status) {
	if path == nil || len(path.Nodes) == 0 {
		return efi.NilHandle, efi.InvalidParameter
	}
	last := path.Nodes[len(path.Nodes)-1]
	if last.Type != efi.NodeFile {
		return efi.NilHandle, efi.InvalidParameter
	}
	device := p.handleForPath(&efi.DevicePath{Nodes: path.Nodes[:len(path.Nodes)-1]})
	if device == efi.NilHandle {
		return efi.NilHandle, efi.NotFound
	}
	spec, ok := p.lookupFile(device, last.Text)
	if !ok {
		return efi.NilHandle, efi.NotFound
	}
	if spec.LoadStatus.IsError() {
		return efi.NilHandle, spec.LoadStatus
	}

	h, obj := p.addObject(nil)
	info := &efi.LoadedImage{
		DeviceHandle: device,
		FilePath:     p.objects[device].path.AppendFile(last.Text),
		CodeType:     spec.CodeType,
		Code:         spec.Code,
	}
	img := &image{spec: spec, info: info}
	p.images[h] = img
	obj.protocols[efi.ProtoLoadedImage] = info
	if spec.Name != "" {
		cn := componentName{name: spec.Name}
		obj.protocols[efi.ProtoComponentName] = cn
		obj.protocols[efi.ProtoComponentName2] = cn
	}
	return h, efi.Success
}

func (p *Platform) StartImage(h efi.Handle) efi.Status {
	img, ok := p.images[h]
	if !ok {
		return efi.InvalidParameter
	}
	if img.spec.StartStatus.IsError() {
		return img.spec.StartStatus
	}
	img.started = true
	return efi.Success
}

func (p *Platform) UnloadImage(h efi.Handle) efi.Status {
	img, ok := p.images[h]
	if !ok {
		return efi.InvalidParameter
	}
	if img.spec.UnloadStatus.IsError() {
		return img.spec.UnloadStatus
	}
	// A driver's produced filesystems disappear with it.
	for _, controller := range img.serviced {
		if obj, ok := p.objects[controller]; ok {
			delete(obj.protocols, efi.ProtoSimpleFS)
			p.removeAgentEntries(obj, h)
			if img.agent != efi.NilHandle {
				p.removeAgentEntries(obj, img.agent)
			}
		}
	}
	delete(p.images, h)
	return efi.Success
}

func (p *Platform) ConnectController(controller efi.Handle, drivers []efi.Handle, recursive bool) efi.Status {
	if st, ok := p.connectErr[controller]; ok && st.IsError() {
		return st
	}
	obj, ok := p.objects[controller]
	if !ok {
		return efi.InvalidParameter
	}
	connected := false
	for _, d := range drivers {
		img, ok := p.images[d]
		if !ok || !img.started || img.spec.Driver == nil {
			continue
		}
		vol := img.spec.Driver.Volume
		if vol == nil {
			continue
		}
		obj.protocols[efi.ProtoSimpleFS] = vol
		obj.fsDelay = vol.NotReadyOpens
		obj.openInfo[efi.ProtoDiskIO] = append(obj.openInfo[efi.ProtoDiskIO],
			efi.OpenInfoEntry{Agent: d, Attributes: efi.AttrByDriver})
		img.serviced = append(img.serviced, controller)
		connected = true
	}
	if !connected {
		return efi.NotFound
	}
	return efi.Success
}

func (p *Platform) DisconnectController(controller, agent efi.Handle) efi.Status {
	if st, ok := p.disconnectErr[agentKey{controller, agent}]; ok && st.IsError() {
		return st
	}
	obj, ok := p.objects[controller]
	if !ok {
		return efi.InvalidParameter
	}
	p.removeAgentEntries(obj, agent)
	return efi.Success
}

func (p *Platform) removeAgentEntries(obj *object, agent efi.Handle) {
	for proto, entries := range obj.openInfo {
		kept := entries[:0]
		for _, e := range entries {
			if e.Agent != agent {
				kept = append(kept, e)
			}
		}
		obj.openInfo[proto] = kept
	}
}

func (p *Platform) DevicePathForHandle(h efi.Handle) *efi.DevicePath {
	obj, ok := p.objects[h]
	if !ok {
		return nil
	}
	return obj.path
}

func (p *Platform) FileDevicePath(h efi.Handle, path string) (*efi.DevicePath, efi.Status) {
	obj, ok := p.objects[h]
	if !ok || obj.path == nil {
		return nil, efi.InvalidParameter
	}
	dp := obj.path.AppendFile(path)
	p.alloc(dp)
	return dp, efi.Success
}

func (p *Platform) Release(res any) {
	switch p.allocs[res] {
	case 1:
		p.allocs[res] = 0
	case 0:
		if _, tracked := p.allocs[res]; tracked {
			p.doubleFrees++
		} else {
			p.wildReleases++
		}
	}
}

func (p *Platform) Stall(d time.Duration) {
	p.stalls = append(p.stalls, d)
}

func (p *Platform) WaitForKey() efi.Status {
	p.keyWaits++
	return efi.Success
}

func (p *Platform) SecureBootStatus() int {
	return p.secureBoot
}

func (p *Platform) handleForPath(path *efi.DevicePath) efi.Handle {
	for _, h := range p.order {
		if p.objects[h].path.Compare(path) == 0 {
			return h
		}
	}
	return efi.NilHandle
}

type componentName struct {
	name string
}

func (c componentName) DriverName() (string, efi.Status) {
	return c.name, efi.Success
}
