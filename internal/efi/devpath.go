package efi

import "strings"

// NodeType classifies a device path node.
type NodeType uint8

const (
	NodeHardware NodeType = iota + 1
	NodeMessaging
	NodeMedia
	NodeFile
)

// PathNode is one element of a device path.
type PathNode struct {
	Type NodeType
	Text string
}

// DevicePath is an ordered description of the device stack leading to a
// handle, root first. Paths returned by DevicePathForHandle are facade-owned
// and must not be passed to Release; paths built with FileDevicePath are
// caller-owned and must be released exactly once.
type DevicePath struct {
	Nodes []PathNode
}

// Parent returns the path with the final node removed, or nil if the path has
// no parent. The result is a derived value, independent of the receiver.
func (p *DevicePath) Parent() *DevicePath {
	if p == nil || len(p.Nodes) < 2 {
		return nil
	}
	nodes := make([]PathNode, len(p.Nodes)-1)
	copy(nodes, p.Nodes[:len(p.Nodes)-1])
	return &DevicePath{Nodes: nodes}
}

// Compare orders two device paths node by node. It returns 0 only for
// identical paths; nil sorts before everything except nil.
func (p *DevicePath) Compare(other *DevicePath) int {
	switch {
	case p == nil && other == nil:
		return 0
	case p == nil:
		return -1
	case other == nil:
		return 1
	}
	for i := 0; i < len(p.Nodes) && i < len(other.Nodes); i++ {
		a, b := p.Nodes[i], other.Nodes[i]
		if a.Type != b.Type {
			if a.Type < b.Type {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.Text, b.Text); c != 0 {
			return c
		}
	}
	switch {
	case len(p.Nodes) < len(other.Nodes):
		return -1
	case len(p.Nodes) > len(other.Nodes):
		return 1
	}
	return 0
}

// Text renders the path in the usual firmware notation.
func (p *DevicePath) Text() string {
	if p == nil || len(p.Nodes) == 0 {
		return ""
	}
	parts := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		parts[i] = n.Text
	}
	return strings.Join(parts, "/")
}

// AppendFile returns a new path with a file node appended.
func (p *DevicePath) AppendFile(path string) *DevicePath {
	var nodes []PathNode
	if p != nil {
		nodes = make([]PathNode, len(p.Nodes), len(p.Nodes)+1)
		copy(nodes, p.Nodes)
	}
	return &DevicePath{Nodes: append(nodes, PathNode{Type: NodeFile, Text: path})}
}
