// Package iface holds the router's configured interface set: the names,
// MAC addresses, and IPv4 addresses the forwarding engine treats as "us".
package iface

import (
	"github.com/cngai/router/ethernet"
	"github.com/cngai/router/internal"
	"github.com/cngai/router/wire"
)

// Interface is an immutable (name, mac, ip) tuple. Interfaces are created in
// bulk by [Registry.Reset] and destroyed together on the next reset.
type Interface struct {
	Name string
	MAC  [ethernet.AddrLen]byte
	IP   [4]byte
}

func (i Interface) String() string {
	return i.Name + "(" + wire.IPv4String(i.IP) + "," + string(ethernet.AppendAddr(nil, i.MAC)) + ")"
}

// Registry holds the set of configured interfaces. The zero value is an
// empty registry. Reads are safe for concurrent use as long as they do not
// overlap a call to Reset; the host is responsible for quiescing onPacket
// around topology changes, per the reset contract.
type Registry struct {
	ifaces []Interface
}

// Reset replaces the interface set. Each ifaces that carries an empty IP
// (i.e. its name was absent from the interface IP-configuration map) is
// skipped, matching the host contract in which reset(ports) only installs
// interfaces the IP map actually covers.
func (r *Registry) Reset(ifaces []Interface) {
	r.ifaces = r.ifaces[:0]
	for _, i := range ifaces {
		if internal.IsZeroed(i.IP) {
			continue
		}
		r.ifaces = append(r.ifaces, i)
	}
}

// FindByName returns the interface named name, if configured.
func (r *Registry) FindByName(name string) (Interface, bool) {
	for _, i := range r.ifaces {
		if i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

// FindByMAC returns the interface whose MAC address matches mac, if configured.
func (r *Registry) FindByMAC(mac [ethernet.AddrLen]byte) (Interface, bool) {
	for _, i := range r.ifaces {
		if i.MAC == mac {
			return i, true
		}
	}
	return Interface{}, false
}

// FindByIP returns the interface whose IPv4 address matches ip, if configured.
func (r *Registry) FindByIP(ip [4]byte) (Interface, bool) {
	for _, i := range r.ifaces {
		if i.IP == ip {
			return i, true
		}
	}
	return Interface{}, false
}

// All returns the configured interfaces. The returned slice must not be
// retained past the next call to Reset.
func (r *Registry) All() []Interface {
	return r.ifaces
}
