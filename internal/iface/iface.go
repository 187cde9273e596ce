// Package iface resolves local network interfaces into descriptors.
package iface

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"firestige.xyz/etherlab/internal/core"
)

// encapEthernet is the netlink encapsulation name of ARPHRD_ETHER links.
const encapEthernet = "ether"

// LinkInfo is the raw link state reported by a Querier.
type LinkInfo struct {
	Name         string
	Index        int
	MTU          int
	HardwareAddr net.HardwareAddr
	EncapType    string
}

// Querier looks up link state by interface name.
type Querier interface {
	Query(name string) (LinkInfo, error)
}

// NetlinkQuerier queries the kernel over rtnetlink.
type NetlinkQuerier struct{}

func (NetlinkQuerier) Query(name string) (LinkInfo, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return LinkInfo{}, fmt.Errorf("%w: %s", core.ErrInterfaceNotFound, name)
		}
		return LinkInfo{}, fmt.Errorf("netlink lookup %s: %w", name, err)
	}
	attrs := link.Attrs()
	return LinkInfo{
		Name:         attrs.Name,
		Index:        attrs.Index,
		MTU:          attrs.MTU,
		HardwareAddr: attrs.HardwareAddr,
		EncapType:    attrs.EncapType,
	}, nil
}

// Resolver turns interface names into core.Interface descriptors.
type Resolver struct {
	q Querier
}

// NewResolver returns a Resolver backed by q, or by netlink when q is nil.
func NewResolver(q Querier) *Resolver {
	if q == nil {
		q = NetlinkQuerier{}
	}
	return &Resolver{q: q}
}

// Resolve returns the descriptor of the named interface.
//
// When the link is not Ethernet the descriptor is still returned together
// with an error wrapping core.ErrInterfaceNotEthernet, so callers may warn
// and carry on. All other failures wrap core.ErrResolution.
func (r *Resolver) Resolve(name string) (core.Interface, error) {
	if name == "" {
		return core.Interface{}, fmt.Errorf("%w: empty interface name", core.ErrResolution)
	}
	info, err := r.q.Query(name)
	if err != nil {
		return core.Interface{}, fmt.Errorf("%w: %w", core.ErrResolution, err)
	}
	if info.Index <= 0 {
		return core.Interface{}, fmt.Errorf("%w: %s: invalid index %d", core.ErrResolution, name, info.Index)
	}
	if info.MTU <= 0 {
		return core.Interface{}, fmt.Errorf("%w: %s: invalid mtu %d", core.ErrResolution, name, info.MTU)
	}

	ifi := core.Interface{
		Name:         name,
		Index:        info.Index,
		HardwareAddr: info.HardwareAddr,
		MTU:          info.MTU,
	}
	if info.EncapType != encapEthernet || len(info.HardwareAddr) != core.AddrLen {
		if len(ifi.HardwareAddr) != core.AddrLen {
			ifi.HardwareAddr = make(net.HardwareAddr, core.AddrLen)
		}
		return ifi, fmt.Errorf("%w: %s has link type %q", core.ErrInterfaceNotEthernet, name, info.EncapType)
	}
	return ifi, nil
}

// IsNotEthernet reports whether err only flags a non-Ethernet link.
func IsNotEthernet(err error) bool {
	return errors.Is(err, core.ErrInterfaceNotEthernet)
}

// BufferSize returns the frame buffer size for an MTU: header plus payload, no CRC.
func BufferSize(mtu int) int {
	return mtu + core.HeaderLen
}

// MaxPayload returns the largest payload a single frame may carry on ifi.
// Length-field frames are capped at 1500 bytes; tagged frames may use the
// full MTU.
func MaxPayload(ifi core.Interface, tagged bool) int {
	if tagged {
		return ifi.MTU
	}
	return min(ifi.MTU, core.MaxPayloadLen)
}
