package iface

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/etherlab/internal/core"
)

type fakeQuerier struct {
	links map[string]LinkInfo
	err   error
}

func (f *fakeQuerier) Query(name string) (LinkInfo, error) {
	if f.err != nil {
		return LinkInfo{}, f.err
	}
	info, ok := f.links[name]
	if !ok {
		return LinkInfo{}, core.ErrInterfaceNotFound
	}
	return info, nil
}

var eth0MAC = net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}

func newFake() *fakeQuerier {
	return &fakeQuerier{links: map[string]LinkInfo{
		"eth0":   {Name: "eth0", Index: 2, MTU: 1500, HardwareAddr: eth0MAC, EncapType: "ether"},
		"jumbo0": {Name: "jumbo0", Index: 3, MTU: 9000, HardwareAddr: eth0MAC, EncapType: "ether"},
		"lo":     {Name: "lo", Index: 1, MTU: 65536, HardwareAddr: make(net.HardwareAddr, 6), EncapType: "loopback"},
		"wg0":    {Name: "wg0", Index: 4, MTU: 1420, EncapType: "none"},
		"bad0":   {Name: "bad0", Index: 5, MTU: 0, EncapType: "ether"},
	}}
}

func TestResolveEthernet(t *testing.T) {
	r := NewResolver(newFake())
	ifi, err := r.Resolve("eth0")
	require.NoError(t, err)
	assert.Equal(t, core.Interface{Name: "eth0", Index: 2, HardwareAddr: eth0MAC, MTU: 1500}, ifi)
	assert.Equal(t, 1514, BufferSize(ifi.MTU))
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(newFake())
	_, err := r.Resolve("nope0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrResolution))
	assert.True(t, errors.Is(err, core.ErrInterfaceNotFound))
	assert.False(t, IsNotEthernet(err))
}

func TestResolveNotEthernetStillReturnsDescriptor(t *testing.T) {
	r := NewResolver(newFake())

	ifi, err := r.Resolve("lo")
	require.Error(t, err)
	assert.True(t, IsNotEthernet(err))
	assert.False(t, errors.Is(err, core.ErrResolution))
	assert.Equal(t, 1, ifi.Index)
	assert.Equal(t, 65536, ifi.MTU)

	// No hardware address at all: a zero address is substituted.
	ifi, err = r.Resolve("wg0")
	assert.True(t, IsNotEthernet(err))
	assert.Equal(t, net.HardwareAddr{0, 0, 0, 0, 0, 0}, ifi.HardwareAddr)
}

func TestResolveInvalid(t *testing.T) {
	r := NewResolver(newFake())

	_, err := r.Resolve("")
	assert.True(t, errors.Is(err, core.ErrResolution))

	_, err = r.Resolve("bad0")
	assert.True(t, errors.Is(err, core.ErrResolution))

	r = NewResolver(&fakeQuerier{err: errors.New("netlink: permission denied")})
	_, err = r.Resolve("eth0")
	assert.True(t, errors.Is(err, core.ErrResolution))
}

func TestMaxPayload(t *testing.T) {
	assert.Equal(t, 1500, MaxPayload(core.Interface{MTU: 1500}, false))
	assert.Equal(t, 1500, MaxPayload(core.Interface{MTU: 9000}, false))
	assert.Equal(t, 1280, MaxPayload(core.Interface{MTU: 1280}, false))
	assert.Equal(t, 9000, MaxPayload(core.Interface{MTU: 9000}, true))
}
