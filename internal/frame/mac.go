package frame

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"firestige.xyz/etherlab/internal/core"
)

// ParseMAC parses a colon separated hardware address with one or two hex
// digits per octet, e.g. "0:1b:21:a:b:c". Exactly six octets are required.
func ParseMAC(s string) (net.HardwareAddr, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != core.AddrLen {
		return nil, fmt.Errorf("%w: %q: want %d octets, got %d", core.ErrAddressParse, s, core.AddrLen, len(parts))
	}

	addr := make(net.HardwareAddr, core.AddrLen)
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return nil, fmt.Errorf("%w: %q: octet %d", core.ErrAddressParse, s, i)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: octet %d: %w", core.ErrAddressParse, s, i, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// MustParseMAC is like ParseMAC but panics on error. Intended for tests and constants.
func MustParseMAC(s string) net.HardwareAddr {
	addr, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return addr
}
