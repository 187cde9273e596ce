package rawsock

import (
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/packet"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/etherlab/internal/core"
)

// Socket is a SOCK_RAW AF_PACKET socket bound to one interface with
// protocol ETH_P_ALL.
type Socket struct {
	conn    *packet.Conn
	ifindex int
}

// Listen opens a Socket on ifi.
func Listen(ifi core.Interface) (*Socket, error) {
	conn, err := packet.Listen(netInterface(ifi), packet.Raw, unix.ETH_P_ALL, nil)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", ifi.Name, err)
	}
	return &Socket{conn: conn, ifindex: ifi.Index}, nil
}

func netInterface(ifi core.Interface) *net.Interface {
	return &net.Interface{
		Index:        ifi.Index,
		MTU:          ifi.MTU,
		Name:         ifi.Name,
		HardwareAddr: ifi.HardwareAddr,
	}
}

func (s *Socket) ReadFrom(b []byte) (int, net.HardwareAddr, error) {
	n, addr, err := s.conn.ReadFrom(b)
	if err != nil {
		return n, nil, err
	}
	var src net.HardwareAddr
	if pa, ok := addr.(*packet.Addr); ok {
		src = pa.HardwareAddr
	}
	return n, src, nil
}

// WriteTo sends b through the bound interface. to must name that interface.
func (s *Socket) WriteTo(b []byte, to LinkAddr) (int, error) {
	if to.Ifindex != s.ifindex {
		return 0, fmt.Errorf("%w: socket bound to ifindex %d, asked for %d", core.ErrTransmit, s.ifindex, to.Ifindex)
	}
	return s.conn.WriteTo(b, &packet.Addr{HardwareAddr: to.Addr})
}

func (s *Socket) SetPromiscuous(enable bool) error { return s.conn.SetPromiscuous(enable) }

func (s *Socket) SetBPF(filter []bpf.RawInstruction) error { return s.conn.SetBPF(filter) }

func (s *Socket) SetReadDeadline(t time.Time) error { return s.conn.SetReadDeadline(t) }

func (s *Socket) Close() error { return s.conn.Close() }
