package frame

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Describe renders a one-line summary of a raw frame, e.g.
// "00:11:22:33:44:55 > ff:ff:ff:ff:ff:ff len 46 [Ethernet Payload]".
func Describe(b []byte) string {
	pkt := gopacket.NewPacket(b, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return fmt.Sprintf("undecodable frame (%d bytes)", len(b))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s > %s", eth.SrcMAC, eth.DstMAC)
	if eth.EthernetType == layers.EthernetTypeLLC {
		fmt.Fprintf(&sb, " len %d", eth.Length)
	} else {
		fmt.Fprintf(&sb, " type 0x%04x (%s)", uint16(eth.EthernetType), eth.EthernetType)
	}

	names := make([]string, 0, 4)
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}
	fmt.Fprintf(&sb, " [%s]", strings.Join(names, " "))
	return sb.String()
}
