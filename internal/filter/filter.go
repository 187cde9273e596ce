// Package filter builds classic BPF programs for raw link-layer sockets.
package filter

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/etherlab/internal/core"
)

// DefaultSnapLen is the number of bytes an accepting program keeps.
const DefaultSnapLen = 262144

// rejectIf is one test of a program: load a value, drop the frame when the
// jump condition holds.
type rejectIf struct {
	load bpf.Instruction
	cond bpf.JumpTest
	val  uint32
}

// program lays out the tests followed by accept and reject returns.
func program(tests []rejectIf, snapLen uint32) []bpf.Instruction {
	n := 2 * len(tests)
	insns := make([]bpf.Instruction, 0, n+2)
	for i, t := range tests {
		jump := 2*i + 1
		insns = append(insns, t.load, bpf.JumpIf{Cond: t.cond, Val: t.val, SkipTrue: uint8(n - jump)})
	}
	return append(insns, bpf.RetConstant{Val: snapLen}, bpf.RetConstant{Val: 0})
}

func sourceTests(src net.HardwareAddr) []rejectIf {
	if len(src) != core.AddrLen {
		return nil
	}
	return []rejectIf{
		{bpf.LoadAbsolute{Off: 6, Size: 4}, bpf.JumpNotEqual, binary.BigEndian.Uint32(src[0:4])},
		{bpf.LoadAbsolute{Off: 10, Size: 2}, bpf.JumpNotEqual, uint32(binary.BigEndian.Uint16(src[4:6]))},
	}
}

// LengthFrames accepts frames whose length/type field is a length and,
// when src is set, whose source address is src.
func LengthFrames(src net.HardwareAddr) []bpf.Instruction {
	tests := []rejectIf{
		{bpf.LoadAbsolute{Off: 12, Size: 2}, bpf.JumpGreaterThan, core.MaxPayloadLen},
	}
	return program(append(tests, sourceTests(src)...), DefaultSnapLen)
}

// TaggedFrames accepts frames carrying EtherType tag and, when src is set,
// whose source address is src.
func TaggedFrames(tag uint16, src net.HardwareAddr) []bpf.Instruction {
	tests := []rejectIf{
		{bpf.LoadAbsolute{Off: 12, Size: 2}, bpf.JumpNotEqual, uint32(tag)},
	}
	return program(append(tests, sourceTests(src)...), DefaultSnapLen)
}

// Assemble converts a program into kernel form.
func Assemble(insns []bpf.Instruction) ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, fmt.Errorf("assemble bpf program: %w", err)
	}
	return raw, nil
}

// Compile compiles a pcap filter expression for Ethernet links.
func Compile(expr string, snapLen int) ([]bpf.RawInstruction, error) {
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: compile filter %q: %w", core.ErrConfig, expr, err)
	}

	raw := make([]bpf.RawInstruction, len(insns))
	for i, ins := range insns {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw, nil
}
