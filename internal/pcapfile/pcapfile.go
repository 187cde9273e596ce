// Package pcapfile records frames to pcap files.
package pcapfile

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DefaultSnapLen is used when Create is given a non-positive snap length.
const DefaultSnapLen = 65535

// Writer appends Ethernet frames to a pcap file. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	buf     *bufio.Writer
	w       *pcapgo.Writer
	snapLen int
	count   int
	closed  bool
}

// Create truncates path and writes the pcap file header.
func Create(path string, snapLen int) (*Writer, error) {
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write pcap header %s: %w", path, err)
	}
	return &Writer{f: f, buf: buf, w: w, snapLen: snapLen}, nil
}

// WriteFrame appends one frame captured or sent at ts. Frames longer than
// the snap length are truncated in the file.
func (w *Writer) WriteFrame(b []byte, ts time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	data := b
	if len(data) > w.snapLen {
		data = data[:w.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(b),
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write pcap record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of frames written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes the file. Calling it again is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("flush pcap: %w", err)
	}
	return w.f.Close()
}
