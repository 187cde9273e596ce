// Package hexdump renders bytes as offset / hex / ASCII rows.
package hexdump

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultWidth is the number of bytes rendered per row.
const DefaultWidth = 16

// Dumper writes rows of the form
//
//	0000  48 65 6c 6c 6f 2c 20 57 6f 72 6c 64 00 00 00 00     Hello, World....
//
// A zero Width means DefaultWidth.
type Dumper struct {
	Width int
}

// Dump writes the rows for b to w. Empty input writes nothing.
func (d Dumper) Dump(w io.Writer, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	width := d.Width
	if width <= 0 {
		width = DefaultWidth
	}

	bw := bufio.NewWriter(w)
	var hex, ascii strings.Builder
	for off := 0; off < len(b); off += width {
		row := b[off:min(off+width, len(b))]
		hex.Reset()
		ascii.Reset()
		for _, c := range row {
			fmt.Fprintf(&hex, "%02x ", c)
			ascii.WriteByte(printable(c))
		}
		fmt.Fprintf(bw, "%04x  %-*s    %s\n", off, width*3, hex.String(), ascii.String())
	}
	return bw.Flush()
}

// String returns the rows for b.
func (d Dumper) String(b []byte) string {
	var sb strings.Builder
	_ = d.Dump(&sb, b)
	return sb.String()
}

// Dump writes b to w using the default width.
func Dump(w io.Writer, b []byte) error {
	return Dumper{}.Dump(w, b)
}

func printable(c byte) byte {
	if c < 0x20 || c > 0x7e {
		return '.'
	}
	return c
}
