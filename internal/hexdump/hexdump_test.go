package hexdump

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRowFormat(t *testing.T) {
	b := make([]byte, 16)
	copy(b, "Hello, World")

	got := Dumper{}.String(b)
	want := "0000  48 65 6c 6c 6f 2c 20 57 6f 72 6c 64 00 00 00 00     Hello, World....\n"
	assert.Equal(t, want, got)
}

func TestDumpPartialRowIsPadded(t *testing.T) {
	got := Dumper{}.String([]byte{0x41, 0x0a, 0xff})
	want := "0000  41 0a ff " + strings.Repeat(" ", 39) + "    A..\n"
	assert.Equal(t, want, got)
}

func TestDumpRowCount(t *testing.T) {
	tests := []struct {
		n, width, rows int
	}{
		{0, 16, 0},
		{1, 16, 1},
		{16, 16, 1},
		{17, 16, 2},
		{60, 16, 4},
		{64, 16, 4},
		{1514, 16, 95},
		{64, 8, 8},
	}
	for _, tt := range tests {
		out := Dumper{Width: tt.width}.String(make([]byte, tt.n))
		assert.Equal(t, tt.rows, strings.Count(out, "\n"), "n=%d width=%d", tt.n, tt.width)
	}
}

func TestDumpOffsets(t *testing.T) {
	out := Dumper{}.String(make([]byte, 40))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "0000  "))
	assert.True(t, strings.HasPrefix(lines[1], "0010  "))
	assert.True(t, strings.HasPrefix(lines[2], "0020  "))
}

func TestDumpIdempotent(t *testing.T) {
	b := []byte("\x00\x01 the quick brown fox jumps over the lazy dog \x7f\x80")
	var first, second bytes.Buffer
	require.NoError(t, Dump(&first, b))
	require.NoError(t, Dump(&second, b))
	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, first.String(), Dumper{Width: DefaultWidth}.String(b))
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, byte('.'), printable(0x1f))
	assert.Equal(t, byte(' '), printable(0x20))
	assert.Equal(t, byte('~'), printable(0x7e))
	assert.Equal(t, byte('.'), printable(0x7f))
	assert.Equal(t, byte('.'), printable(0xff))
}
