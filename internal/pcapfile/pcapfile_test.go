package pcapfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	w, err := Create(path, 0)
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	frames := [][]byte{make([]byte, 60), make([]byte, 1514)}
	frames[0][0] = 0xff
	frames[1][13] = 0x2e
	for i, f := range frames {
		require.NoError(t, w.WriteFrame(f, ts.Add(time.Duration(i)*time.Millisecond)))
	}
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteFrame(frames[0], ts), os.ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())
	assert.Equal(t, uint32(DefaultSnapLen), r.Snaplen())

	for i, want := range frames {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, want, data)
		assert.Equal(t, len(want), ci.Length)
		assert.True(t, ci.Timestamp.Equal(ts.Add(time.Duration(i)*time.Millisecond)))
	}
}

func TestSnapLenTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.pcap")
	w, err := Create(path, 64)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(make([]byte, 100), time.Now()))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Len(t, data, 64)
	assert.Equal(t, 100, ci.Length)
}

func TestCreateInMissingDirectory(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "x.pcap"), 0)
	assert.Error(t, err)
}
