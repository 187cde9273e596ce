package chunker

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/payload"
)

// failingSource reports a length it cannot deliver.
type failingSource struct{ n int }

func (s *failingSource) Len() int                { return s.n }
func (s *failingSource) CopyNext(_ []byte) error { return core.ErrShortRead }
func (s *failingSource) Close() error            { return nil }

func collect(t *testing.T, c *Chunker, buf []byte) ([]Chunk, [][]byte) {
	t.Helper()
	var chunks []Chunk
	var bodies [][]byte
	for ch, err := range c.All(buf) {
		require.NoError(t, err)
		chunks = append(chunks, ch)
		bodies = append(bodies, append([]byte(nil), buf[:ch.Len]...))
	}
	return chunks, bodies
}

func TestHelloWorldSingleChunk(t *testing.T) {
	c, err := New(payload.NewInline([]byte("Hello, World")), 1500)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())

	buf := make([]byte, 1500)
	for i := range buf {
		buf[i] = 0xaa
	}
	chunks, bodies := collect(t, c, buf)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Index: 0, DataLen: 12, Len: 46}, chunks[0])
	assert.Equal(t, 34, chunks[0].Padding(false))
	assert.Equal(t, "Hello, World", string(bodies[0][:12]))
	assert.Equal(t, make([]byte, 34), bodies[0][12:])
	assert.Equal(t, 0, c.Remaining())
}

func TestSplitIntoMaxPayloadChunks(t *testing.T) {
	data := make([]byte, 3000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	c, err := New(payload.NewInline(data), 1500)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	chunks, bodies := collect(t, c, make([]byte, 1500))
	require.Len(t, chunks, 2)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, 1500, ch.DataLen)
		assert.Equal(t, 1500, ch.Len)
	}
	assert.Equal(t, data, append(bodies[0], bodies[1]...))
}

func TestReconstruction(t *testing.T) {
	sizes := []int{1, 45, 46, 47, 1499, 1500, 1501, 2999, 4567}
	for _, size := range sizes {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i*7 + 3)
		}
		c, err := New(payload.NewInline(data), 1500)
		require.NoError(t, err)

		chunks, bodies := collect(t, c, make([]byte, 1500))
		assert.Len(t, chunks, (size+1499)/1500, "size %d", size)

		var got []byte
		for i, ch := range chunks {
			assert.GreaterOrEqual(t, ch.Len, core.MinPayloadLen)
			assert.LessOrEqual(t, ch.Len, 1500)
			got = append(got, bodies[i][:ch.DataLen]...)
			for _, b := range bodies[i][ch.DataLen:] {
				assert.Zero(t, b)
			}
		}
		assert.Equal(t, data, got, "size %d", size)
	}
}

func TestZeroLengthYieldsNothing(t *testing.T) {
	c, err := New(payload.NewInline(nil), 1500)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count())

	_, ok, err := c.Next(make([]byte, 1500))
	require.NoError(t, err)
	assert.False(t, ok)

	chunks, _ := collect(t, c, make([]byte, 1500))
	assert.Empty(t, chunks)
}

func TestLengthPrefix(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	c, err := New(payload.NewInline(data), 60, WithLengthPrefix())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	chunks, bodies := collect(t, c, make([]byte, 60))
	require.Len(t, chunks, 2)

	assert.Equal(t, Chunk{Index: 0, DataLen: 58, Len: 60}, chunks[0])
	assert.Equal(t, uint16(58), binary.BigEndian.Uint16(bodies[0]))
	assert.Equal(t, data[:58], bodies[0][2:])

	assert.Equal(t, Chunk{Index: 1, DataLen: 42, Len: 46}, chunks[1])
	assert.Equal(t, 2, chunks[1].Padding(true))
	assert.Equal(t, uint16(42), binary.BigEndian.Uint16(bodies[1]))
	assert.Equal(t, data[58:], bodies[1][2:44])
}

func TestNewRejectsNoRoom(t *testing.T) {
	_, err := New(payload.NewInline([]byte("x")), 0)
	assert.True(t, errors.Is(err, core.ErrConfig))

	_, err = New(payload.NewInline([]byte("x")), 2, WithLengthPrefix())
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestBufferTooSmall(t *testing.T) {
	c, err := New(payload.NewInline([]byte("x")), 1500)
	require.NoError(t, err)
	_, _, err = c.Next(make([]byte, 10))
	assert.True(t, errors.Is(err, core.ErrBufferTooSmall))
}

func TestSourceErrorEndsIteration(t *testing.T) {
	c, err := New(&failingSource{n: 10}, 1500)
	require.NoError(t, err)

	var errs []error
	for _, err := range c.All(make([]byte, 1500)) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], core.ErrShortRead))
	assert.Equal(t, 10, c.Remaining())
}
