package payload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/etherlab/internal/core"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestInline(t *testing.T) {
	src := NewInline([]byte("Hello, World"))
	assert.Equal(t, 12, src.Len())

	buf := make([]byte, 5)
	require.NoError(t, src.CopyNext(buf))
	assert.Equal(t, "Hello", string(buf))

	buf = make([]byte, 7)
	require.NoError(t, src.CopyNext(buf))
	assert.Equal(t, ", World", string(buf))

	err := src.CopyNext(make([]byte, 1))
	assert.True(t, errors.Is(err, core.ErrShortRead))

	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
}

func TestFile(t *testing.T) {
	data := make([]byte, 3000)
	for i := range data {
		data[i] = byte(i)
	}
	src, err := OpenFile(writeTemp(t, data))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 3000, src.Len())

	var got []byte
	buf := make([]byte, 1500)
	for range 2 {
		require.NoError(t, src.CopyNext(buf))
		got = append(got, buf...)
	}
	assert.Equal(t, data, got)

	err = src.CopyNext(buf)
	assert.True(t, errors.Is(err, core.ErrShortRead))
}

func TestFileShortRead(t *testing.T) {
	src, err := OpenFile(writeTemp(t, []byte("abc")))
	require.NoError(t, err)
	defer src.Close()

	err = src.CopyNext(make([]byte, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrShortRead))
}

func TestFileCloseIdempotent(t *testing.T) {
	src, err := OpenFile(writeTemp(t, []byte("abc")))
	require.NoError(t, err)

	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())

	err = src.CopyNext(make([]byte, 1))
	assert.True(t, errors.Is(err, core.ErrShortRead))
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrShortRead))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpenFileDirectory(t *testing.T) {
	_, err := OpenFile(t.TempDir())
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestOpen(t *testing.T) {
	src, err := Open(Spec{Message: "hi"})
	require.NoError(t, err)
	assert.IsType(t, &Inline{}, src)
	assert.Equal(t, 2, src.Len())

	src, err = Open(Spec{File: writeTemp(t, []byte("abcd"))})
	require.NoError(t, err)
	assert.IsType(t, &File{}, src)
	assert.Equal(t, 4, src.Len())
	require.NoError(t, src.Close())

	_, err = Open(Spec{Message: "hi", File: "x"})
	assert.True(t, errors.Is(err, core.ErrConfig))

	src, err = Open(Spec{})
	require.NoError(t, err)
	assert.Equal(t, 0, src.Len())
}
