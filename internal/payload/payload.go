// Package payload provides the byte sources an injection run draws frames from.
package payload

import (
	"errors"
	"fmt"
	"io"
	"os"

	"firestige.xyz/etherlab/internal/core"
)

// Source is a finite, forward-only byte stream of known length.
type Source interface {
	// Len returns the total payload length, fixed at open time.
	Len() int
	// CopyNext fills dst with the next len(dst) bytes and advances the cursor.
	CopyNext(dst []byte) error
	// Close releases the source.
	Close() error
}

// Spec selects a source. Exactly one of Message and File must be set.
type Spec struct {
	Message string
	File    string
}

// Open builds the Source described by spec.
func Open(spec Spec) (Source, error) {
	switch {
	case spec.Message != "" && spec.File != "":
		return nil, fmt.Errorf("%w: message and file are mutually exclusive", core.ErrConfig)
	case spec.File != "":
		return OpenFile(spec.File)
	default:
		return NewInline([]byte(spec.Message)), nil
	}
}

// Inline serves a message held in memory.
type Inline struct {
	buf    []byte
	cursor int
}

// NewInline returns a Source over msg. msg is not copied.
func NewInline(msg []byte) *Inline {
	return &Inline{buf: msg}
}

func (s *Inline) Len() int { return len(s.buf) }

func (s *Inline) CopyNext(dst []byte) error {
	if len(dst) > len(s.buf)-s.cursor {
		return fmt.Errorf("%w: want %d bytes, %d remain", core.ErrShortRead, len(dst), len(s.buf)-s.cursor)
	}
	s.cursor += copy(dst, s.buf[s.cursor:])
	return nil
}

func (s *Inline) Close() error { return nil }

// File streams a regular file. Its size is captured once when opened.
type File struct {
	f      *os.File
	size   int
	cursor int
	closed bool
}

// OpenFile opens path for streaming.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", core.ErrShortRead, path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", core.ErrShortRead, path, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", core.ErrConfig, path)
	}
	return &File{f: f, size: int(st.Size())}, nil
}

func (s *File) Len() int { return s.size }

func (s *File) CopyNext(dst []byte) error {
	if s.closed {
		return fmt.Errorf("%w: %w", core.ErrShortRead, os.ErrClosed)
	}
	n, err := io.ReadFull(s.f, dst)
	s.cursor += n
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: want %d bytes at offset %d, got %d: %w", core.ErrShortRead, len(dst), s.cursor-n, n, err)
		}
		return fmt.Errorf("%w: %w", core.ErrShortRead, err)
	}
	return nil
}

// Close closes the underlying file. Calling it again is a no-op.
func (s *File) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
