// Package chunker splits a payload source into frame-sized chunks.
package chunker

import (
	"encoding/binary"
	"fmt"
	"iter"

	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/payload"
)

// Chunk describes the payload written into the caller's buffer by one step.
type Chunk struct {
	// Index is the zero based position of the chunk in the run.
	Index int
	// DataLen is the number of source bytes carried.
	DataLen int
	// Len is the number of payload bytes to transmit, including the length
	// prefix in tagged mode and zero padding up to the minimum payload.
	Len int
}

// Padding returns the number of zero bytes appended to reach the minimum frame.
func (c Chunk) Padding(prefixed bool) int {
	used := c.DataLen
	if prefixed {
		used += core.MessagePrefixLen
	}
	return c.Len - used
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLengthPrefix makes every chunk start with its big-endian data length.
func WithLengthPrefix() Option {
	return func(c *Chunker) { c.prefixed = true }
}

// Chunker lazily yields chunks of at most maxPayload bytes from a source.
// It is single use and not safe for concurrent use.
type Chunker struct {
	src        payload.Source
	maxPayload int
	prefixed   bool
	remaining  int
	index      int
}

// New returns a Chunker over src.
func New(src payload.Source, maxPayload int, opts ...Option) (*Chunker, error) {
	c := &Chunker{src: src, maxPayload: maxPayload, remaining: src.Len()}
	for _, opt := range opts {
		opt(c)
	}
	if c.room() <= 0 {
		return nil, fmt.Errorf("%w: max payload %d leaves no room for data", core.ErrConfig, maxPayload)
	}
	if c.prefixed && c.room() > 0xffff {
		return nil, fmt.Errorf("%w: max payload %d overflows the length prefix", core.ErrConfig, maxPayload)
	}
	return c, nil
}

func (c *Chunker) room() int {
	if c.prefixed {
		return c.maxPayload - core.MessagePrefixLen
	}
	return c.maxPayload
}

// Count returns the total number of chunks the source yields.
func (c *Chunker) Count() int {
	total := c.src.Len()
	room := c.room()
	return (total + room - 1) / room
}

// Remaining returns the number of source bytes not yet chunked.
func (c *Chunker) Remaining() int { return c.remaining }

// Next copies the next chunk into buf, the payload region of a frame
// buffer. ok is false once the source is exhausted; an empty source yields
// no chunks at all.
func (c *Chunker) Next(buf []byte) (ch Chunk, ok bool, err error) {
	if c.remaining == 0 {
		return Chunk{}, false, nil
	}

	off := 0
	if c.prefixed {
		off = core.MessagePrefixLen
	}
	n := min(c.remaining, c.room())
	need := max(off+n, core.MinPayloadLen)
	if len(buf) < need {
		return Chunk{}, false, fmt.Errorf("%w: chunk needs %d bytes, have %d", core.ErrBufferTooSmall, need, len(buf))
	}

	if err := c.src.CopyNext(buf[off : off+n]); err != nil {
		return Chunk{}, false, fmt.Errorf("chunk %d: %w", c.index, err)
	}
	if c.prefixed {
		binary.BigEndian.PutUint16(buf, uint16(n))
	}
	clear(buf[off+n : need])

	ch = Chunk{Index: c.index, DataLen: n, Len: need}
	c.remaining -= n
	c.index++
	return ch, true, nil
}

// All iterates over the remaining chunks. A source error is yielded once
// and ends the iteration.
func (c *Chunker) All(buf []byte) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for {
			ch, ok, err := c.Next(buf)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if !ok || !yield(ch, nil) {
				return
			}
		}
	}
}
