package capture

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/frame"
	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/pcapfile"
)

// Consumer receives each captured frame. rec.Data is only valid during the
// call. A returned error stops the capture.
type Consumer interface {
	Consume(rec core.Record) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(rec core.Record) error

func (f ConsumerFunc) Consume(rec core.Record) error { return f(rec) }

// Multi fans a record out to every consumer in order, stopping at the first error.
func Multi(consumers ...Consumer) Consumer {
	return ConsumerFunc(func(rec core.Record) error {
		for _, c := range consumers {
			if err := c.Consume(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// DumpConsumer prints a header line and a hex dump for every frame.
type DumpConsumer struct {
	Out    io.Writer
	Dumper hexdump.Dumper
}

func (c *DumpConsumer) Consume(rec core.Record) error {
	if _, err := fmt.Fprintf(c.Out, "Captured at interface: %s frame from %s\n", rec.Interface, rec.Source); err != nil {
		return err
	}
	return c.Dumper.Dump(c.Out, rec.Data)
}

// MessageConsumer prints messages sent by the send and inject commands.
//
// In length mode only frames whose length/type field is a length are
// accepted and the first field bytes of the payload are printed. In tagged
// mode only frames carrying Tag are accepted and the prefixed message is
// printed. Frames from other sources are ignored when Source is set.
type MessageConsumer struct {
	Out    io.Writer
	Dumper hexdump.Dumper
	Source net.HardwareAddr
	Tagged bool
	Tag    uint16

	received int
}

// Received returns the number of accepted frames.
func (c *MessageConsumer) Received() int { return c.received }

func (c *MessageConsumer) Consume(rec core.Record) error {
	f, err := frame.Decode(rec.Data)
	if err != nil {
		log.GetLogger().WithError(err).Debug("ignoring runt frame")
		return nil
	}
	if c.Source != nil && !bytes.Equal(f.Src, c.Source) {
		return nil
	}

	var msg []byte
	if c.Tagged {
		if f.Field != c.Tag {
			return nil
		}
		if msg, err = f.Message(); err != nil {
			log.GetLogger().WithError(err).WithField("source", f.Src.String()).Warn("malformed tagged frame")
			return nil
		}
	} else {
		if !frame.IsLength(f.Field) {
			return nil
		}
		msg = f.Data()
	}
	c.received++

	if _, err := fmt.Fprintf(c.Out, "Received: %s\n", msg); err != nil {
		return err
	}
	log.GetLogger().Infof("received %d bytes from %s", rec.Length, rec.Interface)
	if err := c.Dumper.Dump(c.Out, rec.Data); err != nil {
		return err
	}
	log.GetLogger().Info("Waiting for a frame to arrive ...")
	return nil
}

// PcapConsumer appends every frame to a pcap file.
type PcapConsumer struct {
	W *pcapfile.Writer
}

func (c *PcapConsumer) Consume(rec core.Record) error {
	return c.W.WriteFrame(rec.Data, rec.Timestamp)
}
