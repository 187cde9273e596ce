package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/net/bpf"

	"firestige.xyz/etherlab/internal/capture"
	"firestige.xyz/etherlab/internal/config"
	"firestige.xyz/etherlab/internal/filter"
	"firestige.xyz/etherlab/internal/frame"
	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/iface"
	"firestige.xyz/etherlab/internal/lifecycle"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/rawsock"
)

type recvOptions struct {
	Interface string
	Source    string
	Tagged    bool
}

var recvOpts recvOptions

// recvCmd represents the recv command
var recvCmd = &cobra.Command{
	Use:   "recv -s <src> -i <interface>",
	Short: "Receive messages sent from one hardware address",
	Long: `Receive length-field frames sent from the given hardware address and print the
message they carry followed by a hex dump of the frame. With --tag only
tagged frames are accepted and their length prefix is honoured.

Examples:
  etherlab recv -s 0:1:2:3:4:5 -i eth0
  etherrecv -s 0:1:2:3:4:5 -i eth0 --tag`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecv(cmd.Context(), cfg, recvOpts, cmd.OutOrStdout())
	},
}

func init() {
	recvCmd.Flags().StringVarP(&recvOpts.Source, "source", "s", "", "sender hardware address (required)")
	recvCmd.Flags().StringVarP(&recvOpts.Interface, "interface", "i", "", "interface to listen on (required)")
	recvCmd.Flags().BoolVar(&recvOpts.Tagged, "tag", false, "accept tagged frames instead of length-field frames")

	recvCmd.MarkFlagRequired("source")
	recvCmd.MarkFlagRequired("interface")
}

func runRecv(ctx context.Context, conf *config.Config, o recvOptions, out io.Writer) error {
	src, err := frame.ParseMAC(o.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	ifi, err := resolveInterface(o.Interface, false)
	if err != nil {
		return err
	}

	tagged := o.Tagged || conf.Inject.Tagged
	var insns []bpf.Instruction
	if tagged {
		insns = filter.TaggedFrames(conf.Inject.EtherTypeTag, src)
	} else {
		insns = filter.LengthFrames(src)
	}
	prog, err := filter.Assemble(insns)
	if err != nil {
		return err
	}

	guard := lifecycle.NewGuard()
	ctx, cancel := guard.WatchSignals(ctx)
	defer cancel()
	defer teardown(guard)

	loop := capture.NewLoop(ifi, guard, capture.Options{
		Promiscuous: conf.Capture.Promiscuous,
		Filter:      prog,
		Socket:      rawsock.Options{Engine: rawsock.EngineSocket, SnapLen: iface.BufferSize(ifi.MTU)},
		Opener:      openSocket,
	})
	if err := loop.Bind(); err != nil {
		return err
	}

	consumer := &capture.MessageConsumer{
		Out:    out,
		Dumper: hexdump.Dumper{Width: conf.Dump.Width},
		Source: src,
		Tagged: tagged,
		Tag:    conf.Inject.EtherTypeTag,
	}
	log.GetLogger().WithField("interface", ifi.Name).WithField("source", src.String()).Info("Waiting for a frame to arrive ...")
	err = loop.Run(ctx, consumer)
	log.GetLogger().WithField("received", consumer.Received()).Debug("recv stopped")
	return err
}
