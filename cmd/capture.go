package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/net/bpf"

	"firestige.xyz/etherlab/internal/capture"
	"firestige.xyz/etherlab/internal/config"
	"firestige.xyz/etherlab/internal/filter"
	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/iface"
	"firestige.xyz/etherlab/internal/lifecycle"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/pcapfile"
	"firestige.xyz/etherlab/internal/rawsock"
)

type captureOptions struct {
	Interface string
	NoPromisc bool
	Engine    string
	Filter    string
	Write     string
}

var captureOpts captureOptions

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <interface>",
	Short: "Capture and dump every frame seen on an interface",
	Long: `Capture raw Ethernet frames from an interface and print each one as a hex dump,
preceded by the interface name and the sender's hardware address.

Examples:
  etherlab capture eth0
  etherlab capture eth0 --no-promisc --filter "ether proto 0x88b5"
  etherlab capture eth0 --engine ring --write frames.pcap
  ethercap eth0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		captureOpts.Interface = args[0]
		return runCapture(cmd.Context(), cfg, captureOpts, cmd.OutOrStdout())
	},
}

func init() {
	captureCmd.Flags().BoolVar(&captureOpts.NoPromisc, "no-promisc", false,
		"do not put the interface into promiscuous mode")
	captureCmd.Flags().StringVar(&captureOpts.Engine, "engine", "",
		"capture engine: socket or ring (default from capture.engine)")
	captureCmd.Flags().StringVar(&captureOpts.Filter, "filter", "",
		"pcap filter expression (default from capture.filter)")
	captureCmd.Flags().StringVarP(&captureOpts.Write, "write", "w", "",
		"also append captured frames to this pcap file")
}

func runCapture(ctx context.Context, conf *config.Config, o captureOptions, out io.Writer) error {
	ifi, err := resolveInterface(o.Interface, false)
	if err != nil {
		return err
	}

	engine := conf.Capture.Engine
	if o.Engine != "" {
		engine = o.Engine
	}
	expr := conf.Capture.Filter
	if o.Filter != "" {
		expr = o.Filter
	}
	snapLen := conf.Capture.SnapLen
	if snapLen == 0 {
		snapLen = iface.BufferSize(ifi.MTU)
	}

	var prog []bpf.RawInstruction
	if expr != "" {
		if prog, err = filter.Compile(expr, snapLen); err != nil {
			return err
		}
	}

	guard := lifecycle.NewGuard()
	ctx, cancel := guard.WatchSignals(ctx)
	defer cancel()
	defer teardown(guard)

	var consumer capture.Consumer = &capture.DumpConsumer{
		Out:    out,
		Dumper: hexdump.Dumper{Width: conf.Dump.Width},
	}
	if o.Write != "" {
		w, err := pcapfile.Create(o.Write, snapLen)
		if err != nil {
			return err
		}
		guard.Track("pcap file", w.Close)
		consumer = capture.Multi(consumer, &capture.PcapConsumer{W: w})
	}

	loop := capture.NewLoop(ifi, guard, capture.Options{
		Promiscuous: conf.Capture.Promiscuous && !o.NoPromisc,
		Filter:      prog,
		Socket: rawsock.Options{
			Engine:      engine,
			SnapLen:     snapLen,
			RingSizeMB:  conf.Capture.Ring.SizeMB,
			PollTimeout: conf.Capture.Ring.PollTimeout,
		},
		Opener: openSocket,
	})
	if err := loop.Bind(); err != nil {
		return err
	}

	logger := log.GetLogger().WithField("interface", ifi.Name)
	logger.WithFields(map[string]interface{}{
		"engine": engine,
		"filter": expr,
		"mtu":    ifi.MTU,
	}).Info("capture started")

	err = loop.Run(ctx, consumer)
	stats := loop.Stats()
	logger.WithFields(map[string]interface{}{
		"frames": stats.Frames,
		"bytes":  stats.Bytes,
		"errors": stats.Errors,
	}).Info("capture stopped")
	return err
}

func teardown(guard *lifecycle.Guard) {
	if err := guard.Teardown(); err != nil {
		log.GetLogger().WithError(err).Error("resource release failed")
	}
}
