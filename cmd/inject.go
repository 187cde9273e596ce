package cmd

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"

	"firestige.xyz/etherlab/internal/config"
	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/frame"
	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/inject"
	"firestige.xyz/etherlab/internal/lifecycle"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/payload"
	"firestige.xyz/etherlab/internal/pcapfile"
	"firestige.xyz/etherlab/internal/rawsock"
)

type injectOptions struct {
	Interface string
	Source    string
	Dest      string
	File      string
	Message   string
	Tagged    bool
	Write     string
}

var injectOpts injectOptions

// injectCmd represents the inject command
var injectCmd = &cobra.Command{
	Use:   "inject -s <src> -d <dst> (-f <file> | -m <msg>) <interface>",
	Short: "Transmit a message or file as raw Ethernet frames",
	Long: `Transmit a message or the contents of a file as one or more raw Ethernet frames
with the given source and destination hardware addresses. Payloads larger
than the maximum frame payload are split; short frames are zero-padded to
the 60 byte minimum. Each transmitted frame is printed as a hex dump.

Hardware addresses are six colon separated hex octets, e.g. 0:1:2:3:4:5.

Examples:
  etherlab inject -s 0:1:2:3:4:5 -d a:b:c:d:e:f -m "Hello World" eth0
  etherlab inject -s 0:1:2:3:4:5 -d a:b:c:d:e:f -f payload.bin --write sent.pcap eth0
  etherinj -s 0:1:2:3:4:5 -d a:b:c:d:e:f -m hi --tag eth0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		injectOpts.Interface = args[0]
		return runInject(cmd.Context(), cfg, injectOpts, cmd.OutOrStdout())
	},
}

func init() {
	injectCmd.Flags().StringVarP(&injectOpts.Source, "source", "s", "",
		"source hardware address (default from inject.default_source)")
	injectCmd.Flags().StringVarP(&injectOpts.Dest, "dest", "d", "",
		"destination hardware address (required)")
	injectCmd.Flags().StringVarP(&injectOpts.File, "file", "f", "",
		"file whose contents are transmitted")
	injectCmd.Flags().StringVarP(&injectOpts.Message, "message", "m", "",
		"message to transmit")
	injectCmd.Flags().BoolVar(&injectOpts.Tagged, "tag", false,
		"use tagged framing (inject.ethertype_tag plus a length prefix)")
	injectCmd.Flags().StringVarP(&injectOpts.Write, "write", "w", "",
		"also record transmitted frames to this pcap file")

	injectCmd.MarkFlagRequired("dest")
	injectCmd.MarkFlagsMutuallyExclusive("file", "message")
	injectCmd.MarkFlagsOneRequired("file", "message")
}

func runInject(ctx context.Context, conf *config.Config, o injectOptions, out io.Writer) error {
	dst, err := frame.ParseMAC(o.Dest)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	var src net.HardwareAddr
	switch {
	case o.Source != "":
		if src, err = frame.ParseMAC(o.Source); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case len(conf.Inject.DefaultSource) > 0:
		src = net.HardwareAddr(conf.Inject.DefaultSource)
	default:
		return fmt.Errorf("%w: no source address given and inject.default_source is unset", core.ErrConfig)
	}

	ifi, err := resolveInterface(o.Interface, true)
	if err != nil {
		return err
	}

	guard := lifecycle.NewGuard()
	ctx, cancel := guard.WatchSignals(ctx)
	defer cancel()
	defer teardown(guard)

	opts := inject.Options{
		Dst:    dst,
		Src:    src,
		Tagged: o.Tagged || conf.Inject.Tagged,
		Tag:    conf.Inject.EtherTypeTag,
		Out:    out,
		Dumper: hexdump.Dumper{Width: conf.Dump.Width},
		Socket: rawsock.Options{Engine: rawsock.EngineSocket},
		Opener: openSocket,
	}
	if o.Write != "" {
		w, err := pcapfile.Create(o.Write, 0)
		if err != nil {
			return err
		}
		guard.Track("pcap file", w.Close)
		opts.Recorder = w
	}

	loop := inject.NewLoop(ifi, guard, opts)
	if err := loop.Address(); err != nil {
		return err
	}

	source, err := payload.Open(payload.Spec{Message: o.Message, File: o.File})
	if err != nil {
		return err
	}

	log.GetLogger().Infof("Transmitting src = [%s] -> dst = [%s] via interface = [%s]", src, dst, ifi.Name)
	sum, err := loop.Run(ctx, source)
	log.GetLogger().WithFields(map[string]interface{}{
		"run":    sum.RunID,
		"frames": sum.Frames,
		"bytes":  sum.Bytes,
	}).Debug("inject finished")
	return err
}
