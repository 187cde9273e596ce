package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/etherlab/internal/config"
	"firestige.xyz/etherlab/internal/frame"
	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/iface"
	"firestige.xyz/etherlab/internal/inject"
	"firestige.xyz/etherlab/internal/lifecycle"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/payload"
	"firestige.xyz/etherlab/internal/rawsock"
)

type sendOptions struct {
	Interface string
	Dest      string
	Message   string
}

var sendOpts sendOptions

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send -d <dst> -m <msg> -i <interface>",
	Short: "Send one message in a single frame",
	Long: `Send a message in a single length-field frame from the interface's own
hardware address. Messages longer than the maximum payload are truncated.

Examples:
  etherlab send -d a:b:c:d:e:f -m "Hello World" -i eth0
  ethersend -d a:b:c:d:e:f -m "Hello World" -i eth0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd.Context(), cfg, sendOpts, cmd.OutOrStdout())
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendOpts.Dest, "dest", "d", "", "destination hardware address (required)")
	sendCmd.Flags().StringVarP(&sendOpts.Message, "message", "m", "", "message to send (required)")
	sendCmd.Flags().StringVarP(&sendOpts.Interface, "interface", "i", "", "interface to send on (required)")

	sendCmd.MarkFlagRequired("dest")
	sendCmd.MarkFlagRequired("message")
	sendCmd.MarkFlagRequired("interface")
}

func runSend(ctx context.Context, conf *config.Config, o sendOptions, out io.Writer) error {
	dst, err := frame.ParseMAC(o.Dest)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	ifi, err := resolveInterface(o.Interface, false)
	if err != nil {
		return err
	}

	msg, truncated := inject.Truncate([]byte(o.Message), iface.MaxPayload(ifi, false))
	if truncated {
		log.GetLogger().WithField("length", len(o.Message)).Warn("WARN: message is truncated.")
	}

	guard := lifecycle.NewGuard()
	ctx, cancel := guard.WatchSignals(ctx)
	defer cancel()
	defer teardown(guard)

	loop := inject.NewLoop(ifi, guard, inject.Options{
		Dst:            dst,
		Src:            ifi.HardwareAddr,
		UnpaddedLength: true,
		Out:            out,
		Dumper:         hexdump.Dumper{Width: conf.Dump.Width},
		Socket:         rawsock.Options{Engine: rawsock.EngineSocket},
		Opener:         openSocket,
	})
	if err := loop.Address(); err != nil {
		return err
	}
	if _, err := loop.Run(ctx, payload.NewInline(msg)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Sent: %s\n", msg)
	return err
}
