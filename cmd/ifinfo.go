package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/etherlab/internal/iface"
)

// ifinfoCmd represents the ifinfo command
var ifinfoCmd = &cobra.Command{
	Use:   "ifinfo <interface>",
	Short: "Show what etherlab resolves for an interface",
	Long: `Show the index, hardware address and MTU of an interface together with the
frame buffer size and the per-frame payload limits derived from them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIfinfo(args[0], cmd.OutOrStdout())
	},
}

func runIfinfo(name string, out io.Writer) error {
	ifi, err := resolveInterface(name, true)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out,
		"Interface:     %s\nIndex:         %d\nHardware addr: %s\nMTU:           %d\nBuffer size:   %d\nMax payload:   %d\nMax tagged:    %d\n",
		ifi.Name,
		ifi.Index,
		ifi.HardwareAddr,
		ifi.MTU,
		iface.BufferSize(ifi.MTU),
		iface.MaxPayload(ifi, false),
		iface.MaxPayload(ifi, true),
	)
	return err
}
