package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/payload"
)

var (
	dumpFile    string
	dumpMessage string
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump (-f <file> | -m <msg>)",
	Short: "Hex-dump a file or message without touching the network",
	Long: `Render a file or message exactly as captured and transmitted frames are
rendered: offset, hex bytes and printable ASCII.

Examples:
  etherlab dump -m "Hello World"
  etherlab dump -f payload.bin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(payload.Spec{Message: dumpMessage, File: dumpFile}, cfg.Dump.Width, cmd.OutOrStdout())
	},
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFile, "file", "f", "", "file to dump")
	dumpCmd.Flags().StringVarP(&dumpMessage, "message", "m", "", "message to dump")
	dumpCmd.MarkFlagsMutuallyExclusive("file", "message")
	dumpCmd.MarkFlagsOneRequired("file", "message")
}

func runDump(spec payload.Spec, width int, out io.Writer) error {
	src, err := payload.Open(spec)
	if err != nil {
		return err
	}
	defer src.Close()

	buf := make([]byte, src.Len())
	if err := src.CopyNext(buf); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	return hexdump.Dumper{Width: width}.Dump(out, buf)
}
