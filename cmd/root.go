// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/etherlab/internal/config"
	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/iface"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/metrics"
	"firestige.xyz/etherlab/internal/rawsock"
)

var (
	// Global flags
	configFile string
	logLevel   string

	// cfg is loaded once per invocation by PersistentPreRunE.
	cfg           *config.Config
	metricsServer *metrics.Server
)

// Swapped by tests.
var (
	resolver   interfaceResolver = iface.NewResolver(nil)
	openSocket                   = func(ifi core.Interface, opts rawsock.Options) (rawsock.Conn, error) {
		return rawsock.Open(ifi, opts)
	}
)

type interfaceResolver interface {
	Resolve(name string) (core.Interface, error)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "etherlab",
	Short: "Etherlab - raw Ethernet frame capture and injection toolkit",
	Long: `Etherlab captures raw Ethernet frames from an interface, builds and transmits
arbitrary frames (including frames with a chosen source address) and renders
frames as a hex/ASCII dump.

The binary also answers to the names ethercap, etherinj, ethersend and
etherrecv when invoked through a symlink of that name.

Raw sockets need CAP_NET_RAW (or root).`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: stopRuntime,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := ExecuteAs(os.Args[0], os.Args[1:]); err != nil {
		exitWithError(os.Stderr, err)
	}
}

// aliases maps the names of the single-purpose tools to subcommands.
var aliases = map[string]string{
	"ethercap":  "capture",
	"etherinj":  "inject",
	"ethersend": "send",
	"etherrecv": "recv",
}

// ExecuteAs runs the command tree as if invoked as argv0 with args. When
// argv0 names one of the single-purpose tools, args go to that subcommand.
func ExecuteAs(argv0 string, args []string) error {
	if sub, ok := aliases[filepath.Base(argv0)]; ok {
		args = append([]string{sub}, args...)
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(recvCmd)
	rootCmd.AddCommand(ifinfoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(configCmd)
}

func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if err := log.Init(loaded.Log); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfig, err)
	}
	cfg = loaded

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(cmd.Context()); err != nil {
			return err
		}
		metricsServer = srv
	}
	return nil
}

func stopRuntime(cmd *cobra.Command, args []string) {
	if metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := metricsServer.Stop(ctx); err != nil {
		log.GetLogger().WithError(err).Warn("metrics server stop failed")
	}
	metricsServer = nil
}

// resolveInterface resolves name, tolerating non-Ethernet links with a
// warning when tolerate is set.
func resolveInterface(name string, tolerate bool) (core.Interface, error) {
	ifi, err := resolver.Resolve(name)
	if err == nil {
		return ifi, nil
	}
	if tolerate && iface.IsNotEthernet(err) {
		log.GetLogger().WithField("interface", name).WithError(err).Warn("interface is not Ethernet, continuing")
		return ifi, nil
	}
	return core.Interface{}, err
}

// exitWithError prints error message and exits with code 1
func exitWithError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s: %v\n", describeError(err), err)
	os.Exit(1)
}

// describeError names the failure class of err.
func describeError(err error) string {
	switch {
	case errors.Is(err, core.ErrConfig):
		return "invalid configuration"
	case errors.Is(err, core.ErrAddressParse):
		return "bad hardware address"
	case errors.Is(err, core.ErrInterfaceNotFound):
		return "no such interface"
	case errors.Is(err, core.ErrResolution):
		return "interface lookup failed"
	case errors.Is(err, core.ErrAllocation):
		return "buffer allocation failed"
	case errors.Is(err, core.ErrTransmit):
		return "transmit failed"
	case errors.Is(err, core.ErrReceive):
		return "receive failed"
	case errors.Is(err, core.ErrShortRead):
		return "payload read failed"
	default:
		return "command failed"
	}
}
