// Command slmpctl talks to Mitsubishi PLCs over SLMP: it reads and writes devices, controls the
// CPU, polls configured targets, and hosts a simulator or a logging proxy for diagnostics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "slmpctl",
		Short: "SLMP client, simulator and diagnostics for Mitsubishi PLCs",
		Long: `slmpctl sends SLMP 4E binary frames to Q/L and iQ-R series CPUs.

Endpoints come from --host/--port or from a named connection in a YAML
configuration file (--config with --conn).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return gf.setupLogger()
		},
	}
	gf.register(rootCmd)

	rootCmd.AddCommand(newReadCmd(gf))
	rootCmd.AddCommand(newWriteCmd(gf))
	rootCmd.AddCommand(newCPUCmd(gf))
	rootCmd.AddCommand(newRemoteCmd(gf))
	rootCmd.AddCommand(newLockCmd(gf, true))
	rootCmd.AddCommand(newLockCmd(gf, false))
	rootCmd.AddCommand(newEchoCmd(gf))
	rootCmd.AddCommand(newPollCmd(gf))
	rootCmd.AddCommand(newSimulateCmd(gf))
	rootCmd.AddCommand(newProxyCmd(gf))
	rootCmd.AddCommand(newPcapCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slmpctl version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", commit)
		},
	}
}
