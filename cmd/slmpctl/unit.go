package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/slmp"
	"github.com/spf13/cobra"
)

func newCPUCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cpu",
		Short: "Read the CPU model name and code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
				model, err := sess.ReadCPUModel(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t0x%04X\n", model.Name, model.Code)

				return nil
			})
		},
	}
}

type remoteFlags struct {
	force bool
	clear string
	yes   bool
}

func parseClearMode(s string) (command.ClearMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return command.ClearNone, nil
	case "except-latch":
		return command.ClearExceptLatch, nil
	case "all":
		return command.ClearAll, nil
	default:
		return 0, fmt.Errorf("unknown clear mode %q (none, except-latch, all)", s)
	}
}

func newRemoteCmd(gf *globalFlags) *cobra.Command {
	flags := &remoteFlags{}

	cmd := &cobra.Command{
		Use:       "remote <run|stop|pause|latch-clear|reset>",
		Short:     "Change the CPU operating state",
		ValidArgs: []string{"run", "stop", "pause", "latch-clear", "reset"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Example: `  slmpctl remote --host 192.168.3.39 stop
  slmpctl remote --host 192.168.3.39 run --force --clear except-latch
  slmpctl remote --host 192.168.3.39 reset --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			clearMode, err := parseClearMode(flags.clear)
			if err != nil {
				return err
			}

			return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
				switch args[0] {
				case "run":
					return sess.RemoteRun(ctx, flags.force, clearMode)
				case "stop":
					return sess.RemoteStop(ctx)
				case "pause":
					return sess.RemotePause(ctx, flags.force)
				case "latch-clear":
					return sess.RemoteLatchClear(ctx)
				default:
					return sess.RemoteReset(ctx, flags.yes)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Run or pause even when another device holds the CPU")
	cmd.Flags().StringVar(&flags.clear, "clear", "none", "Device memory cleared by run: none, except-latch, all")
	cmd.Flags().BoolVar(&flags.yes, "yes", false, "Confirm remote reset")

	return cmd
}

func newLockCmd(gf *globalFlags, lock bool) *cobra.Command {
	use, short := "unlock <password>", "Unlock the CPU with its remote password"
	if lock {
		use, short = "lock <password>", "Lock the CPU with its remote password"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
				if lock {
					return sess.Lock(ctx, args[0])
				}

				return sess.Unlock(ctx, args[0])
			})
		},
	}
}

func newEchoCmd(gf *globalFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "echo [data]",
		Short: "Run the loopback test",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 1 {
				data = []byte(args[0])
			}

			return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
				for i := range count {
					echo, err := sess.Echo(ctx, data)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, echo)
				}

				m := sess.Metrics()
				fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes, received %d bytes\n", m.BytesSent.Load(), m.BytesRecv.Load())

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "Number of loopback exchanges")

	return cmd
}
