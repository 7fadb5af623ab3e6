package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/arloliu/go-slmp/slmp"
	"github.com/spf13/cobra"
)

type readFlags struct {
	count   int
	monitor bool
	words   bool
}

func newReadCmd(gf *globalFlags) *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read <point> [point...]",
		Short: "Read device values",
		Long: `Read device values. A point is a device address with an optional type,
for example D100, D100:u32, M20:bool or D200:string[8].

One point with --count reads consecutive values in a single bulk read.
Several points are read with one random read, or with a monitor
registration and read when --monitor is set.`,
		Example: `  slmpctl read --host 192.168.3.39 D100:f32 --count 4
  slmpctl read --host 192.168.3.39 D100 D200:u32 M5
  slmpctl read --host 192.168.3.39 --words M0 --count 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			if len(points) > 1 && flags.count != 1 {
				return errors.New("--count applies to a single point")
			}

			return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
				return runRead(ctx, cmd.OutOrStdout(), sess, points, flags)
			})
		},
	}

	cmd.Flags().IntVar(&flags.count, "count", 1, "Number of consecutive values to read from a single point")
	cmd.Flags().BoolVar(&flags.monitor, "monitor", false, "Use monitor registration instead of random read")
	cmd.Flags().BoolVar(&flags.words, "words", false, "Print raw words, reading bit devices in word units")

	return cmd
}

func parsePoints(args []string) ([]device.Point, error) {
	points := make([]device.Point, 0, len(args))
	for _, arg := range args {
		p, err := device.ParsePoint(arg)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, nil
}

func runRead(ctx context.Context, out io.Writer, sess *slmp.Session, points []device.Point, flags *readFlags) error {
	if len(points) == 1 {
		p := points[0]
		if flags.words {
			words, err := sess.ReadWords(ctx, p.Address, flags.count)
			if err != nil {
				return err
			}
			for i, w := range words {
				fmt.Fprintf(out, "%s\t0x%04X\t%d\n", p.Address.Add(uint32(i*16)), w, w) //nolint:gosec
			}

			return nil
		}

		values, err := sess.ReadValues(ctx, p.Address, p.Type, flags.count)
		if err != nil {
			return err
		}
		step := p.Type.Words()
		if p.Type.IsBit() {
			step = 1
		}
		for i, v := range values {
			fmt.Fprintf(out, "%s\t%s\n", p.Address.Add(uint32(i*step)), v) //nolint:gosec
		}

		return nil
	}

	var (
		values []plcdata.Value
		err    error
	)
	if flags.monitor {
		if err = sess.RegisterMonitor(ctx, points...); err == nil {
			values, err = sess.ReadMonitor(ctx)
		}
	} else {
		values, err = sess.ReadRandom(ctx, points...)
	}
	if err != nil {
		return err
	}
	for i, v := range values {
		fmt.Fprintf(out, "%s\t%s\n", points[i], v)
	}

	return nil
}

func newWriteCmd(gf *globalFlags) *cobra.Command {
	var random bool

	cmd := &cobra.Command{
		Use:   "write <point> <value> [value...]",
		Short: "Write device values",
		Long: `Write values to consecutive devices starting at a point, or with --random
write point=value pairs individually.`,
		Example: `  slmpctl write --host 192.168.3.39 D100:u32 70000 70001
  slmpctl write --host 192.168.3.39 M5 true false true
  slmpctl write --host 192.168.3.39 --random D100=1 M5=true D200:f64=2.5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if random {
				values, err := parseAssignments(args)
				if err != nil {
					return err
				}

				return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
					return sess.WriteRandom(ctx, values...)
				})
			}

			if len(args) < 2 {
				return errors.New("write needs a point and at least one value")
			}
			p, err := device.ParsePoint(args[0])
			if err != nil {
				return err
			}
			values := make([]plcdata.Value, 0, len(args)-1)
			for _, text := range args[1:] {
				v, err := plcdata.ParseValue(p.Type, text)
				if err != nil {
					return err
				}
				values = append(values, v)
			}

			return gf.withSession(cmd.Context(), func(ctx context.Context, sess *slmp.Session) error {
				return sess.WriteValues(ctx, p.Address, values...)
			})
		},
	}

	cmd.Flags().BoolVar(&random, "random", false, "Arguments are point=value pairs written by random write")

	return cmd
}

func parseAssignments(args []string) ([]command.DeviceValue, error) {
	values := make([]command.DeviceValue, 0, len(args))
	for _, arg := range args {
		pointText, valueText, ok := strings.Cut(arg, "=")
		if !ok || pointText == "" {
			return nil, fmt.Errorf("expected point=value, got %s", strconv.Quote(arg))
		}
		p, err := device.ParsePoint(pointText)
		if err != nil {
			return nil, err
		}
		v, err := plcdata.ParseValue(p.Type, valueText)
		if err != nil {
			return nil, err
		}
		values = append(values, command.DeviceValue{Address: p.Address, Value: v})
	}

	return values, nil
}
