package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/arloliu/go-slmp/config"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/arloliu/go-slmp/simulator"
	"github.com/spf13/cobra"
)

type simulateFlags struct {
	listen   string
	model    string
	code     uint16
	password string
	preset   []string
}

func newSimulateCmd(gf *globalFlags) *cobra.Command {
	flags := &simulateFlags{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a simulated PLC",
		Long: `Serve a simulated CPU with in-memory device memory over TCP until
interrupted. The series follows --series.`,
		Example: `  slmpctl simulate --listen :5007 --series q --preset D0:u32=70000 --preset M5=true`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			series, err := device.ParseSeries(gf.series)
			if err != nil {
				return err
			}

			opts := []simulator.Option{
				simulator.WithSeries(series),
				simulator.WithLogger(logger.GetLogger()),
			}
			if flags.model != "" {
				opts = append(opts, simulator.WithCPUModel(flags.model, flags.code))
			}
			if flags.password != "" {
				opts = append(opts, simulator.WithPassword(flags.password))
			}
			srv := simulator.New(opts...)

			if err := preset(srv, flags.preset); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "simulating %s series CPU on %s\n", series, flags.listen)

			return srv.ListenAndServe(cmd.Context(), flags.listen)
		},
	}

	cmd.Flags().StringVar(&flags.listen, "listen", net.JoinHostPort("", strconv.Itoa(config.DefaultPort)), "Listen address")
	cmd.Flags().StringVar(&flags.model, "model", "", "CPU model name reported by the simulator")
	cmd.Flags().Uint16Var(&flags.code, "model-code", 0x4800, "CPU model code reported with --model")
	cmd.Flags().StringVar(&flags.password, "password", "", "Remote password required by unlock")
	cmd.Flags().StringArrayVar(&flags.preset, "preset", nil, "Initial device value as point=value, repeatable")

	return cmd
}

// preset writes point=value assignments into the simulator memory.
func preset(srv *simulator.Server, assignments []string) error {
	values, err := parseAssignments(assignments)
	if err != nil {
		return err
	}

	mem := srv.Memory()
	for _, dv := range values {
		if dv.Value.Type().IsBit() {
			if err := mem.WriteBits(dv.Address, dv.Value.Bool()); err != nil {
				return err
			}
			continue
		}
		words, err := plcdata.Encode(dv.Value)
		if err != nil {
			return err
		}
		if err := mem.WriteWords(dv.Address, words...); err != nil {
			return err
		}
	}

	return nil
}
