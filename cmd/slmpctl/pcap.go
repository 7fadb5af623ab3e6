package main

import (
	"fmt"
	"os"

	"github.com/arloliu/go-slmp/capture"
	"github.com/arloliu/go-slmp/frame"
	"github.com/spf13/cobra"
)

type pcapFlags struct {
	ports   []uint
	payload bool
}

func newPcapCmd() *cobra.Command {
	flags := &pcapFlags{}

	cmd := &cobra.Command{
		Use:   "pcap <file>",
		Short: "List the SLMP frames of a pcap or pcapng capture",
		Example: `  slmpctl pcap line1.pcapng --port 5007 --port 5010 --payload`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ports := make([]uint16, 0, len(flags.ports))
			for _, p := range flags.ports {
				if p == 0 || p > 0xFFFF {
					return fmt.Errorf("invalid port %d", p)
				}
				ports = append(ports, uint16(p))
			}

			rd, err := capture.NewReader(f, capture.WithPorts(ports...))
			if err != nil {
				return err
			}
			records, err := rd.ReadAll()
			for _, rec := range records {
				fmt.Fprintln(cmd.OutOrStdout(), rec)
				if flags.payload && rec.Frame != nil && len(rec.Frame.Data) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "\t%s\n", frame.HexString(rec.Frame.Data))
				}
			}

			return err
		},
	}

	cmd.Flags().UintSliceVar(&flags.ports, "port", []uint{capture.DefaultPort}, "SLMP server port, repeatable")
	cmd.Flags().BoolVar(&flags.payload, "payload", false, "Print a hex dump of each frame payload")

	return cmd
}
