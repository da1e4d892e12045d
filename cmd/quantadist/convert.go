package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/QuantaDist/internal/serde/protobuf"
)

func convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Re-encode a plan file",
		Long: "Read a plan and write it in the format named by the output extension: " +
			".json, .yaml/.yml, or .pb/.binpb/.bin for the protobuf binary form.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := protobuf.ReadPlanFile(args[0])
			if err != nil {
				return err
			}
			data, err := protobuf.EncodePlan(node, protobuf.FormatOf(args[1]))
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s plan to %s (%s)\n",
				protobuf.FormatOf(args[1]), args[1], humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
}
