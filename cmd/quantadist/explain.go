package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dshills/QuantaDist/internal/sql/executor"
)

func explainCommand(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "explain <plan-file>",
		Short: "Show the operator tree a plan translates to",
		Long: "Translate a JSON, YAML or protobuf binary physical plan and print the operator tree. " +
			"Nothing is executed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(opts)
			if err != nil {
				return err
			}
			plan, err := s.load(args[0])
			if err != nil {
				return err
			}
			return explain(cmd.OutOrStdout(), plan, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "tree", "Output format: tree, table or json")
	return cmd
}

func explain(w io.Writer, plan executor.ExecutionPlan, format string) error {
	switch format {
	case "tree":
		_, err := fmt.Fprint(w, executor.DisplayTree(plan))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(executor.Describe(plan))
	case "table":
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Depth", "Operator", "Partitions", "Schema"})
		table.SetAutoWrapText(false)
		appendDescription(table, executor.Describe(plan), 0)
		table.Render()
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func appendDescription(table *tablewriter.Table, d *executor.PlanDescription, depth int) {
	table.Append([]string{
		strconv.Itoa(depth),
		d.Detail,
		strconv.Itoa(d.Partitions),
		strings.Join(d.Schema, ", "),
	})
	for _, child := range d.Children {
		appendDescription(table, child, depth+1)
	}
}
