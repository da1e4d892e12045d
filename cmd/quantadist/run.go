package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dshills/QuantaDist/internal/shuffle"
	"github.com/dshills/QuantaDist/internal/sql/executor"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

type runOptions struct {
	maxRows     int
	shuffleJob  string
	stage       int
	executorID  string
	showMetrics bool
}

func runCommand(opts *options) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Translate and execute a plan",
		Long: "Translate a JSON or YAML physical plan, execute every output partition and print the rows. " +
			"With --shuffle-job the partitions are written as shuffle files instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := newSession(opts)
			if err != nil {
				return err
			}
			plan, err := s.load(args[0])
			if err != nil {
				return err
			}
			if ro.shuffleJob != "" {
				err = s.writeShuffle(ctx, cmd.OutOrStdout(), plan, ro)
			} else {
				err = s.collect(ctx, cmd.OutOrStdout(), plan, ro.maxRows)
			}
			if err != nil {
				return err
			}
			if ro.showMetrics {
				return s.printMetrics(cmd.OutOrStdout())
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&ro.maxRows, "max-rows", 100, "Maximum number of rows to print; 0 prints all")
	flags.StringVar(&ro.shuffleJob, "shuffle-job", "", "Write output partitions as shuffle files of this job")
	flags.IntVar(&ro.stage, "stage", 1, "Stage id of written shuffle partitions")
	flags.StringVar(&ro.executorID, "executor-id", "local", "Executor id shuffle partitions are written under")
	flags.BoolVar(&ro.showMetrics, "metrics", false, "Print translation metrics after running")
	return cmd
}

func (s *session) collect(ctx context.Context, w io.Writer, plan executor.ExecutionPlan, maxRows int) error {
	start := time.Now()
	recs, err := executor.Collect(ctx, plan, s.config.CollectConcurrency)
	if err != nil {
		return err
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	schema := plan.Schema()
	header := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		header[i] = f.Name
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)

	var total int64
	printed := 0
	for _, rec := range recs {
		total += rec.NumRows()
		for row := 0; row < int(rec.NumRows()); row++ {
			if maxRows > 0 && printed >= maxRows {
				break
			}
			table.Append(formatRow(rec, row))
			printed++
		}
	}
	table.Render()
	fmt.Fprintf(w, "(%s rows in %s)\n", humanize.Comma(total), time.Since(start).Round(time.Millisecond))
	return nil
}

func formatRow(rec arrow.Record, row int) []string {
	out := make([]string, rec.NumCols())
	for i, col := range rec.Columns() {
		out[i] = types.FormatValue(types.ValueAt(col, row))
	}
	return out
}

func (s *session) writeShuffle(ctx context.Context, w io.Writer, plan executor.ExecutionPlan, ro *runOptions) error {
	fetcher, err := shuffle.NewLocalFetcher(s.config.WorkDir, s.config.ShuffleCompression, s.logger)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Partition", "Path", "Size"})
	for p := 0; p < plan.OutputPartitioning(); p++ {
		stream, err := plan.Execute(ctx, p)
		if err != nil {
			return err
		}
		id := shuffle.PartitionID{JobID: ro.shuffleJob, StageID: ro.stage, PartitionID: p}
		n, err := fetcher.WritePartition(ctx, ro.executorID, id, stream)
		if err != nil {
			return err
		}
		table.Append([]string{id.String(), fetcher.PartitionPath(ro.executorID, id), humanize.Bytes(uint64(n))})
	}
	table.Render()
	return nil
}

func (s *session) printMetrics(w io.Writer) error {
	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Labels", "Value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)
			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%gs", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}
			table.Append([]string{mf.GetName(), strings.Join(labels, ","), value})
		}
	}
	table.Render()
	return nil
}
