package executor

import (
	"context"
	"runtime"

	"github.com/apache/arrow/go/v13/arrow"
	"golang.org/x/sync/errgroup"
)

// CollectPartitions executes every output partition of plan, running at most
// concurrency partitions at once, and returns the batches of each partition
// in partition order.
func CollectPartitions(ctx context.Context, plan ExecutionPlan, concurrency int) ([][]arrow.Record, error) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	n := plan.OutputPartitioning()
	results := make([][]arrow.Record, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for p := 0; p < n; p++ {
		p := p
		g.Go(func() error {
			stream, err := plan.Execute(gctx, p)
			if err != nil {
				return err
			}
			recs, err := drain(gctx, stream)
			if err != nil {
				return err
			}
			results[p] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, recs := range results {
			releaseRecords(recs)
		}
		return nil, err
	}
	return results, nil
}

// Collect executes every partition of plan and returns all batches, ordered
// by partition.
func Collect(ctx context.Context, plan ExecutionPlan, concurrency int) ([]arrow.Record, error) {
	parts, err := CollectPartitions(ctx, plan, concurrency)
	if err != nil {
		return nil, err
	}
	var out []arrow.Record
	for _, recs := range parts {
		out = append(out, recs...)
	}
	return out, nil
}

// mergedStream reads the partitions of a plan one after another.
type mergedStream struct {
	ctx     context.Context
	plan    ExecutionPlan
	next    int
	current RecordStream
}

func newMergedStream(ctx context.Context, plan ExecutionPlan) *mergedStream {
	return &mergedStream{ctx: ctx, plan: plan}
}

func (s *mergedStream) Schema() *arrow.Schema { return s.plan.Schema() }

func (s *mergedStream) Next() (arrow.Record, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if s.current == nil {
			if s.next >= s.plan.OutputPartitioning() {
				return nil, nil // nolint:nilnil // EOF
			}
			stream, err := s.plan.Execute(s.ctx, s.next)
			if err != nil {
				return nil, err
			}
			s.current = stream
			s.next++
		}
		rec, err := s.current.Next()
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		if err := s.current.Close(); err != nil {
			return nil, err
		}
		s.current = nil
	}
}

func (s *mergedStream) Close() error {
	s.next = s.plan.OutputPartitioning()
	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		return err
	}
	return nil
}
