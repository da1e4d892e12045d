package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/dshills/QuantaDist/internal/sql/types"
)

// CoalesceBatchesExec combines small input batches into batches of at least
// targetBatchSize rows. The last batch of a partition may be smaller.
type CoalesceBatchesExec struct {
	input           ExecutionPlan
	targetBatchSize int
}

// NewCoalesceBatchesExec creates a new coalescing operator. A target below
// one is raised to one, which passes batches through unchanged.
func NewCoalesceBatchesExec(input ExecutionPlan, targetBatchSize int) *CoalesceBatchesExec {
	if targetBatchSize < 1 {
		targetBatchSize = 1
	}
	return &CoalesceBatchesExec{input: input, targetBatchSize: targetBatchSize}
}

// TargetBatchSize returns the minimum rows per output batch.
func (c *CoalesceBatchesExec) TargetBatchSize() int { return c.targetBatchSize }

func (c *CoalesceBatchesExec) Schema() *arrow.Schema { return c.input.Schema() }

func (c *CoalesceBatchesExec) Children() []ExecutionPlan { return []ExecutionPlan{c.input} }

func (c *CoalesceBatchesExec) OutputPartitioning() int { return c.input.OutputPartitioning() }

func (c *CoalesceBatchesExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(c, partition); err != nil {
		return nil, err
	}
	input, err := c.input.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &coalesceStream{ctx: ctx, input: input, target: int64(c.targetBatchSize)}, nil
}

func (c *CoalesceBatchesExec) String() string {
	return fmt.Sprintf("CoalesceBatchesExec: target_batch_size=%d", c.targetBatchSize)
}

type coalesceStream struct {
	ctx      context.Context
	input    RecordStream
	target   int64
	buffered []arrow.Record
	rows     int64
	done     bool
}

func (s *coalesceStream) Schema() *arrow.Schema { return s.input.Schema() }

func (s *coalesceStream) Next() (arrow.Record, error) {
	for !s.done && s.rows < s.target {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.input.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			s.done = true
			break
		}
		if rec.NumRows() == 0 {
			rec.Release()
			continue
		}
		// large batches pass straight through when nothing is buffered
		if len(s.buffered) == 0 && rec.NumRows() >= s.target {
			return rec, nil
		}
		s.buffered = append(s.buffered, rec)
		s.rows += rec.NumRows()
	}
	if len(s.buffered) == 0 {
		return nil, nil // nolint:nilnil // EOF
	}
	return s.flush()
}

func (s *coalesceStream) flush() (arrow.Record, error) {
	defer func() {
		releaseRecords(s.buffered)
		s.buffered = nil
		s.rows = 0
	}()
	if len(s.buffered) == 1 {
		s.buffered[0].Retain()
		return s.buffered[0], nil
	}
	return types.ConcatRecords(allocator, s.input.Schema(), s.buffered)
}

func (s *coalesceStream) Close() error {
	releaseRecords(s.buffered)
	s.buffered = nil
	return s.input.Close()
}
