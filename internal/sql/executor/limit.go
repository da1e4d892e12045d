package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
)

// limitStream passes through at most limit rows of its input.
type limitStream struct {
	ctx      context.Context
	input    RecordStream
	limit    int64
	rowCount int64
}

func (l *limitStream) Schema() *arrow.Schema { return l.input.Schema() }

// Next returns the next batch within the limit.
func (l *limitStream) Next() (arrow.Record, error) {
	for {
		// Check if we've reached the limit
		if l.rowCount >= l.limit {
			return nil, nil // nolint:nilnil // EOF due to limit
		}
		if err := l.ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := l.input.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil // nolint:nilnil // EOF
		}
		if rec.NumRows() == 0 {
			rec.Release()
			continue
		}

		remaining := l.limit - l.rowCount
		if rec.NumRows() <= remaining {
			l.rowCount += rec.NumRows()
			return rec, nil
		}
		out := rec.NewSlice(0, remaining)
		rec.Release()
		l.rowCount = l.limit
		return out, nil
	}
}

// Close cleans up the limit.
func (l *limitStream) Close() error {
	return l.input.Close()
}

// GlobalLimitExec merges all input partitions and returns at most limit rows
// in a single output partition.
type GlobalLimitExec struct {
	input ExecutionPlan
	limit int64
}

// NewGlobalLimitExec creates a new global limit operator.
func NewGlobalLimitExec(input ExecutionPlan, limit int64) *GlobalLimitExec {
	return &GlobalLimitExec{input: input, limit: limit}
}

// Limit returns the row limit.
func (g *GlobalLimitExec) Limit() int64 { return g.limit }

func (g *GlobalLimitExec) Schema() *arrow.Schema { return g.input.Schema() }

func (g *GlobalLimitExec) Children() []ExecutionPlan { return []ExecutionPlan{g.input} }

func (g *GlobalLimitExec) OutputPartitioning() int { return 1 }

func (g *GlobalLimitExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(g, partition); err != nil {
		return nil, err
	}
	return &limitStream{ctx: ctx, input: newMergedStream(ctx, g.input), limit: g.limit}, nil
}

func (g *GlobalLimitExec) String() string {
	return fmt.Sprintf("GlobalLimitExec: limit=%d", g.limit)
}

// LocalLimitExec returns at most limit rows from each input partition.
type LocalLimitExec struct {
	input ExecutionPlan
	limit int64
}

// NewLocalLimitExec creates a new per-partition limit operator.
func NewLocalLimitExec(input ExecutionPlan, limit int64) *LocalLimitExec {
	return &LocalLimitExec{input: input, limit: limit}
}

// Limit returns the row limit.
func (l *LocalLimitExec) Limit() int64 { return l.limit }

func (l *LocalLimitExec) Schema() *arrow.Schema { return l.input.Schema() }

func (l *LocalLimitExec) Children() []ExecutionPlan { return []ExecutionPlan{l.input} }

func (l *LocalLimitExec) OutputPartitioning() int { return l.input.OutputPartitioning() }

func (l *LocalLimitExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(l, partition); err != nil {
		return nil, err
	}
	input, err := l.input.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &limitStream{ctx: ctx, input: input, limit: l.limit}, nil
}

func (l *LocalLimitExec) String() string {
	return fmt.Sprintf("LocalLimitExec: limit=%d", l.limit)
}
