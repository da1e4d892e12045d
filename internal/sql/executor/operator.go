package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// allocator backs every batch built by operators in this package.
var allocator memory.Allocator = memory.DefaultAllocator

// ExecutionPlan is an executable operator. A plan is immutable after
// construction and owns its children.
type ExecutionPlan interface {
	// Schema returns the output schema.
	Schema() *arrow.Schema
	// Children returns the input operators.
	Children() []ExecutionPlan
	// OutputPartitioning returns the number of output partitions.
	OutputPartitioning() int
	// Execute starts producing one output partition.
	Execute(ctx context.Context, partition int) (RecordStream, error)
	// String returns a one-line description.
	String() string
}

// RecordStream yields the batches of one partition.
type RecordStream interface {
	// Schema returns the schema of every batch.
	Schema() *arrow.Schema
	// Next returns the next batch, or nil when done. The caller releases it.
	Next() (arrow.Record, error)
	// Close cleans up resources.
	Close() error
}

func checkPartition(plan ExecutionPlan, partition int) error {
	if partition < 0 || partition >= plan.OutputPartitioning() {
		return &PartitionError{Operator: operatorName(plan), Partition: partition, Count: plan.OutputPartitioning()}
	}
	return nil
}

// recordSliceStream replays buffered batches. Batches not handed out are
// released on Close.
type recordSliceStream struct {
	schema  *arrow.Schema
	records []arrow.Record
	index   int
}

// NewRecordStream returns a stream over recs. The stream takes ownership of
// one reference to each batch.
func NewRecordStream(schema *arrow.Schema, recs []arrow.Record) RecordStream {
	return &recordSliceStream{schema: schema, records: recs}
}

func (s *recordSliceStream) Schema() *arrow.Schema { return s.schema }

func (s *recordSliceStream) Next() (arrow.Record, error) {
	if s.index >= len(s.records) {
		return nil, nil // nolint:nilnil // EOF
	}
	rec := s.records[s.index]
	s.records[s.index] = nil
	s.index++
	return rec, nil
}

func (s *recordSliceStream) Close() error {
	for i := s.index; i < len(s.records); i++ {
		if s.records[i] != nil {
			s.records[i].Release()
			s.records[i] = nil
		}
	}
	s.index = len(s.records)
	return nil
}

// mapStream applies fn to every batch of its input. fn may return nil to
// drop a batch.
type mapStream struct {
	ctx    context.Context
	input  RecordStream
	schema *arrow.Schema
	fn     func(arrow.Record) (arrow.Record, error)
}

func (s *mapStream) Schema() *arrow.Schema { return s.schema }

func (s *mapStream) Next() (arrow.Record, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.input.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil // nolint:nilnil // EOF
		}
		out, err := s.fn(rec)
		rec.Release()
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}
}

func (s *mapStream) Close() error {
	return s.input.Close()
}

// drain reads a stream to the end and closes it.
func drain(ctx context.Context, stream RecordStream) (recs []arrow.Record, err error) {
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			releaseRecords(recs)
			recs = nil
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return recs, err
		}
		rec, err := stream.Next()
		if err != nil {
			return recs, err
		}
		if rec == nil {
			return recs, nil
		}
		recs = append(recs, rec)
	}
}

func releaseRecords(recs []arrow.Record) {
	for _, r := range recs {
		if r != nil {
			r.Release()
		}
	}
}

func operatorName(plan ExecutionPlan) string {
	name := fmt.Sprintf("%T", plan)
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
