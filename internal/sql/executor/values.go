package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/dshills/QuantaDist/internal/sql/types"
)

// EmptyExec produces either no rows or a single row of nulls.
type EmptyExec struct {
	produceOneRow bool
	schema        *arrow.Schema
}

// NewEmptyExec creates an operator with one empty partition.
func NewEmptyExec(produceOneRow bool, schema *arrow.Schema) *EmptyExec {
	return &EmptyExec{produceOneRow: produceOneRow, schema: schema}
}

// ProduceOneRow reports whether the operator emits a single row.
func (e *EmptyExec) ProduceOneRow() bool { return e.produceOneRow }

func (e *EmptyExec) Schema() *arrow.Schema { return e.schema }

func (e *EmptyExec) Children() []ExecutionPlan { return nil }

func (e *EmptyExec) OutputPartitioning() int { return 1 }

func (e *EmptyExec) Execute(_ context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(e, partition); err != nil {
		return nil, err
	}
	if !e.produceOneRow {
		return NewRecordStream(e.schema, nil), nil
	}
	return NewRecordStream(e.schema, []arrow.Record{types.NullRecord(allocator, e.schema, 1)}), nil
}

func (e *EmptyExec) String() string {
	return fmt.Sprintf("EmptyExec: produce_one_row=%t", e.produceOneRow)
}

// MemoryExec serves batches held in memory, one slice per partition.
type MemoryExec struct {
	schema     *arrow.Schema
	partitions [][]arrow.Record
}

// NewMemoryExec validates that every batch matches schema. The operator
// retains each batch.
func NewMemoryExec(schema *arrow.Schema, partitions [][]arrow.Record) (*MemoryExec, error) {
	for _, recs := range partitions {
		for _, rec := range recs {
			if !rec.Schema().Equal(schema) {
				return nil, fmt.Errorf("%w: batch schema %s does not match %s", ErrSchemaMismatch, rec.Schema(), schema)
			}
		}
	}
	for _, recs := range partitions {
		for _, rec := range recs {
			rec.Retain()
		}
	}
	return &MemoryExec{schema: schema, partitions: partitions}, nil
}

func (m *MemoryExec) Schema() *arrow.Schema { return m.schema }

func (m *MemoryExec) Children() []ExecutionPlan { return nil }

func (m *MemoryExec) OutputPartitioning() int { return len(m.partitions) }

func (m *MemoryExec) Execute(_ context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(m, partition); err != nil {
		return nil, err
	}
	recs := make([]arrow.Record, len(m.partitions[partition]))
	for i, rec := range m.partitions[partition] {
		rec.Retain()
		recs[i] = rec
	}
	return NewRecordStream(m.schema, recs), nil
}

// Release drops the operator's references to its batches.
func (m *MemoryExec) Release() {
	for _, recs := range m.partitions {
		releaseRecords(recs)
	}
	m.partitions = make([][]arrow.Record, len(m.partitions))
}

func (m *MemoryExec) String() string {
	return fmt.Sprintf("MemoryExec: partitions=%d", len(m.partitions))
}
