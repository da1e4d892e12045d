package shuffle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/log"
	"github.com/dshills/QuantaDist/internal/sql/executor"
)

// ShuffleReaderExec reads partitions written by an earlier stage. Output
// partition i is served by locations[i].
type ShuffleReaderExec struct {
	locations []PartitionLocation
	schema    *arrow.Schema
	fetcher   Fetcher
	logger    log.Logger
}

// ReaderOption configures a ShuffleReaderExec.
type ReaderOption func(*ShuffleReaderExec)

// WithLogger sets the logger used to report failed fetch attempts.
func WithLogger(l log.Logger) ReaderOption {
	return func(r *ShuffleReaderExec) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewShuffleReaderExec creates a reader with one output partition per location.
func NewShuffleReaderExec(locations []PartitionLocation, schema *arrow.Schema, fetcher Fetcher, opts ...ReaderOption) (*ShuffleReaderExec, error) {
	if schema == nil {
		return nil, qerrors.New(qerrors.InvalidParameterValue, "shuffle reader requires a schema")
	}
	if fetcher == nil {
		return nil, qerrors.New(qerrors.InvalidParameterValue, "shuffle reader requires a fetcher")
	}
	r := &ShuffleReaderExec{
		locations: locations,
		schema:    schema,
		fetcher:   fetcher,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Locations returns the partition locations in output partition order.
func (r *ShuffleReaderExec) Locations() []PartitionLocation { return r.locations }

func (r *ShuffleReaderExec) Schema() *arrow.Schema { return r.schema }

func (r *ShuffleReaderExec) Children() []executor.ExecutionPlan { return nil }

func (r *ShuffleReaderExec) OutputPartitioning() int { return len(r.locations) }

// Execute fetches the partition from the first executor that can serve it.
func (r *ShuffleReaderExec) Execute(ctx context.Context, partition int) (executor.RecordStream, error) {
	if partition < 0 || partition >= len(r.locations) {
		return nil, &executor.PartitionError{Operator: "ShuffleReaderExec", Partition: partition, Count: len(r.locations)}
	}
	loc := r.locations[partition]
	if len(loc.Executors) == 0 {
		return nil, qerrors.InvalidPartitionLocationError(fmt.Sprintf("partition %s has no executors", loc.PartitionID))
	}

	var errs []error
	for _, meta := range loc.Executors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rr, err := r.fetcher.FetchPartition(ctx, meta, loc.PartitionID)
		if err == nil && !sameColumns(rr.Schema(), r.schema) {
			err = fmt.Errorf("%w: executor %s returned %s, expected %s", executor.ErrSchemaMismatch, meta.ID, rr.Schema(), r.schema)
			rr.Release()
		}
		if err != nil {
			r.logger.Warn("shuffle fetch failed",
				"partition", loc.PartitionID.String(),
				"executor", meta.String(),
				"error", err)
			errs = append(errs, err)
			continue
		}
		return &shuffleStream{ctx: ctx, schema: r.schema, reader: rr}, nil
	}
	return nil, fmt.Errorf("cannot fetch partition %s: %w", loc.PartitionID, errors.Join(errs...))
}

func (r *ShuffleReaderExec) String() string {
	ids := make([]string, len(r.locations))
	for i, loc := range r.locations {
		ids[i] = loc.PartitionID.String()
	}
	return fmt.Sprintf("ShuffleReaderExec: partitions=[%s]", strings.Join(ids, ", "))
}

// sameColumns compares names and types, ignoring nullability and metadata.
func sameColumns(a, b *arrow.Schema) bool {
	if a == nil || b == nil || a.NumFields() != b.NumFields() {
		return false
	}
	for i := 0; i < a.NumFields(); i++ {
		fa, fb := a.Field(i), b.Field(i)
		if fa.Name != fb.Name || !arrow.TypeEqual(fa.Type, fb.Type) {
			return false
		}
	}
	return true
}

type shuffleStream struct {
	ctx    context.Context
	schema *arrow.Schema
	reader RecordReader
	closed bool
}

func (s *shuffleStream) Schema() *arrow.Schema { return s.schema }

func (s *shuffleStream) Next() (arrow.Record, error) {
	if s.closed {
		return nil, nil // nolint:nilnil // EOF
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if !s.reader.Next() {
		if err := s.reader.Err(); err != nil {
			return nil, qerrors.Wrap(qerrors.IOError, err, "error reading shuffle partition")
		}
		return nil, nil // nolint:nilnil // EOF
	}
	rec := s.reader.Record()
	return array.NewRecord(s.schema, rec.Columns(), rec.NumRows()), nil
}

func (s *shuffleStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.reader.Release()
	return nil
}
