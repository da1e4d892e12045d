package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/parquet/file"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"
	"golang.org/x/sync/semaphore"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
)

// ParquetExec scans Parquet files, one partition per file. At most
// maxConcurrency files are open at once across all partitions.
type ParquetExec struct {
	filenames      []string
	projection     []int
	batchSize      int
	maxConcurrency int
	fileSchema     *arrow.Schema
	schema         *arrow.Schema
	sem            *semaphore.Weighted
}

// NewParquetExec creates a scan over filenames. When schema is nil the
// footer of the first file is read to learn it; that is the only I/O done
// at construction. A nil or empty projection reads every column.
func NewParquetExec(filenames []string, schema *arrow.Schema, projection []int, batchSize, maxConcurrency int) (*ParquetExec, error) {
	if len(filenames) == 0 {
		return nil, fmt.Errorf("%w: parquet scan has no files", ErrNoInputFiles)
	}
	if batchSize <= 0 {
		return nil, qerrors.Newf(qerrors.InvalidParameterValue, "invalid batch size %d", batchSize)
	}
	if maxConcurrency <= 0 {
		return nil, qerrors.Newf(qerrors.InvalidParameterValue, "invalid max concurrency %d", maxConcurrency)
	}
	if schema == nil {
		s, err := ReadParquetSchema(filenames[0])
		if err != nil {
			return nil, err
		}
		schema = s
	}
	projected, err := projectSchema(schema, projection)
	if err != nil {
		return nil, err
	}
	return &ParquetExec{
		filenames:      filenames,
		projection:     projection,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
		fileSchema:     schema,
		schema:         projected,
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
	}, nil
}

// ReadParquetSchema reads the Arrow schema from a Parquet file footer.
func ReadParquetSchema(path string) (*arrow.Schema, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, qerrors.IOErrorf("cannot open parquet file %s: %v", path, err)
	}
	defer pf.Close()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, allocator)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("invalid parquet file %s", path))
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("invalid parquet schema in %s", path))
	}
	return schema, nil
}

// Filenames returns the scanned files.
func (p *ParquetExec) Filenames() []string { return p.filenames }

// Projection returns the projected column indices.
func (p *ParquetExec) Projection() []int { return p.projection }

// BatchSize returns the rows per batch.
func (p *ParquetExec) BatchSize() int { return p.batchSize }

// MaxConcurrency returns the bound on concurrently open files.
func (p *ParquetExec) MaxConcurrency() int { return p.maxConcurrency }

func (p *ParquetExec) Schema() *arrow.Schema { return p.schema }

func (p *ParquetExec) Children() []ExecutionPlan { return nil }

func (p *ParquetExec) OutputPartitioning() int { return len(p.filenames) }

func (p *ParquetExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(p, partition); err != nil {
		return nil, err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	stream, err := p.open(ctx, p.filenames[partition])
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	return stream, nil
}

func (p *ParquetExec) open(ctx context.Context, path string) (*parquetStream, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, qerrors.IOErrorf("cannot open parquet file %s: %v", path, err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: int64(p.batchSize)}, allocator)
	if err != nil {
		pf.Close()
		return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("invalid parquet file %s", path))
	}
	fileSchema, err := fr.Schema()
	if err != nil {
		pf.Close()
		return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("invalid parquet schema in %s", path))
	}
	if !sameColumns(fileSchema, p.fileSchema) {
		pf.Close()
		return nil, fmt.Errorf("%w: %s has schema %s, expected %s", ErrSchemaMismatch, path, fileSchema, p.fileSchema)
	}
	var cols []int
	if len(p.projection) > 0 {
		cols = p.projection
	}
	rr, err := fr.GetRecordReader(ctx, cols, nil)
	if err != nil {
		pf.Close()
		return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("cannot read %s", path))
	}
	return &parquetStream{ctx: ctx, exec: p, path: path, file: pf, reader: rr}, nil
}

// sameColumns compares names and types, ignoring nullability and metadata.
func sameColumns(a, b *arrow.Schema) bool {
	if a.NumFields() != b.NumFields() {
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

func (p *ParquetExec) String() string {
	return fmt.Sprintf("ParquetExec: files=[%s], batch_size=%d, max_concurrency=%d",
		strings.Join(p.filenames, ", "), p.batchSize, p.maxConcurrency)
}

type parquetStream struct {
	ctx    context.Context
	exec   *ParquetExec
	path   string
	file   *file.Reader
	reader pqarrow.RecordReader
	closed bool
}

func (s *parquetStream) Schema() *arrow.Schema { return s.exec.schema }

func (s *parquetStream) Next() (arrow.Record, error) {
	if s.closed {
		return nil, nil // nolint:nilnil // EOF
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if s.reader.Next() {
		rec := s.reader.Record()
		// the reader names columns from the file; present them under the scan schema
		return array.NewRecord(s.exec.schema, rec.Columns(), rec.NumRows()), nil
	}
	// the reader reports io.EOF once the last row group is drained
	if e, ok := s.reader.(interface{ Err() error }); ok {
		if err := e.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("error reading %s", s.path))
		}
	}
	return nil, nil // nolint:nilnil // EOF
}

func (s *parquetStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.reader.Release()
	err := s.file.Close()
	s.exec.sem.Release(1)
	return err
}
