package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/csv"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
)

// DefaultCsvExtension is used when CsvReadOptions.FileExtension is empty.
const DefaultCsvExtension = ".csv"

// CsvReadOptions controls how CSV files are parsed.
type CsvReadOptions struct {
	HasHeader     bool
	Delimiter     byte
	FileExtension string
	Schema        *arrow.Schema
}

// CsvExec scans a CSV file, or every file with the configured extension in a
// directory, as a single partition. Construction performs no I/O.
type CsvExec struct {
	path       string
	options    CsvReadOptions
	projection []int
	batchSize  int
	schema     *arrow.Schema
}

// NewCsvExec validates the projection against the file schema. A nil or
// empty projection reads every column.
func NewCsvExec(path string, options CsvReadOptions, projection []int, batchSize int) (*CsvExec, error) {
	if path == "" {
		return nil, qerrors.New(qerrors.InvalidParameterValue, "csv scan requires a path")
	}
	if options.Schema == nil {
		return nil, qerrors.New(qerrors.InvalidParameterValue, "csv scan requires a schema")
	}
	if options.Delimiter == 0 {
		options.Delimiter = ','
	}
	if options.FileExtension == "" {
		options.FileExtension = DefaultCsvExtension
	}
	if batchSize <= 0 {
		return nil, qerrors.Newf(qerrors.InvalidParameterValue, "invalid batch size %d", batchSize)
	}
	schema, err := projectSchema(options.Schema, projection)
	if err != nil {
		return nil, err
	}
	return &CsvExec{
		path:       path,
		options:    options,
		projection: projection,
		batchSize:  batchSize,
		schema:     schema,
	}, nil
}

func projectSchema(schema *arrow.Schema, projection []int) (*arrow.Schema, error) {
	if len(projection) == 0 {
		return schema, nil
	}
	fields := make([]arrow.Field, len(projection))
	for i, idx := range projection {
		if idx < 0 || idx >= schema.NumFields() {
			return nil, qerrors.Newf(qerrors.InvalidParameterValue,
				"projection index %d out of range for schema with %d fields", idx, schema.NumFields())
		}
		fields[i] = schema.Field(idx)
	}
	return arrow.NewSchema(fields, nil), nil
}

// Path returns the scanned file or directory.
func (c *CsvExec) Path() string { return c.path }

// Options returns the parse options.
func (c *CsvExec) Options() CsvReadOptions { return c.options }

// Projection returns the projected column indices.
func (c *CsvExec) Projection() []int { return c.projection }

// BatchSize returns the rows per batch.
func (c *CsvExec) BatchSize() int { return c.batchSize }

func (c *CsvExec) Schema() *arrow.Schema { return c.schema }

func (c *CsvExec) Children() []ExecutionPlan { return nil }

func (c *CsvExec) OutputPartitioning() int { return 1 }

func (c *CsvExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(c, partition); err != nil {
		return nil, err
	}
	files, err := listFiles(c.path, c.options.FileExtension)
	if err != nil {
		return nil, err
	}
	return &csvStream{ctx: ctx, exec: c, files: files}, nil
}

// listFiles returns path itself, or the files under path with the given
// extension in lexical order.
func listFiles(path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, qerrors.IOErrorf("cannot access %s: %v", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, qerrors.IOErrorf("cannot list %s: %v", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files under %s", ErrNoInputFiles, ext, path)
	}
	sort.Strings(files)
	return files, nil
}

func (c *CsvExec) String() string {
	return fmt.Sprintf("CsvExec: path=%s, has_header=%t, batch_size=%d", c.path, c.options.HasHeader, c.batchSize)
}

type csvStream struct {
	ctx    context.Context
	exec   *CsvExec
	files  []string
	next   int
	file   *os.File
	reader *csv.Reader
}

func (s *csvStream) Schema() *arrow.Schema { return s.exec.schema }

func (s *csvStream) open() error {
	f, err := os.Open(s.files[s.next])
	if err != nil {
		return qerrors.IOErrorf("cannot open %s: %v", s.files[s.next], err)
	}
	s.next++
	s.file = f
	s.reader = csv.NewReader(f, s.exec.options.Schema,
		csv.WithAllocator(allocator),
		csv.WithHeader(s.exec.options.HasHeader),
		csv.WithComma(rune(s.exec.options.Delimiter)),
		csv.WithChunk(s.exec.batchSize),
		csv.WithNullReader(true, ""),
	)
	return nil
}

func (s *csvStream) closeFile() error {
	if s.reader != nil {
		s.reader.Release()
		s.reader = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

func (s *csvStream) Next() (arrow.Record, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if s.reader == nil {
			if s.next >= len(s.files) {
				return nil, nil // nolint:nilnil // EOF
			}
			if err := s.open(); err != nil {
				return nil, err
			}
		}
		if s.reader.Next() {
			return s.project(s.reader.Record()), nil
		}
		if err := s.reader.Err(); err != nil {
			name := s.files[s.next-1]
			_ = s.closeFile()
			return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("error reading %s", name))
		}
		if err := s.closeFile(); err != nil {
			return nil, err
		}
	}
}

// project returns a new reference; the reader keeps ownership of rec.
func (s *csvStream) project(rec arrow.Record) arrow.Record {
	if len(s.exec.projection) == 0 {
		rec.Retain()
		return rec
	}
	cols := make([]arrow.Array, len(s.exec.projection))
	for i, idx := range s.exec.projection {
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(s.exec.schema, cols, rec.NumRows())
}

func (s *csvStream) Close() error {
	s.next = len(s.files)
	return s.closeFile()
}
