package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/parquet"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/testutil"
)

var peopleSchema = testutil.Schema(
	testutil.Field("id", arrow.PrimitiveTypes.Int64, false),
	testutil.Field("name", arrow.BinaryTypes.String, true),
	testutil.Field("score", arrow.PrimitiveTypes.Float64, true),
)

func TestCsvExecFile(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	path := testutil.WriteFile(t, dir, "people.csv", "id|name|score\n1|ann|2.5\n2|bob|\n3||1\n")

	scan, err := NewCsvExec(path, CsvReadOptions{HasHeader: true, Delimiter: '|', Schema: peopleSchema}, []int{2, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, scan.OutputPartitioning())
	testutil.AssertSchemaNames(t, []string{"score", "id"}, scan.Schema())

	recs := collect(t, scan)
	assert.Len(t, recs, 2, "batch size bounds rows per batch")
	testutil.AssertRows(t, [][]any{{2.5, int64(1)}, {nil, int64(2)}, {1.0, int64(3)}}, recs)
}

func TestCsvExecDirectory(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	testutil.WriteFile(t, dir, "b.csv", "3,c,0\n")
	testutil.WriteFile(t, dir, "a.csv", "1,a,0\n2,b,0\n")
	testutil.WriteFile(t, dir, "notes.txt", "ignored")

	scan, err := NewCsvExec(dir, CsvReadOptions{Schema: peopleSchema}, nil, 1024)
	require.NoError(t, err)
	rows := testutil.Rows(collect(t, scan))
	require.Len(t, rows, 3)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, []any{rows[0][0], rows[1][0], rows[2][0]})
}

func TestCsvExecConstructionDoesNoIO(t *testing.T) {
	scan, err := NewCsvExec("/does/not/exist.csv", CsvReadOptions{Schema: peopleSchema}, nil, 10)
	require.NoError(t, err)

	_, err = scan.Execute(context.Background(), 0)
	assert.True(t, qerrors.IsError(err, qerrors.IOError))

	_, err = NewCsvExec("x.csv", CsvReadOptions{Schema: peopleSchema}, []int{5}, 10)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))

	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	empty, err := NewCsvExec(dir, CsvReadOptions{Schema: peopleSchema}, nil, 10)
	require.NoError(t, err)
	_, err = empty.Execute(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrNoInputFiles))
}

func writeParquet(t *testing.T, path string, rec arrow.Record) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := pqarrow.NewFileWriter(rec.Schema(), f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
}

func TestParquetExec(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	first := filepath.Join(dir, "part-0.parquet")
	second := filepath.Join(dir, "part-1.parquet")
	writeParquet(t, first, testutil.Record(t, peopleSchema, testutil.Int64s(1, 2), testutil.Strings("ann", "bob"), []any{1.5, nil}))
	writeParquet(t, second, testutil.Record(t, peopleSchema, testutil.Int64s(3), []any{nil}, []any{4.0}))

	// schema learned from the first footer
	scan, err := NewParquetExec([]string{first, second}, nil, []int{0, 2}, 1024, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, scan.OutputPartitioning())
	testutil.AssertSchemaNames(t, []string{"id", "score"}, scan.Schema())

	testutil.AssertRows(t, [][]any{
		{int64(1), 1.5}, {int64(2), nil}, {int64(3), 4.0},
	}, collect(t, scan))

	// max concurrency of one: a second partition waits for the first to close
	ctx, cancel := context.WithCancel(context.Background())
	s0, err := scan.Execute(ctx, 0)
	require.NoError(t, err)
	cancel()
	_, err = scan.Execute(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, s0.Close())

	s1, err := scan.Execute(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, s1.Close())
}

func TestParquetExecDrainsToEOF(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	tests := []struct {
		name      string
		rows      int64
		batchSize int
	}{
		{"one row", 1, 1024},
		{"two rows", 2, 1024},
		{"three rows in small batches", 3, 2},
		{"batch per row", 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]int64, tt.rows)
			names := make([]any, tt.rows)
			scores := make([]any, tt.rows)
			for i := range ids {
				ids[i] = int64(i)
			}
			path := filepath.Join(dir, tt.name+".parquet")
			writeParquet(t, path, testutil.Record(t, peopleSchema, testutil.Int64s(ids...), names, scores))

			scan, err := NewParquetExec([]string{path}, nil, nil, tt.batchSize, 1)
			require.NoError(t, err)
			stream, err := scan.Execute(context.Background(), 0)
			require.NoError(t, err)
			defer stream.Close()

			var total int64
			for {
				rec, err := stream.Next()
				require.NoError(t, err)
				if rec == nil {
					break
				}
				total += rec.NumRows()
				rec.Release()
			}
			assert.Equal(t, tt.rows, total)

			// a drained stream stays at EOF
			rec, err := stream.Next()
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestParquetExecErrors(t *testing.T) {
	_, err := NewParquetExec(nil, peopleSchema, nil, 10, 1)
	assert.True(t, errors.Is(err, ErrNoInputFiles))

	_, err = NewParquetExec([]string{"/does/not/exist.parquet"}, nil, nil, 10, 1)
	assert.True(t, qerrors.IsError(err, qerrors.IOError))

	// an embedded schema avoids touching the files until execution
	scan, err := NewParquetExec([]string{"/does/not/exist.parquet"}, peopleSchema, nil, 10, 8)
	require.NoError(t, err)
	_, err = scan.Execute(context.Background(), 0)
	assert.True(t, qerrors.IsError(err, qerrors.IOError))
}
