package shuffle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/log"
	"github.com/dshills/QuantaDist/internal/sql/executor"
	"github.com/dshills/QuantaDist/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var salesSchema = testutil.Schema(
	testutil.Field("region", arrow.BinaryTypes.String, true),
	testutil.Field("amount", arrow.PrimitiveTypes.Int64, true),
)

func salesRecord(t *testing.T) arrow.Record {
	rec := testutil.Record(t, salesSchema, testutil.Strings("east", "west", "east"), []any{int64(10), nil, int64(5)})
	rec.Retain()
	return rec
}

func TestCompressorFor(t *testing.T) {
	for name, ext := range map[string]string{"": "", CodecNone: "", CodecLZ4: ".lz4", CodecZstd: ".zst"} {
		c, err := CompressorFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, ext, c.Extension(), name)
	}
	_, err := CompressorFor("snappy")
	assert.Error(t, err)
}

func TestLocalFetcherRoundTrip(t *testing.T) {
	for _, codec := range []string{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec, func(t *testing.T) {
			dir, cleanup := testutil.TempDir(t)
			defer cleanup()

			f, err := NewLocalFetcher(dir, codec, log.Nop())
			require.NoError(t, err)
			id := PartitionID{JobID: "job1", StageID: 2, PartitionID: 0}

			n, err := f.WritePartition(context.Background(), "exec-a", id,
				executor.NewRecordStream(salesSchema, []arrow.Record{salesRecord(t), salesRecord(t)}))
			require.NoError(t, err)
			assert.Positive(t, n)
			assert.FileExists(t, filepath.Join(dir, "exec-a", "job1", "2", "0.arrow"+f.Compressor().Extension()))

			rr, err := f.FetchPartition(context.Background(), ExecutorMeta{ID: "exec-a", Host: "localhost", Port: 50051}, id)
			require.NoError(t, err)
			defer rr.Release()
			assert.True(t, rr.Schema().Equal(salesSchema))

			var rows [][]any
			for rr.Next() {
				rows = append(rows, testutil.Rows([]arrow.Record{rr.Record()})...)
			}
			require.NoError(t, rr.Err())
			want := [][]any{
				{"east", int64(10)}, {"west", nil}, {"east", int64(5)},
				{"east", int64(10)}, {"west", nil}, {"east", int64(5)},
			}
			if diff := cmp.Diff(want, rows); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}

			stats := f.Stats()
			assert.Equal(t, int64(1), stats.FilesWritten)
			assert.Equal(t, int64(1), stats.FilesRead)
			assert.Equal(t, n, stats.BytesRead)
		})
	}
}

func TestLocalFetcherMissingPartition(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	f, err := NewLocalFetcher(dir, CodecLZ4, log.Nop())
	require.NoError(t, err)
	_, err = f.FetchPartition(context.Background(), ExecutorMeta{ID: "gone"}, PartitionID{JobID: "j"})
	assert.True(t, qerrors.IsError(err, qerrors.IOError))
	assert.Equal(t, int64(1), f.Stats().FetchFailures)

	// a corrupt file is a data error, not a missing one
	f2, err := NewLocalFetcher(dir, CodecNone, log.Nop())
	require.NoError(t, err)
	path := f2.PartitionPath("bad", PartitionID{JobID: "j"})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not arrow"), 0o600))
	_, err = f2.FetchPartition(context.Background(), ExecutorMeta{ID: "bad"}, PartitionID{JobID: "j"})
	assert.True(t, qerrors.IsError(err, qerrors.DataException))

	_, err = NewLocalFetcher("", CodecNone, nil)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))
	_, err = NewLocalFetcher(dir, "brotli", nil)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))
}

// sliceReader replays records without any file behind it.
type sliceReader struct {
	schema   *arrow.Schema
	records  []arrow.Record
	index    int
	released bool
}

func (r *sliceReader) Schema() *arrow.Schema { return r.schema }
func (r *sliceReader) Next() bool {
	r.index++
	return r.index <= len(r.records)
}
func (r *sliceReader) Record() arrow.Record { return r.records[r.index-1] }
func (r *sliceReader) Err() error           { return nil }
func (r *sliceReader) Release()             { r.released = true }

func TestShuffleReaderFailover(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)

	first := ExecutorMeta{ID: "a", Host: "10.0.0.1", Port: 50051}
	second := ExecutorMeta{ID: "b", Host: "10.0.0.2", Port: 50051}
	pid := PartitionID{JobID: "job", StageID: 1, PartitionID: 0}
	reader := &sliceReader{schema: salesSchema, records: []arrow.Record{salesRecord(t)}}

	gomock.InOrder(
		fetcher.EXPECT().FetchPartition(gomock.Any(), first, pid).Return(nil, errors.New("connection refused")),
		fetcher.EXPECT().FetchPartition(gomock.Any(), second, pid).Return(reader, nil),
	)

	exec, err := NewShuffleReaderExec([]PartitionLocation{{PartitionID: pid, Executors: []ExecutorMeta{first, second}}},
		salesSchema, fetcher, WithLogger(log.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 1, exec.OutputPartitioning())

	recs, err := executor.Collect(context.Background(), exec, 1)
	require.NoError(t, err)
	testutil.AssertRows(t, [][]any{{"east", int64(10)}, {"west", nil}, {"east", int64(5)}}, recs)
	assert.True(t, reader.released)
}

func TestShuffleReaderAllCandidatesFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)

	wrong := testutil.Schema(testutil.Field("x", arrow.PrimitiveTypes.Int32, false))
	mismatched := NewMockRecordReader(ctrl)
	mismatched.EXPECT().Schema().Return(wrong).AnyTimes()
	mismatched.EXPECT().Release()

	pid := PartitionID{JobID: "job", StageID: 3, PartitionID: 1}
	fetcher.EXPECT().FetchPartition(gomock.Any(), ExecutorMeta{ID: "a"}, pid).Return(mismatched, nil)
	fetcher.EXPECT().FetchPartition(gomock.Any(), ExecutorMeta{ID: "b"}, pid).Return(nil, os.ErrNotExist)

	exec, err := NewShuffleReaderExec([]PartitionLocation{{PartitionID: pid, Executors: []ExecutorMeta{{ID: "a"}, {ID: "b"}}}},
		salesSchema, fetcher, WithLogger(log.Nop()))
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrSchemaMismatch)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "job/3/1")

	_, err = exec.Execute(context.Background(), 1)
	assert.ErrorIs(t, err, executor.ErrInvalidPartition)
}

func TestShuffleReaderPartitionOrder(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	f, err := NewLocalFetcher(dir, CodecZstd, log.Nop())
	require.NoError(t, err)

	var locations []PartitionLocation
	for i, region := range []string{"north", "south", "west"} {
		id := PartitionID{JobID: "q", StageID: 1, PartitionID: i}
		rec := testutil.Record(t, salesSchema, testutil.Strings(region), testutil.Int64s(int64(i)))
		rec.Retain()
		_, err := f.WritePartition(context.Background(), "e1", id, executor.NewRecordStream(salesSchema, []arrow.Record{rec}))
		require.NoError(t, err)
		locations = append(locations, PartitionLocation{PartitionID: id, Executors: []ExecutorMeta{{ID: "e1", Host: "h", Port: 1}}})
	}

	exec, err := NewShuffleReaderExec(locations, salesSchema, f)
	require.NoError(t, err)
	assert.Equal(t, "ShuffleReaderExec: partitions=[q/1/0, q/1/1, q/1/2]", exec.String())

	parts, err := executor.CollectPartitions(context.Background(), exec, 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for i, region := range []string{"north", "south", "west"} {
		testutil.AssertRows(t, [][]any{{region, int64(i)}}, parts[i])
	}
}

func TestNewShuffleReaderExecValidation(t *testing.T) {
	_, err := NewShuffleReaderExec(nil, salesSchema, nil)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))
	_, err = NewShuffleReaderExec(nil, nil, NewMockFetcher(gomock.NewController(t)))
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))
}

func TestExecutorMetaAddress(t *testing.T) {
	assert.Equal(t, "[::1]:7000", ExecutorMeta{Host: "::1", Port: 7000}.Address())
	assert.Equal(t, "e@host:1", ExecutorMeta{ID: "e", Host: "host", Port: 1}.String())
}
