package shuffle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow/go/v13/arrow/ipc"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/dustin/go-humanize"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/log"
	"github.com/dshills/QuantaDist/internal/sql/executor"
)

// LocalFetcher serves shuffle partitions from a shared work directory laid
// out as <work_dir>/<executor_id>/<job_id>/<stage_id>/<partition_id>.arrow,
// with the codec extension appended when the files are compressed.
type LocalFetcher struct {
	workDir    string
	compressor Compressor
	logger     log.Logger
	stats      TransferStats
}

// NewLocalFetcher creates a fetcher rooted at workDir using the named codec.
func NewLocalFetcher(workDir, codec string, logger log.Logger) (*LocalFetcher, error) {
	if workDir == "" {
		return nil, qerrors.New(qerrors.InvalidParameterValue, "work directory must not be empty")
	}
	c, err := CompressorFor(codec)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.InvalidParameterValue, err, "invalid shuffle compression")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LocalFetcher{workDir: workDir, compressor: c, logger: logger}, nil
}

// Compressor returns the codec used for partition files.
func (f *LocalFetcher) Compressor() Compressor { return f.compressor }

// Stats returns a snapshot of the transfer counters.
func (f *LocalFetcher) Stats() TransferStats { return f.stats.Snapshot() }

// PartitionPath returns the file holding id for the given executor.
func (f *LocalFetcher) PartitionPath(executorID string, id PartitionID) string {
	return filepath.Join(f.workDir, executorID, id.JobID,
		strconv.Itoa(id.StageID), strconv.Itoa(id.PartitionID)+".arrow"+f.compressor.Extension())
}

// FetchPartition opens the partition file written by meta. Host and
// port are not consulted since the work directory is shared.
func (f *LocalFetcher) FetchPartition(ctx context.Context, meta ExecutorMeta, id PartitionID) (RecordReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := f.PartitionPath(meta.ID, id)
	file, err := os.Open(path)
	if err != nil {
		f.stats.recordFailure()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, qerrors.IOErrorf("partition %s not found on executor %s", id, meta.ID).
				WithDetail(path)
		}
		return nil, qerrors.IOErrorf("cannot open partition %s: %v", id, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		f.stats.recordFailure()
		return nil, qerrors.IOErrorf("cannot stat %s: %v", path, err)
	}

	dec, err := f.compressor.NewReader(file)
	if err != nil {
		file.Close()
		f.stats.recordFailure()
		return nil, qerrors.Wrap(qerrors.IOError, err, fmt.Sprintf("cannot decode %s", path))
	}
	rdr, err := ipc.NewReader(dec, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		dec.Close()
		file.Close()
		f.stats.recordFailure()
		return nil, qerrors.Wrap(qerrors.DataException, err, fmt.Sprintf("invalid partition file %s", path))
	}

	f.stats.recordRead(info.Size())
	f.logger.Debug("shuffle partition opened",
		"partition", id.String(),
		"executor", meta.ID,
		"codec", f.compressor.Name(),
		"size", humanize.Bytes(uint64(info.Size())))
	return &fileRecordReader{Reader: rdr, closers: []io.Closer{dec, file}}, nil
}

// WritePartition drains stream into the partition file for executorID and
// returns the number of bytes written. The file appears atomically.
func (f *LocalFetcher) WritePartition(ctx context.Context, executorID string, id PartitionID, stream executor.RecordStream) (written int64, err error) {
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	path := f.PartitionPath(executorID, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, qerrors.IOErrorf("cannot create %s: %v", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partition-*")
	if err != nil {
		return 0, qerrors.IOErrorf("cannot create partition file: %v", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc, err := f.compressor.NewWriter(tmp)
	if err != nil {
		return 0, qerrors.Wrap(qerrors.IOError, err, "cannot create encoder")
	}
	w := ipc.NewWriter(enc, ipc.WithSchema(stream.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	rows := int64(0)
	for {
		if err := ctx.Err(); err != nil {
			w.Close()
			return 0, err
		}
		rec, err := stream.Next()
		if err != nil {
			w.Close()
			return 0, err
		}
		if rec == nil {
			break
		}
		rows += rec.NumRows()
		err = w.Write(rec)
		rec.Release()
		if err != nil {
			w.Close()
			return 0, qerrors.Wrap(qerrors.IOError, err, fmt.Sprintf("cannot write partition %s", id))
		}
	}
	if err := w.Close(); err != nil {
		return 0, qerrors.Wrap(qerrors.IOError, err, fmt.Sprintf("cannot finish partition %s", id))
	}
	if err := enc.Close(); err != nil {
		return 0, qerrors.Wrap(qerrors.IOError, err, fmt.Sprintf("cannot flush partition %s", id))
	}
	if err := tmp.Sync(); err != nil {
		return 0, qerrors.IOErrorf("cannot sync partition %s: %v", id, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, qerrors.IOErrorf("cannot stat partition %s: %v", id, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, qerrors.IOErrorf("cannot close partition %s: %v", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, qerrors.IOErrorf("cannot publish partition %s: %v", id, err)
	}

	f.stats.recordWrite(info.Size())
	f.logger.Debug("shuffle partition written",
		"partition", id.String(),
		"executor", executorID,
		"rows", rows,
		"size", humanize.Bytes(uint64(info.Size())))
	return info.Size(), nil
}

// fileRecordReader closes the decoder and file once the IPC reader is released.
type fileRecordReader struct {
	*ipc.Reader
	closers []io.Closer
}

func (r *fileRecordReader) Release() {
	r.Reader.Release()
	for _, c := range r.closers {
		c.Close()
	}
	r.closers = nil
}
