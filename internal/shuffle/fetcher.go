package shuffle

//go:generate mockgen -source=fetcher.go -destination=mock_fetcher.go -package=shuffle

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow"
)

// RecordReader iterates over the batches of a fetched partition. Record is
// valid until the following call to Next.
type RecordReader interface {
	Schema() *arrow.Schema
	Next() bool
	Record() arrow.Record
	Err() error
	Release()
}

// Fetcher retrieves shuffle partitions from executors.
type Fetcher interface {
	FetchPartition(ctx context.Context, executor ExecutorMeta, id PartitionID) (RecordReader, error)
}
