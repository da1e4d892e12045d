package executor

import (
	"errors"
	"fmt"
)

// Common errors for executor package
var (
	// ErrInvalidPartition is returned when a partition outside an operator's
	// output partitioning is executed
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrSchemaMismatch is returned when a batch does not match the schema it
	// is declared with
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNoInputFiles is returned when a scan resolves to no files
	ErrNoInputFiles = errors.New("no input files")
)

// PartitionError provides detailed information about an invalid partition
type PartitionError struct {
	Operator  string
	Partition int
	Count     int
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("%s: invalid partition %d, operator has %d partitions", e.Operator, e.Partition, e.Count)
}

func (e *PartitionError) Is(target error) bool {
	return target == ErrInvalidPartition
}
