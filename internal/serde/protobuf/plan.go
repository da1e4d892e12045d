// Package protobuf holds the wire messages exchanged between the scheduler and
// executors. The types mirror the plan protocol: every oneof is a sealed
// interface implemented by the messages that may occupy it. An envelope whose
// oneof is unset is still a valid message; rejecting it is up to the consumer.
//
// Messages travel in the protobuf binary format (see plan.proto for field
// numbers) or, for plan files, as JSON or YAML.
package protobuf

import "encoding/json"

// PhysicalPlanNode is the envelope of one operator in a physical plan.
type PhysicalPlanNode struct {
	PhysicalPlanType PhysicalPlanType

	// raw holds the undecoded message when no known variant was present
	raw json.RawMessage
}

// PhysicalPlanType is implemented by every plan node variant.
type PhysicalPlanType interface {
	planVariant() string
}

// ProjectionExecNode evaluates expressions over its input.
type ProjectionExecNode struct {
	Input *PhysicalPlanNode  `json:"input,omitempty"`
	Expr  []*LogicalExprNode `json:"expr,omitempty"`
	// ExprName optionally names each output column, by position.
	ExprName []string `json:"expr_name,omitempty"`
}

// FilterExecNode keeps the rows for which a predicate holds.
type FilterExecNode struct {
	Input *PhysicalPlanNode `json:"input,omitempty"`
	Expr  *LogicalExprNode  `json:"expr,omitempty"`
}

// CsvScanExecNode reads CSV files.
type CsvScanExecNode struct {
	Path          string   `json:"path,omitempty"`
	Projection    []uint32 `json:"projection,omitempty"`
	Schema        *Schema  `json:"schema,omitempty"`
	FileExtension string   `json:"file_extension,omitempty"`
	HasHeader     bool     `json:"has_header,omitempty"`
	// BatchSize is the scheduler's batch size; executors use their own.
	BatchSize uint32 `json:"batch_size,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
}

// ParquetScanExecNode reads Parquet files, one partition per file.
type ParquetScanExecNode struct {
	Filename      []string `json:"filename,omitempty"`
	Projection    []uint32 `json:"projection,omitempty"`
	NumPartitions uint32   `json:"num_partitions,omitempty"`
	BatchSize     uint32   `json:"batch_size,omitempty"`
	// Schema is optional; when present file footers are not read during
	// translation.
	Schema *Schema `json:"schema,omitempty"`
}

// SelectionExecNode is part of the protocol but has no executor operator.
type SelectionExecNode struct {
	Input *PhysicalPlanNode `json:"input,omitempty"`
	Expr  *LogicalExprNode  `json:"expr,omitempty"`
}

// CoalesceBatchesExecNode merges small batches.
type CoalesceBatchesExecNode struct {
	Input           *PhysicalPlanNode `json:"input,omitempty"`
	TargetBatchSize uint32            `json:"target_batch_size,omitempty"`
}

// GlobalLimitExecNode limits the rows of the whole input.
type GlobalLimitExecNode struct {
	Input *PhysicalPlanNode `json:"input,omitempty"`
	Limit uint32            `json:"limit,omitempty"`
}

// LocalLimitExecNode limits the rows of each input partition.
type LocalLimitExecNode struct {
	Input *PhysicalPlanNode `json:"input,omitempty"`
	Limit uint32            `json:"limit,omitempty"`
}

// HashAggregateExecNode groups and aggregates its input.
type HashAggregateExecNode struct {
	GroupExpr []*LogicalExprNode `json:"group_expr,omitempty"`
	AggrExpr  []*LogicalExprNode `json:"aggr_expr,omitempty"`
	Mode      AggregateMode      `json:"mode,omitempty"`
	Input     *PhysicalPlanNode  `json:"input,omitempty"`
}

// HashJoinExecNode joins two inputs on equal key columns.
type HashJoinExecNode struct {
	Left     *PhysicalPlanNode `json:"left,omitempty"`
	Right    *PhysicalPlanNode `json:"right,omitempty"`
	On       []*JoinOn         `json:"on,omitempty"`
	JoinType JoinType          `json:"join_type,omitempty"`
}

// JoinOn pairs a left column with a right column.
type JoinOn struct {
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
}

// ShuffleReaderExecNode reads partitions produced by an earlier stage.
type ShuffleReaderExecNode struct {
	PartitionLocation []*PartitionLocation `json:"partition_location,omitempty"`
	Schema            *Schema              `json:"schema,omitempty"`
}

// EmptyExecNode produces no rows, or a single row of nulls.
type EmptyExecNode struct {
	ProduceOneRow bool    `json:"produce_one_row,omitempty"`
	Schema        *Schema `json:"schema,omitempty"`
}

// SortExecNode sorts its input; every expression is a sort descriptor.
type SortExecNode struct {
	Input *PhysicalPlanNode  `json:"input,omitempty"`
	Expr  []*LogicalExprNode `json:"expr,omitempty"`
}

// PartitionLocation lists the executors holding a shuffle partition.
type PartitionLocation struct {
	PartitionId    *PartitionId        `json:"partition_id,omitempty"`
	ExecutorMeta   []*ExecutorMetadata `json:"executor_meta,omitempty"`
	PartitionStats *PartitionStats     `json:"partition_stats,omitempty"`
}

// PartitionId identifies a partition of a query stage.
type PartitionId struct {
	JobId       string `json:"job_id,omitempty"`
	StageId     uint32 `json:"stage_id,omitempty"`
	PartitionId uint32 `json:"partition_id,omitempty"`
}

// ExecutorMetadata is the address of an executor.
type ExecutorMetadata struct {
	Id   string `json:"id,omitempty"`
	Host string `json:"host,omitempty"`
	Port uint32 `json:"port,omitempty"`
}

// PartitionStats are informational; -1 means unknown.
type PartitionStats struct {
	NumRows    int64 `json:"num_rows,omitempty"`
	NumBatches int64 `json:"num_batches,omitempty"`
	NumBytes   int64 `json:"num_bytes,omitempty"`
}

func (*ProjectionExecNode) planVariant() string      { return "projection" }
func (*FilterExecNode) planVariant() string          { return "filter" }
func (*CsvScanExecNode) planVariant() string         { return "csv_scan" }
func (*ParquetScanExecNode) planVariant() string     { return "parquet_scan" }
func (*SelectionExecNode) planVariant() string       { return "selection" }
func (*CoalesceBatchesExecNode) planVariant() string { return "coalesce_batches" }
func (*GlobalLimitExecNode) planVariant() string     { return "global_limit" }
func (*LocalLimitExecNode) planVariant() string      { return "local_limit" }
func (*HashAggregateExecNode) planVariant() string   { return "hash_aggregate" }
func (*HashJoinExecNode) planVariant() string        { return "hash_join" }
func (*ShuffleReaderExecNode) planVariant() string   { return "shuffle_reader" }
func (*EmptyExecNode) planVariant() string           { return "empty" }
func (*SortExecNode) planVariant() string            { return "sort" }

var planVariants = map[string]func() PhysicalPlanType{
	"projection":       func() PhysicalPlanType { return &ProjectionExecNode{} },
	"filter":           func() PhysicalPlanType { return &FilterExecNode{} },
	"csv_scan":         func() PhysicalPlanType { return &CsvScanExecNode{} },
	"parquet_scan":     func() PhysicalPlanType { return &ParquetScanExecNode{} },
	"selection":        func() PhysicalPlanType { return &SelectionExecNode{} },
	"coalesce_batches": func() PhysicalPlanType { return &CoalesceBatchesExecNode{} },
	"global_limit":     func() PhysicalPlanType { return &GlobalLimitExecNode{} },
	"local_limit":      func() PhysicalPlanType { return &LocalLimitExecNode{} },
	"hash_aggregate":   func() PhysicalPlanType { return &HashAggregateExecNode{} },
	"hash_join":        func() PhysicalPlanType { return &HashJoinExecNode{} },
	"shuffle_reader":   func() PhysicalPlanType { return &ShuffleReaderExecNode{} },
	"empty":            func() PhysicalPlanType { return &EmptyExecNode{} },
	"sort":             func() PhysicalPlanType { return &SortExecNode{} },
}

func (n *PhysicalPlanNode) variant() PhysicalPlanType {
	if n == nil {
		return nil
	}
	return n.PhysicalPlanType
}

// VariantName returns the wire name of the node's variant, or "" when unset.
func (n *PhysicalPlanNode) VariantName() string {
	if v := n.variant(); v != nil {
		return v.planVariant()
	}
	return ""
}
