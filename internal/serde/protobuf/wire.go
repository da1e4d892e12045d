package protobuf

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary encoding of the messages, with the field numbers of plan.proto.
// Zero scalars are omitted as in proto3, oneof members are always written
// and unknown fields are skipped. A known field carrying the wrong wire
// type is an error.

// MarshalPlan encodes a plan in the protobuf binary format.
func MarshalPlan(n *PhysicalPlanNode) ([]byte, error) {
	if n == nil {
		return nil, errors.New("cannot encode a nil plan")
	}
	return n.appendWire(nil), nil
}

// UnmarshalPlan decodes a plan from the protobuf binary format.
func UnmarshalPlan(data []byte) (*PhysicalPlanNode, error) {
	n := &PhysicalPlanNode{}
	if err := n.unmarshalWire(data); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return n, nil
}

// MarshalExpr encodes an expression in the protobuf binary format.
func MarshalExpr(e *LogicalExprNode) ([]byte, error) {
	if e == nil {
		return nil, errors.New("cannot encode a nil expression")
	}
	return e.appendWire(nil), nil
}

// UnmarshalExpr decodes an expression from the protobuf binary format.
func UnmarshalExpr(data []byte) (*LogicalExprNode, error) {
	e := &LogicalExprNode{}
	if err := e.unmarshalWire(data); err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	return e, nil
}

type wireMessage interface {
	appendWire(b []byte) []byte
	unmarshalWire(b []byte) error
}

type oneofField struct {
	num  protowire.Number
	name string
}

type oneofTable struct {
	byNum  map[protowire.Number]string
	byName map[string]protowire.Number
}

func newOneofTable(fields ...oneofField) oneofTable {
	t := oneofTable{
		byNum:  make(map[protowire.Number]string, len(fields)),
		byName: make(map[string]protowire.Number, len(fields)),
	}
	for _, f := range fields {
		t.byNum[f.num] = f.name
		t.byName[f.name] = f.num
	}
	return t
}

var planFields = newOneofTable(
	oneofField{1, "parquet_scan"},
	oneofField{2, "csv_scan"},
	oneofField{3, "empty"},
	oneofField{4, "projection"},
	oneofField{5, "selection"},
	oneofField{6, "global_limit"},
	oneofField{7, "local_limit"},
	oneofField{8, "hash_aggregate"},
	oneofField{9, "hash_join"},
	oneofField{10, "shuffle_reader"},
	oneofField{11, "sort"},
	oneofField{12, "coalesce_batches"},
	oneofField{13, "filter"},
)

var exprFields = newOneofTable(
	oneofField{1, "column"},
	oneofField{2, "alias"},
	oneofField{3, "literal"},
	oneofField{4, "binary_expr"},
	oneofField{5, "aggregate_expr"},
	oneofField{6, "is_null_expr"},
	oneofField{7, "is_not_null_expr"},
	oneofField{8, "not_expr"},
	oneofField{9, "between"},
	oneofField{10, "case_"},
	oneofField{11, "cast"},
	oneofField{12, "sort"},
	oneofField{13, "negative"},
	oneofField{14, "in_list"},
	oneofField{15, "wildcard"},
	oneofField{16, "scalar_udf_expr"},
	oneofField{17, "aggregate_udf_expr"},
	oneofField{18, "scalar_variable"},
)

// field is one decoded tag and its value.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64 // varint, fixed32 and fixed64
	bytes []byte
}

func (f field) want(t protowire.Type) error {
	if f.typ != t {
		return fmt.Errorf("field %d has wire type %d, want %d", f.num, f.typ, t)
	}
	return nil
}

func eachField(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.value = uint64(v)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			// groups never occur in the protocol
			if n = protowire.ConsumeFieldValue(num, typ, b); n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// unknownFields records field numbers of an envelope whose oneof matched
// nothing, so error details can show what was received.
func unknownFields(nums []protowire.Number) json.RawMessage {
	if len(nums) == 0 {
		return nil
	}
	data, err := json.Marshal(map[string][]protowire.Number{"unknown_fields": nums})
	if err != nil {
		return nil
	}
	return data
}

// encoding helpers

func appendMessage(b []byte, num protowire.Number, m wireMessage) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendWire(nil))
}

func appendOptional[P interface {
	*M
	wireMessage
}, M any](b []byte, num protowire.Number, m P) []byte {
	if (*M)(m) == nil {
		return b
	}
	return appendMessage(b, num, m)
}

func appendRepeated[P interface {
	*M
	wireMessage
}, M any](b []byte, num protowire.Number, ms []P) []byte {
	for _, m := range ms {
		if (*M)(m) == nil {
			m = P(new(M))
		}
		b = appendMessage(b, num, m)
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendStrings(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendEnum sign-extends negative values as protobuf does for int32.
func appendEnum[E ~int32](b []byte, num protowire.Number, v E) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendPackedUint32s(b []byte, num protowire.Number, vs []uint32) []byte {
	if len(vs) == 0 {
		return b
	}
	var body []byte
	for _, v := range vs {
		body = protowire.AppendVarint(body, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

// decoding helpers

func decodeOptional[P interface {
	*M
	wireMessage
}, M any](f field, dst **M) error {
	if err := f.want(protowire.BytesType); err != nil {
		return err
	}
	m := P(new(M))
	if err := m.unmarshalWire(f.bytes); err != nil {
		return err
	}
	*dst = (*M)(m)
	return nil
}

func decodeRepeated[P interface {
	*M
	wireMessage
}, M any](f field, dst *[]*M) error {
	var m *M
	if err := decodeOptional[P](f, &m); err != nil {
		return err
	}
	*dst = append(*dst, m)
	return nil
}

func setString(f field, dst *string) error {
	if err := f.want(protowire.BytesType); err != nil {
		return err
	}
	*dst = string(f.bytes)
	return nil
}

func addString(f field, dst *[]string) error {
	var s string
	if err := setString(f, &s); err != nil {
		return err
	}
	*dst = append(*dst, s)
	return nil
}

func setBool(f field, dst *bool) error {
	if err := f.want(protowire.VarintType); err != nil {
		return err
	}
	*dst = protowire.DecodeBool(f.value)
	return nil
}

func setUint32(f field, dst *uint32) error {
	if err := f.want(protowire.VarintType); err != nil {
		return err
	}
	*dst = uint32(f.value)
	return nil
}

func setInt64(f field, dst *int64) error {
	if err := f.want(protowire.VarintType); err != nil {
		return err
	}
	*dst = int64(f.value)
	return nil
}

// setEnum keeps unknown values; the consumer decides whether they are valid.
func setEnum[E ~int32](f field, dst *E) error {
	if err := f.want(protowire.VarintType); err != nil {
		return err
	}
	*dst = E(int32(f.value))
	return nil
}

// addUint32s accepts both packed and unpacked encodings.
func addUint32s(f field, dst *[]uint32) error {
	switch f.typ {
	case protowire.VarintType:
		*dst = append(*dst, uint32(f.value))
		return nil
	case protowire.BytesType:
		b := f.bytes
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("field %d: %w", f.num, protowire.ParseError(n))
			}
			*dst = append(*dst, uint32(v))
			b = b[n:]
		}
		return nil
	}
	return f.want(protowire.VarintType)
}

// envelopes

func (n *PhysicalPlanNode) appendWire(b []byte) []byte {
	if n.PhysicalPlanType == nil {
		return b
	}
	num := planFields.byName[n.PhysicalPlanType.planVariant()]
	return appendMessage(b, num, n.PhysicalPlanType.(wireMessage))
}

func (n *PhysicalPlanNode) unmarshalWire(b []byte) error {
	*n = PhysicalPlanNode{}
	var unknown []protowire.Number
	err := eachField(b, func(f field) error {
		name, ok := planFields.byNum[f.num]
		if !ok {
			unknown = append(unknown, f.num)
			return nil
		}
		v := planVariants[name]()
		if err := f.want(protowire.BytesType); err != nil {
			return err
		}
		if err := v.(wireMessage).unmarshalWire(f.bytes); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		n.PhysicalPlanType = v
		return nil
	})
	if err != nil {
		return fmt.Errorf("PhysicalPlanNode: %w", err)
	}
	if n.PhysicalPlanType == nil {
		n.raw = unknownFields(unknown)
	}
	return nil
}

func (n *LogicalExprNode) appendWire(b []byte) []byte {
	switch x := n.ExprType.(type) {
	case nil:
		return b
	case *ColumnRef:
		b = protowire.AppendTag(b, exprFields.byName["column"], protowire.BytesType)
		return protowire.AppendString(b, x.Name)
	case *WildcardNode:
		b = protowire.AppendTag(b, exprFields.byName["wildcard"], protowire.VarintType)
		return protowire.AppendVarint(b, 1)
	}
	num := exprFields.byName[n.ExprType.exprVariant()]
	return appendMessage(b, num, n.ExprType.(wireMessage))
}

func (n *LogicalExprNode) unmarshalWire(b []byte) error {
	*n = LogicalExprNode{}
	var unknown []protowire.Number
	err := eachField(b, func(f field) error {
		name, ok := exprFields.byNum[f.num]
		if !ok {
			unknown = append(unknown, f.num)
			return nil
		}
		switch name {
		case "column":
			ref := &ColumnRef{}
			if err := setString(f, &ref.Name); err != nil {
				return err
			}
			n.ExprType = ref
			return nil
		case "wildcard":
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			n.ExprType = &WildcardNode{}
			return nil
		}
		v := exprVariants[name]()
		if err := f.want(protowire.BytesType); err != nil {
			return err
		}
		if err := v.(wireMessage).unmarshalWire(f.bytes); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		n.ExprType = v
		return nil
	})
	if err != nil {
		return fmt.Errorf("LogicalExprNode: %w", err)
	}
	if n.ExprType == nil {
		n.raw = unknownFields(unknown)
	}
	return nil
}

// plan variants

func (n *ProjectionExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	b = appendRepeated(b, 2, n.Expr)
	return appendStrings(b, 3, n.ExprName)
}

func (n *ProjectionExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return decodeRepeated(f, &n.Expr)
		case 3:
			return addString(f, &n.ExprName)
		}
		return nil
	})
}

func (n *FilterExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	return appendOptional(b, 2, n.Expr)
}

func (n *FilterExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return decodeOptional(f, &n.Expr)
		}
		return nil
	})
}

func (n *SelectionExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	return appendOptional(b, 2, n.Expr)
}

func (n *SelectionExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return decodeOptional(f, &n.Expr)
		}
		return nil
	})
}

func (n *CsvScanExecNode) appendWire(b []byte) []byte {
	b = appendString(b, 1, n.Path)
	b = appendPackedUint32s(b, 2, n.Projection)
	b = appendOptional(b, 3, n.Schema)
	b = appendString(b, 4, n.FileExtension)
	b = appendBool(b, 5, n.HasHeader)
	b = appendVarint(b, 6, uint64(n.BatchSize))
	return appendString(b, 7, n.Delimiter)
}

func (n *CsvScanExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &n.Path)
		case 2:
			return addUint32s(f, &n.Projection)
		case 3:
			return decodeOptional(f, &n.Schema)
		case 4:
			return setString(f, &n.FileExtension)
		case 5:
			return setBool(f, &n.HasHeader)
		case 6:
			return setUint32(f, &n.BatchSize)
		case 7:
			return setString(f, &n.Delimiter)
		}
		return nil
	})
}

func (n *ParquetScanExecNode) appendWire(b []byte) []byte {
	b = appendStrings(b, 1, n.Filename)
	b = appendPackedUint32s(b, 2, n.Projection)
	b = appendVarint(b, 3, uint64(n.NumPartitions))
	b = appendVarint(b, 4, uint64(n.BatchSize))
	return appendOptional(b, 5, n.Schema)
}

func (n *ParquetScanExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return addString(f, &n.Filename)
		case 2:
			return addUint32s(f, &n.Projection)
		case 3:
			return setUint32(f, &n.NumPartitions)
		case 4:
			return setUint32(f, &n.BatchSize)
		case 5:
			return decodeOptional(f, &n.Schema)
		}
		return nil
	})
}

func (n *CoalesceBatchesExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	return appendVarint(b, 2, uint64(n.TargetBatchSize))
}

func (n *CoalesceBatchesExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return setUint32(f, &n.TargetBatchSize)
		}
		return nil
	})
}

func (n *GlobalLimitExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	return appendVarint(b, 2, uint64(n.Limit))
}

func (n *GlobalLimitExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return setUint32(f, &n.Limit)
		}
		return nil
	})
}

func (n *LocalLimitExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	return appendVarint(b, 2, uint64(n.Limit))
}

func (n *LocalLimitExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return setUint32(f, &n.Limit)
		}
		return nil
	})
}

func (n *HashAggregateExecNode) appendWire(b []byte) []byte {
	b = appendRepeated(b, 1, n.GroupExpr)
	b = appendRepeated(b, 2, n.AggrExpr)
	b = appendEnum(b, 3, n.Mode)
	return appendOptional(b, 4, n.Input)
}

func (n *HashAggregateExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeRepeated(f, &n.GroupExpr)
		case 2:
			return decodeRepeated(f, &n.AggrExpr)
		case 3:
			return setEnum(f, &n.Mode)
		case 4:
			return decodeOptional(f, &n.Input)
		}
		return nil
	})
}

func (n *HashJoinExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Left)
	b = appendOptional(b, 2, n.Right)
	b = appendRepeated(b, 3, n.On)
	return appendEnum(b, 4, n.JoinType)
}

func (n *HashJoinExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Left)
		case 2:
			return decodeOptional(f, &n.Right)
		case 3:
			return decodeRepeated(f, &n.On)
		case 4:
			return setEnum(f, &n.JoinType)
		}
		return nil
	})
}

func (n *JoinOn) appendWire(b []byte) []byte {
	b = appendString(b, 1, n.Left)
	return appendString(b, 2, n.Right)
}

func (n *JoinOn) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &n.Left)
		case 2:
			return setString(f, &n.Right)
		}
		return nil
	})
}

func (n *ShuffleReaderExecNode) appendWire(b []byte) []byte {
	b = appendRepeated(b, 1, n.PartitionLocation)
	return appendOptional(b, 2, n.Schema)
}

func (n *ShuffleReaderExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeRepeated(f, &n.PartitionLocation)
		case 2:
			return decodeOptional(f, &n.Schema)
		}
		return nil
	})
}

func (n *EmptyExecNode) appendWire(b []byte) []byte {
	b = appendBool(b, 1, n.ProduceOneRow)
	return appendOptional(b, 2, n.Schema)
}

func (n *EmptyExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setBool(f, &n.ProduceOneRow)
		case 2:
			return decodeOptional(f, &n.Schema)
		}
		return nil
	})
}

func (n *SortExecNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Input)
	return appendRepeated(b, 2, n.Expr)
}

func (n *SortExecNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Input)
		case 2:
			return decodeRepeated(f, &n.Expr)
		}
		return nil
	})
}

// partitions and schemas

func (p *PartitionLocation) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, p.PartitionId)
	b = appendRepeated(b, 2, p.ExecutorMeta)
	return appendOptional(b, 3, p.PartitionStats)
}

func (p *PartitionLocation) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &p.PartitionId)
		case 2:
			return decodeRepeated(f, &p.ExecutorMeta)
		case 3:
			return decodeOptional(f, &p.PartitionStats)
		}
		return nil
	})
}

func (p *PartitionId) appendWire(b []byte) []byte {
	b = appendString(b, 1, p.JobId)
	b = appendVarint(b, 2, uint64(p.StageId))
	return appendVarint(b, 4, uint64(p.PartitionId))
}

func (p *PartitionId) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &p.JobId)
		case 2:
			return setUint32(f, &p.StageId)
		case 4:
			return setUint32(f, &p.PartitionId)
		}
		return nil
	})
}

func (m *ExecutorMetadata) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Host)
	return appendVarint(b, 3, uint64(m.Port))
}

func (m *ExecutorMetadata) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &m.Id)
		case 2:
			return setString(f, &m.Host)
		case 3:
			return setUint32(f, &m.Port)
		}
		return nil
	})
}

func (s *PartitionStats) appendWire(b []byte) []byte {
	b = appendVarint(b, 1, uint64(s.NumRows))
	b = appendVarint(b, 2, uint64(s.NumBatches))
	return appendVarint(b, 3, uint64(s.NumBytes))
}

func (s *PartitionStats) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setInt64(f, &s.NumRows)
		case 2:
			return setInt64(f, &s.NumBatches)
		case 3:
			return setInt64(f, &s.NumBytes)
		}
		return nil
	})
}

func (s *Schema) appendWire(b []byte) []byte {
	return appendRepeated(b, 1, s.Columns)
}

func (s *Schema) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			return decodeRepeated(f, &s.Columns)
		}
		return nil
	})
}

func (c *Field) appendWire(b []byte) []byte {
	b = appendString(b, 1, c.Name)
	b = appendOptional(b, 2, c.ArrowType)
	return appendBool(b, 3, c.Nullable)
}

func (c *Field) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &c.Name)
		case 2:
			return decodeOptional(f, &c.ArrowType)
		case 3:
			return setBool(f, &c.Nullable)
		}
		return nil
	})
}

func (t *ArrowType) appendWire(b []byte) []byte {
	return appendEnum(b, 1, t.ScalarType)
}

func (t *ArrowType) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			return setEnum(f, &t.ScalarType)
		}
		return nil
	})
}

// expression variants

func (n *AliasNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Expr)
	return appendString(b, 2, n.Alias)
}

func (n *AliasNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Expr)
		case 2:
			return setString(f, &n.Alias)
		}
		return nil
	})
}

func (n *BinaryExprNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.L)
	b = appendOptional(b, 2, n.R)
	return appendString(b, 3, n.Op)
}

func (n *BinaryExprNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.L)
		case 2:
			return decodeOptional(f, &n.R)
		case 3:
			return setString(f, &n.Op)
		}
		return nil
	})
}

func (n *AggregateExprNode) appendWire(b []byte) []byte {
	b = appendEnum(b, 1, n.AggrFunction)
	b = appendOptional(b, 2, n.Expr)
	return appendBool(b, 3, n.Distinct)
}

func (n *AggregateExprNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setEnum(f, &n.AggrFunction)
		case 2:
			return decodeOptional(f, &n.Expr)
		case 3:
			return setBool(f, &n.Distinct)
		}
		return nil
	})
}

func (n *ScalarUDFExprNode) appendWire(b []byte) []byte {
	b = appendString(b, 1, n.FunName)
	return appendRepeated(b, 2, n.Args)
}

func (n *ScalarUDFExprNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &n.FunName)
		case 2:
			return decodeRepeated(f, &n.Args)
		}
		return nil
	})
}

func (n *AggregateUDFExprNode) appendWire(b []byte) []byte {
	b = appendString(b, 1, n.FunName)
	return appendRepeated(b, 2, n.Args)
}

func (n *AggregateUDFExprNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return setString(f, &n.FunName)
		case 2:
			return decodeRepeated(f, &n.Args)
		}
		return nil
	})
}

func (n *ScalarVariableNode) appendWire(b []byte) []byte {
	return appendStrings(b, 1, n.Names)
}

func (n *ScalarVariableNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			return addString(f, &n.Names)
		}
		return nil
	})
}

func (n *IsNull) appendWire(b []byte) []byte { return appendOptional(b, 1, n.Expr) }

func (n *IsNull) unmarshalWire(b []byte) error { return decodeOnlyExpr(b, &n.Expr) }

func (n *IsNotNull) appendWire(b []byte) []byte { return appendOptional(b, 1, n.Expr) }

func (n *IsNotNull) unmarshalWire(b []byte) error { return decodeOnlyExpr(b, &n.Expr) }

func (n *Not) appendWire(b []byte) []byte { return appendOptional(b, 1, n.Expr) }

func (n *Not) unmarshalWire(b []byte) error { return decodeOnlyExpr(b, &n.Expr) }

func (n *NegativeNode) appendWire(b []byte) []byte { return appendOptional(b, 1, n.Expr) }

func (n *NegativeNode) unmarshalWire(b []byte) error { return decodeOnlyExpr(b, &n.Expr) }

// decodeOnlyExpr reads messages whose single field is expr = 1.
func decodeOnlyExpr(b []byte, dst **LogicalExprNode) error {
	return eachField(b, func(f field) error {
		if f.num == 1 {
			return decodeOptional(f, dst)
		}
		return nil
	})
}

func (n *BetweenNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Expr)
	b = appendBool(b, 2, n.Negated)
	b = appendOptional(b, 3, n.Low)
	return appendOptional(b, 4, n.High)
}

func (n *BetweenNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Expr)
		case 2:
			return setBool(f, &n.Negated)
		case 3:
			return decodeOptional(f, &n.Low)
		case 4:
			return decodeOptional(f, &n.High)
		}
		return nil
	})
}

func (n *CastNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Expr)
	return appendOptional(b, 2, n.ArrowType)
}

func (n *CastNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Expr)
		case 2:
			return decodeOptional(f, &n.ArrowType)
		}
		return nil
	})
}

func (n *SortExprNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Expr)
	b = appendBool(b, 2, n.Asc)
	return appendBool(b, 3, n.NullsFirst)
}

func (n *SortExprNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Expr)
		case 2:
			return setBool(f, &n.Asc)
		case 3:
			return setBool(f, &n.NullsFirst)
		}
		return nil
	})
}

func (n *CaseNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Expr)
	b = appendRepeated(b, 2, n.WhenThenExpr)
	return appendOptional(b, 3, n.ElseExpr)
}

func (n *CaseNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Expr)
		case 2:
			return decodeRepeated(f, &n.WhenThenExpr)
		case 3:
			return decodeOptional(f, &n.ElseExpr)
		}
		return nil
	})
}

func (n *WhenThen) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.WhenExpr)
	return appendOptional(b, 2, n.ThenExpr)
}

func (n *WhenThen) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.WhenExpr)
		case 2:
			return decodeOptional(f, &n.ThenExpr)
		}
		return nil
	})
}

func (n *InListNode) appendWire(b []byte) []byte {
	b = appendOptional(b, 1, n.Expr)
	b = appendRepeated(b, 2, n.List)
	return appendBool(b, 3, n.Negated)
}

func (n *InListNode) unmarshalWire(b []byte) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case 1:
			return decodeOptional(f, &n.Expr)
		case 2:
			return decodeRepeated(f, &n.List)
		case 3:
			return setBool(f, &n.Negated)
		}
		return nil
	})
}

// literals

var scalarWireTypes = map[protowire.Number]protowire.Type{
	1: protowire.VarintType, 2: protowire.BytesType, 3: protowire.BytesType,
	4: protowire.VarintType, 5: protowire.VarintType, 6: protowire.VarintType, 7: protowire.VarintType,
	8: protowire.VarintType, 9: protowire.VarintType, 10: protowire.VarintType, 11: protowire.VarintType,
	12: protowire.Fixed32Type, 13: protowire.Fixed64Type, 14: protowire.VarintType,
	19: protowire.VarintType, 20: protowire.VarintType, 21: protowire.BytesType,
}

func (s *ScalarValue) appendWire(b []byte) []byte {
	switch v := s.Value.(type) {
	case BoolValue:
		return appendScalarVarint(b, 1, protowire.EncodeBool(bool(v)))
	case Utf8Value:
		return appendScalarBytes(b, 2, []byte(v))
	case LargeUtf8Value:
		return appendScalarBytes(b, 3, []byte(v))
	case Int8Value:
		return appendScalarVarint(b, 4, uint64(int64(v)))
	case Int16Value:
		return appendScalarVarint(b, 5, uint64(int64(v)))
	case Int32Value:
		return appendScalarVarint(b, 6, uint64(int64(v)))
	case Int64Value:
		return appendScalarVarint(b, 7, uint64(v))
	case Uint8Value:
		return appendScalarVarint(b, 8, uint64(v))
	case Uint16Value:
		return appendScalarVarint(b, 9, uint64(v))
	case Uint32Value:
		return appendScalarVarint(b, 10, uint64(v))
	case Uint64Value:
		return appendScalarVarint(b, 11, uint64(v))
	case Float32Value:
		b = protowire.AppendTag(b, 12, protowire.Fixed32Type)
		return protowire.AppendFixed32(b, math.Float32bits(float32(v)))
	case Float64Value:
		b = protowire.AppendTag(b, 13, protowire.Fixed64Type)
		return protowire.AppendFixed64(b, math.Float64bits(float64(v)))
	case Date32Value:
		return appendScalarVarint(b, 14, uint64(int64(v)))
	case NullValue:
		return appendScalarVarint(b, 19, uint64(int64(v)))
	case Date64Value:
		return appendScalarVarint(b, 20, uint64(v))
	case BinaryValue:
		return appendScalarBytes(b, 21, v)
	}
	return b
}

func appendScalarVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendScalarBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func (s *ScalarValue) unmarshalWire(b []byte) error {
	*s = ScalarValue{}
	return eachField(b, func(f field) error {
		typ, ok := scalarWireTypes[f.num]
		if !ok {
			return nil
		}
		if err := f.want(typ); err != nil {
			return err
		}
		v, err := scalarFromWire(f)
		if err != nil {
			return err
		}
		s.Value = v
		return nil
	})
}

func scalarFromWire(f field) (ScalarValueType, error) {
	signed := int64(f.value)
	switch f.num {
	case 1:
		return BoolValue(protowire.DecodeBool(f.value)), nil
	case 2:
		return Utf8Value(f.bytes), nil
	case 3:
		return LargeUtf8Value(f.bytes), nil
	case 4:
		if signed < math.MinInt8 || signed > math.MaxInt8 {
			return nil, fmt.Errorf("int8_value %d out of range", signed)
		}
		return Int8Value(signed), nil
	case 5:
		if signed < math.MinInt16 || signed > math.MaxInt16 {
			return nil, fmt.Errorf("int16_value %d out of range", signed)
		}
		return Int16Value(signed), nil
	case 6:
		return Int32Value(int32(signed)), nil
	case 7:
		return Int64Value(signed), nil
	case 8:
		if f.value > math.MaxUint8 {
			return nil, fmt.Errorf("uint8_value %d out of range", f.value)
		}
		return Uint8Value(f.value), nil
	case 9:
		if f.value > math.MaxUint16 {
			return nil, fmt.Errorf("uint16_value %d out of range", f.value)
		}
		return Uint16Value(f.value), nil
	case 10:
		return Uint32Value(uint32(f.value)), nil
	case 11:
		return Uint64Value(f.value), nil
	case 12:
		return Float32Value(math.Float32frombits(uint32(f.value))), nil
	case 13:
		return Float64Value(math.Float64frombits(f.value)), nil
	case 14:
		return Date32Value(int32(signed)), nil
	case 19:
		return NullValue(int32(signed)), nil
	case 20:
		return Date64Value(signed), nil
	case 21:
		return BinaryValue(append([]byte(nil), f.bytes...)), nil
	}
	return nil, fmt.Errorf("field %d is not a scalar value", f.num)
}

var (
	_ wireMessage = (*PhysicalPlanNode)(nil)
	_ wireMessage = (*LogicalExprNode)(nil)
	_ wireMessage = (*ScalarValue)(nil)
)
