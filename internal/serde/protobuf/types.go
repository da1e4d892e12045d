package protobuf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PrimitiveScalarType enumerates the column and literal types of the protocol.
type PrimitiveScalarType int32

const (
	PrimitiveScalarType_BOOL             PrimitiveScalarType = 0
	PrimitiveScalarType_UINT8            PrimitiveScalarType = 1
	PrimitiveScalarType_INT8             PrimitiveScalarType = 2
	PrimitiveScalarType_UINT16           PrimitiveScalarType = 3
	PrimitiveScalarType_INT16            PrimitiveScalarType = 4
	PrimitiveScalarType_UINT32           PrimitiveScalarType = 5
	PrimitiveScalarType_INT32            PrimitiveScalarType = 6
	PrimitiveScalarType_UINT64           PrimitiveScalarType = 7
	PrimitiveScalarType_INT64            PrimitiveScalarType = 8
	PrimitiveScalarType_FLOAT32          PrimitiveScalarType = 9
	PrimitiveScalarType_FLOAT64          PrimitiveScalarType = 10
	PrimitiveScalarType_UTF8             PrimitiveScalarType = 11
	PrimitiveScalarType_LARGE_UTF8       PrimitiveScalarType = 12
	PrimitiveScalarType_DATE32           PrimitiveScalarType = 13
	PrimitiveScalarType_TIME_MICROSECOND PrimitiveScalarType = 14
	PrimitiveScalarType_TIME_NANOSECOND  PrimitiveScalarType = 15
	PrimitiveScalarType_NULL             PrimitiveScalarType = 16
	PrimitiveScalarType_BINARY           PrimitiveScalarType = 17
	PrimitiveScalarType_DATE64           PrimitiveScalarType = 18
)

var primitiveScalarTypeNames = map[int32]string{
	0: "BOOL", 1: "UINT8", 2: "INT8", 3: "UINT16", 4: "INT16", 5: "UINT32", 6: "INT32",
	7: "UINT64", 8: "INT64", 9: "FLOAT32", 10: "FLOAT64", 11: "UTF8", 12: "LARGE_UTF8",
	13: "DATE32", 14: "TIME_MICROSECOND", 15: "TIME_NANOSECOND", 16: "NULL", 17: "BINARY",
	18: "DATE64",
}

func (t PrimitiveScalarType) String() string { return enumString(int32(t), primitiveScalarTypeNames) }

func (t PrimitiveScalarType) MarshalJSON() ([]byte, error) {
	return marshalEnum(int32(t), primitiveScalarTypeNames)
}

func (t *PrimitiveScalarType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, primitiveScalarTypeNames, "PrimitiveScalarType")
	*t = PrimitiveScalarType(v)
	return err
}

// AggregateMode is the phase of a two-phase aggregation.
type AggregateMode int32

const (
	AggregateMode_PARTIAL AggregateMode = 0
	AggregateMode_FINAL   AggregateMode = 1
)

var aggregateModeNames = map[int32]string{0: "PARTIAL", 1: "FINAL"}

func (m AggregateMode) String() string { return enumString(int32(m), aggregateModeNames) }

func (m AggregateMode) MarshalJSON() ([]byte, error) {
	return marshalEnum(int32(m), aggregateModeNames)
}

func (m *AggregateMode) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, aggregateModeNames, "AggregateMode")
	*m = AggregateMode(v)
	return err
}

// JoinType is the kind of a hash join.
type JoinType int32

const (
	JoinType_INNER JoinType = 0
	JoinType_LEFT  JoinType = 1
	JoinType_RIGHT JoinType = 2
)

var joinTypeNames = map[int32]string{0: "INNER", 1: "LEFT", 2: "RIGHT"}

func (j JoinType) String() string { return enumString(int32(j), joinTypeNames) }

func (j JoinType) MarshalJSON() ([]byte, error) { return marshalEnum(int32(j), joinTypeNames) }

func (j *JoinType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, joinTypeNames, "JoinType")
	*j = JoinType(v)
	return err
}

// AggregateFunction enumerates the built-in aggregates.
type AggregateFunction int32

const (
	AggregateFunction_MIN   AggregateFunction = 0
	AggregateFunction_MAX   AggregateFunction = 1
	AggregateFunction_SUM   AggregateFunction = 2
	AggregateFunction_AVG   AggregateFunction = 3
	AggregateFunction_COUNT AggregateFunction = 4
)

var aggregateFunctionNames = map[int32]string{0: "MIN", 1: "MAX", 2: "SUM", 3: "AVG", 4: "COUNT"}

func (f AggregateFunction) String() string { return enumString(int32(f), aggregateFunctionNames) }

func (f AggregateFunction) MarshalJSON() ([]byte, error) {
	return marshalEnum(int32(f), aggregateFunctionNames)
}

func (f *AggregateFunction) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, aggregateFunctionNames, "AggregateFunction")
	*f = AggregateFunction(v)
	return err
}

func enumString(v int32, names map[int32]string) string {
	if s, ok := names[v]; ok {
		return s
	}
	return strconv.Itoa(int(v))
}

// Known values are written by name; unknown codes are kept as numbers so
// they survive a round trip.
func marshalEnum(v int32, names map[int32]string) ([]byte, error) {
	if s, ok := names[v]; ok {
		return json.Marshal(s)
	}
	return json.Marshal(v)
}

// unmarshalEnum accepts a name or a number. Unknown numbers are accepted;
// deciding what to do with them is up to the consumer.
func unmarshalEnum(data []byte, names map[int32]string, enum string) (int32, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		for v, name := range names {
			if name == s {
				return v, nil
			}
		}
		return 0, fmt.Errorf("unknown %s value %q", enum, s)
	}
	var v int32
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("invalid %s value %s: %w", enum, data, err)
	}
	return v, nil
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []*Field `json:"columns,omitempty"`
}

// Field is one column of a schema.
type Field struct {
	Name      string     `json:"name,omitempty"`
	ArrowType *ArrowType `json:"arrow_type,omitempty"`
	Nullable  bool       `json:"nullable,omitempty"`
}

// ArrowType is the type of a column.
type ArrowType struct {
	ScalarType PrimitiveScalarType `json:"scalar_type"`
}

// NewField is shorthand for a field of a primitive type.
func NewField(name string, t PrimitiveScalarType, nullable bool) *Field {
	return &Field{Name: name, ArrowType: &ArrowType{ScalarType: t}, Nullable: nullable}
}
