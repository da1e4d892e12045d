package protobuf

import "encoding/json"

// ScalarValue is a literal. Value holds exactly one of the value variants;
// NullValue carries the type of a typed NULL.
type ScalarValue struct {
	Value ScalarValueType
}

// ScalarValueType is implemented by every literal variant.
type ScalarValueType interface {
	scalarVariant() string
}

type (
	BoolValue      bool
	Utf8Value      string
	LargeUtf8Value string
	Int8Value      int8
	Int16Value     int16
	Int32Value     int32
	Int64Value     int64
	Uint8Value     uint8
	Uint16Value    uint16
	Uint32Value    uint32
	Uint64Value    uint64
	Float32Value   float32
	Float64Value   float64
	Date32Value    int32
	Date64Value    int64
	BinaryValue    []byte
	NullValue      PrimitiveScalarType
)

func (BoolValue) scalarVariant() string      { return "bool_value" }
func (Utf8Value) scalarVariant() string      { return "utf8_value" }
func (LargeUtf8Value) scalarVariant() string { return "large_utf8_value" }
func (Int8Value) scalarVariant() string      { return "int8_value" }
func (Int16Value) scalarVariant() string     { return "int16_value" }
func (Int32Value) scalarVariant() string     { return "int32_value" }
func (Int64Value) scalarVariant() string     { return "int64_value" }
func (Uint8Value) scalarVariant() string     { return "uint8_value" }
func (Uint16Value) scalarVariant() string    { return "uint16_value" }
func (Uint32Value) scalarVariant() string    { return "uint32_value" }
func (Uint64Value) scalarVariant() string    { return "uint64_value" }
func (Float32Value) scalarVariant() string   { return "float32_value" }
func (Float64Value) scalarVariant() string   { return "float64_value" }
func (Date32Value) scalarVariant() string    { return "date_32_value" }
func (Date64Value) scalarVariant() string    { return "date_64_value" }
func (BinaryValue) scalarVariant() string    { return "binary_value" }
func (NullValue) scalarVariant() string      { return "null_value" }

func (n NullValue) MarshalJSON() ([]byte, error) { return PrimitiveScalarType(n).MarshalJSON() }

func (n *NullValue) UnmarshalJSON(data []byte) error {
	return (*PrimitiveScalarType)(n).UnmarshalJSON(data)
}

var scalarVariants = map[string]func(json.RawMessage) (ScalarValueType, error){
	"bool_value":       decodeScalar[BoolValue],
	"utf8_value":       decodeScalar[Utf8Value],
	"large_utf8_value": decodeScalar[LargeUtf8Value],
	"int8_value":       decodeScalar[Int8Value],
	"int16_value":      decodeScalar[Int16Value],
	"int32_value":      decodeScalar[Int32Value],
	"int64_value":      decodeScalar[Int64Value],
	"uint8_value":      decodeScalar[Uint8Value],
	"uint16_value":     decodeScalar[Uint16Value],
	"uint32_value":     decodeScalar[Uint32Value],
	"uint64_value":     decodeScalar[Uint64Value],
	"float32_value":    decodeScalar[Float32Value],
	"float64_value":    decodeScalar[Float64Value],
	"date_32_value":    decodeScalar[Date32Value],
	"date_64_value":    decodeScalar[Date64Value],
	"binary_value":     decodeScalar[BinaryValue],
	"null_value":       decodeScalar[NullValue],
}

func decodeScalar[T ScalarValueType](raw json.RawMessage) (ScalarValueType, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Literal wraps a value variant in an expression envelope.
func Literal(v ScalarValueType) *LogicalExprNode {
	return &LogicalExprNode{ExprType: &ScalarValue{Value: v}}
}
