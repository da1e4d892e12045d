package serde

import (
	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
)

var scalarTypes = map[protobuf.PrimitiveScalarType]arrow.DataType{
	protobuf.PrimitiveScalarType_BOOL:       arrow.FixedWidthTypes.Boolean,
	protobuf.PrimitiveScalarType_UINT8:      arrow.PrimitiveTypes.Uint8,
	protobuf.PrimitiveScalarType_INT8:       arrow.PrimitiveTypes.Int8,
	protobuf.PrimitiveScalarType_UINT16:     arrow.PrimitiveTypes.Uint16,
	protobuf.PrimitiveScalarType_INT16:      arrow.PrimitiveTypes.Int16,
	protobuf.PrimitiveScalarType_UINT32:     arrow.PrimitiveTypes.Uint32,
	protobuf.PrimitiveScalarType_INT32:      arrow.PrimitiveTypes.Int32,
	protobuf.PrimitiveScalarType_UINT64:     arrow.PrimitiveTypes.Uint64,
	protobuf.PrimitiveScalarType_INT64:      arrow.PrimitiveTypes.Int64,
	protobuf.PrimitiveScalarType_FLOAT32:    arrow.PrimitiveTypes.Float32,
	protobuf.PrimitiveScalarType_FLOAT64:    arrow.PrimitiveTypes.Float64,
	protobuf.PrimitiveScalarType_UTF8:       arrow.BinaryTypes.String,
	protobuf.PrimitiveScalarType_LARGE_UTF8: arrow.BinaryTypes.LargeString,
	protobuf.PrimitiveScalarType_BINARY:     arrow.BinaryTypes.Binary,
	protobuf.PrimitiveScalarType_DATE32:     arrow.FixedWidthTypes.Date32,
	protobuf.PrimitiveScalarType_DATE64:     arrow.FixedWidthTypes.Date64,
	protobuf.PrimitiveScalarType_NULL:       arrow.Null,
}

// DecodeSchema converts a wire schema carried by node (the wire node kind
// used in errors) into an Arrow schema.
func DecodeSchema(node string, s *protobuf.Schema) (*arrow.Schema, error) {
	if s == nil {
		return nil, qerrors.MissingFieldError(node, "schema")
	}
	fields := make([]arrow.Field, len(s.Columns))
	for i, col := range s.Columns {
		if col == nil || col.Name == "" {
			return nil, qerrors.MissingFieldError(node, "name").
				WithDetailf("column %d of schema", i)
		}
		if col.ArrowType == nil {
			return nil, qerrors.MissingFieldError(node, "arrow_type").WithColumn(col.Name)
		}
		dt, err := DecodeScalarType(node, col.ArrowType.ScalarType)
		if err != nil {
			if qe := qerrors.GetError(err); qe.Column == "" {
				qe.Column = col.Name
			}
			return nil, err
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: col.Nullable}
	}
	return arrow.NewSchema(fields, nil), nil
}

// DecodeScalarType maps a primitive type code to an Arrow type.
func DecodeScalarType(node string, t protobuf.PrimitiveScalarType) (arrow.DataType, error) {
	if dt, ok := scalarTypes[t]; ok {
		return dt, nil
	}
	switch t {
	case protobuf.PrimitiveScalarType_TIME_MICROSECOND, protobuf.PrimitiveScalarType_TIME_NANOSECOND:
		return nil, qerrors.UnsupportedVariantError("arrow type", t.String()).WithNode(node)
	}
	return nil, qerrors.UnknownEnumError(node, "PrimitiveScalarType", int32(t))
}

// EncodeSchema converts an Arrow schema to its wire form. It fails for types
// the protocol cannot express.
func EncodeSchema(schema *arrow.Schema) (*protobuf.Schema, error) {
	out := &protobuf.Schema{Columns: make([]*protobuf.Field, schema.NumFields())}
	for i, f := range schema.Fields() {
		t, err := EncodeScalarType(f.Type)
		if err != nil {
			return nil, err
		}
		out.Columns[i] = protobuf.NewField(f.Name, t, f.Nullable)
	}
	return out, nil
}

// EncodeScalarType is the inverse of DecodeScalarType.
func EncodeScalarType(dt arrow.DataType) (protobuf.PrimitiveScalarType, error) {
	for code, t := range scalarTypes {
		if arrow.TypeEqual(t, dt) {
			return code, nil
		}
	}
	return 0, qerrors.FeatureNotSupportedError("arrow type " + dt.String()).WithDataType(dt.String())
}
