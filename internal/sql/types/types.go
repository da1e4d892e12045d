// Package types holds the value-level helpers shared by the expression and
// operator layers: type predicates over Arrow data types, row value access,
// comparison and coercion.
package types

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
)

const secondsPerDay = 24 * 60 * 60

// IsSignedInteger reports whether dt is INT8..INT64.
func IsSignedInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	}
	return false
}

// IsUnsignedInteger reports whether dt is UINT8..UINT64.
func IsUnsignedInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

// IsInteger reports whether dt is any integer type.
func IsInteger(dt arrow.DataType) bool {
	return IsSignedInteger(dt) || IsUnsignedInteger(dt)
}

// IsFloat reports whether dt is FLOAT32 or FLOAT64.
func IsFloat(dt arrow.DataType) bool {
	return dt.ID() == arrow.FLOAT32 || dt.ID() == arrow.FLOAT64
}

// IsNumeric reports whether dt is an integer or floating point type.
func IsNumeric(dt arrow.DataType) bool {
	return IsInteger(dt) || IsFloat(dt)
}

// IsString reports whether dt is a UTF-8 string type.
func IsString(dt arrow.DataType) bool {
	return dt.ID() == arrow.STRING || dt.ID() == arrow.LARGE_STRING
}

// IsNull reports whether dt is the null type.
func IsNull(dt arrow.DataType) bool {
	return dt.ID() == arrow.NULL
}

// Comparable reports whether values of l and r can be ordered against each other.
func Comparable(l, r arrow.DataType) bool {
	switch {
	case IsNull(l) || IsNull(r):
		return true
	case IsNumeric(l) && IsNumeric(r):
		return true
	case IsString(l) && IsString(r):
		return true
	default:
		return arrow.TypeEqual(l, r)
	}
}

// ArithmeticResultType returns the type produced by arithmetic on l and r:
// FLOAT64 if either side is floating point, INT64 otherwise.
func ArithmeticResultType(l, r arrow.DataType) (arrow.DataType, bool) {
	if IsNull(l) && IsNull(r) {
		return arrow.PrimitiveTypes.Int64, true
	}
	if (!IsNumeric(l) && !IsNull(l)) || (!IsNumeric(r) && !IsNull(r)) {
		return nil, false
	}
	if IsFloat(l) || IsFloat(r) {
		return arrow.PrimitiveTypes.Float64, true
	}
	return arrow.PrimitiveTypes.Int64, true
}

// ValueAt returns the Go value at row i of arr, or nil when the slot is null.
func ValueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return a.Value(i)
	case *array.Date32:
		return a.Value(i)
	case *array.Date64:
		return a.Value(i)
	}
	return nil
}

// AsInt64 converts an integer-valued Go value to int64.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true //nolint:gosec // values above MaxInt64 wrap like a C cast
	case arrow.Date32:
		return int64(x), true
	case arrow.Date64:
		return int64(x), true
	}
	return 0, false
}

// AsFloat64 converts any numeric Go value to float64.
func AsFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := AsInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func isFloatValue(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

// Compare orders two non-null values. Numeric values of different widths are
// compared numerically. It returns an error for values that cannot be ordered
// against each other.
func Compare(a, b any) (int, error) {
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		default:
			return 1, nil
		}
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}

	if isFloatValue(a) || isFloatValue(b) {
		x, ok1 := AsFloat64(a)
		y, ok2 := AsFloat64(b)
		if ok1 && ok2 {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			case x == y:
				return 0, nil
			}
			// NaN sorts after every number
			switch {
			case math.IsNaN(x) && math.IsNaN(y):
				return 0, nil
			case math.IsNaN(x):
				return 1, nil
			default:
				return -1, nil
			}
		}
	} else {
		x, ok1 := AsInt64(a)
		y, ok2 := AsInt64(b)
		if ok1 && ok2 {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// CastValue converts a non-null Go value to the Go representation of to.
func CastValue(v any, to arrow.DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch to.ID() {
	case arrow.NULL:
		return nil, nil
	case arrow.BOOL:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, qerrors.InvalidTextRepresentationError("boolean", x)
			}
			return b, nil
		}
		if i, ok := AsInt64(v); ok {
			return i != 0, nil
		}
	case arrow.STRING, arrow.LARGE_STRING:
		return FormatValue(v), nil
	case arrow.BINARY:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
	case arrow.FLOAT32, arrow.FLOAT64:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, qerrors.InvalidTextRepresentationError(to.Name(), s)
			}
			v = f
		}
		if f, ok := AsFloat64(v); ok {
			if to.ID() == arrow.FLOAT32 {
				return float32(f), nil
			}
			return f, nil
		}
	case arrow.DATE32:
		if d, ok := v.(arrow.Date32); ok {
			return d, nil
		}
		if i, ok := AsInt64(v); ok {
			return arrow.Date32(i), nil
		}
	case arrow.DATE64:
		if d, ok := v.(arrow.Date64); ok {
			return d, nil
		}
		if i, ok := AsInt64(v); ok {
			return arrow.Date64(i), nil
		}
	default:
		if IsInteger(to) {
			return castInteger(v, to)
		}
	}
	return nil, qerrors.InvalidCastError(fmt.Sprintf("%T", v), to.Name())
}

func castInteger(v any, to arrow.DataType) (any, error) {
	var i int64
	switch x := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, qerrors.InvalidTextRepresentationError(to.Name(), x)
		}
		i = parsed
	case float32, float64:
		f, _ := AsFloat64(x)
		if math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return nil, qerrors.Newf(qerrors.NumericValueOutOfRange, "value %v out of range for type %s", f, to.Name())
		}
		i = int64(f)
	case bool:
		if x {
			i = 1
		}
	default:
		n, ok := AsInt64(v)
		if !ok {
			return nil, qerrors.InvalidCastError(fmt.Sprintf("%T", v), to.Name())
		}
		i = n
	}

	switch to.ID() {
	case arrow.INT8:
		if i < math.MinInt8 || i > math.MaxInt8 {
			break
		}
		return int8(i), nil
	case arrow.INT16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			break
		}
		return int16(i), nil
	case arrow.INT32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			break
		}
		return int32(i), nil
	case arrow.INT64:
		return i, nil
	case arrow.UINT8:
		if i < 0 || i > math.MaxUint8 {
			break
		}
		return uint8(i), nil
	case arrow.UINT16:
		if i < 0 || i > math.MaxUint16 {
			break
		}
		return uint16(i), nil
	case arrow.UINT32:
		if i < 0 || i > math.MaxUint32 {
			break
		}
		return uint32(i), nil
	case arrow.UINT64:
		if i < 0 {
			break
		}
		return uint64(i), nil
	}
	return nil, qerrors.Newf(qerrors.NumericValueOutOfRange, "value %d out of range for type %s", i, to.Name())
}

// FormatValue renders a value the way result tables print it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case arrow.Date32:
		return time.Unix(int64(x)*secondsPerDay, 0).UTC().Format("2006-01-02")
	case arrow.Date64:
		return time.UnixMilli(int64(x)).UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("%v", v)
}
