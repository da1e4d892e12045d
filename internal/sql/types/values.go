package types

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// AppendValue appends the Go value v to b, converting numeric widths as
// needed. A nil v appends a null.
func AppendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bb := b.(type) {
	case *array.NullBuilder:
		bb.AppendNull()
		return nil
	case *array.BooleanBuilder:
		if x, ok := v.(bool); ok {
			bb.Append(x)
			return nil
		}
	case *array.StringBuilder:
		if x, ok := v.(string); ok {
			bb.Append(x)
			return nil
		}
	case *array.LargeStringBuilder:
		if x, ok := v.(string); ok {
			bb.Append(x)
			return nil
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			bb.Append(x)
			return nil
		case string:
			bb.AppendString(x)
			return nil
		}
	case *array.Float32Builder:
		if f, ok := AsFloat64(v); ok {
			bb.Append(float32(f))
			return nil
		}
	case *array.Float64Builder:
		if f, ok := AsFloat64(v); ok {
			bb.Append(f)
			return nil
		}
	case *array.Date32Builder:
		if i, ok := AsInt64(v); ok {
			bb.Append(arrow.Date32(i))
			return nil
		}
	case *array.Date64Builder:
		if i, ok := AsInt64(v); ok {
			bb.Append(arrow.Date64(i))
			return nil
		}
	default:
		if appendInteger(b, v) {
			return nil
		}
	}
	return fmt.Errorf("cannot append %T to %T", v, b)
}

func appendInteger(b array.Builder, v any) bool {
	i, ok := AsInt64(v)
	if !ok {
		return false
	}
	switch bb := b.(type) {
	case *array.Int8Builder:
		bb.Append(int8(i))
	case *array.Int16Builder:
		bb.Append(int16(i))
	case *array.Int32Builder:
		bb.Append(int32(i))
	case *array.Int64Builder:
		bb.Append(i)
	case *array.Uint8Builder:
		bb.Append(uint8(i))
	case *array.Uint16Builder:
		bb.Append(uint16(i))
	case *array.Uint32Builder:
		bb.Append(uint32(i))
	case *array.Uint64Builder:
		bb.Append(uint64(i))
	default:
		return false
	}
	return true
}

// BuildArray builds an array of type dt holding values, nil meaning null.
func BuildArray(mem memory.Allocator, dt arrow.DataType, values []any) (arrow.Array, error) {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(len(values))
	for _, v := range values {
		if err := AppendValue(b, v); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}

// RepeatValue builds an array of n copies of v.
func RepeatValue(mem memory.Allocator, dt arrow.DataType, v any, n int) (arrow.Array, error) {
	if v == nil {
		return array.MakeArrayOfNull(mem, dt, n), nil
	}
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		if err := AppendValue(b, v); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}
