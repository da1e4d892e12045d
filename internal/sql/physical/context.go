package physical

import (
	"fmt"
	"maps"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// DefaultBatchSize is the target number of rows per batch.
const DefaultBatchSize = 32768

// ExecutionConfig carries the session settings operators read at build time.
type ExecutionConfig struct {
	BatchSize int
}

// ScalarFunction evaluates a scalar UDF over whole argument arrays.
type ScalarFunction func(args []arrow.Array, numRows int) (arrow.Array, error)

// ScalarUDF is a registered scalar function.
type ScalarUDF struct {
	Name string
	// NumArgs is the required argument count, or -1 for variadic functions.
	NumArgs    int
	ReturnType func(argTypes []arrow.DataType) (arrow.DataType, error)
	Fn         ScalarFunction
}

// AggregateUDF is a registered aggregate function. State and return types
// are fixed so partial and final stages agree without seeing the raw input.
type AggregateUDF struct {
	Name           string
	NumArgs        int
	ReturnType     arrow.DataType
	StateTypes     []arrow.DataType
	NewAccumulator func() Accumulator
}

// VarType distinguishes @@system from @user variables.
type VarType int

const (
	VarSystem VarType = iota
	VarUser
)

func (v VarType) String() string {
	if v == VarSystem {
		return "system"
	}
	return "user"
}

// VarProvider resolves scalar variables.
type VarProvider interface {
	GetValue(names []string) (arrow.DataType, any, error)
}

// ExecutionContextState is the environment physical expressions are planned
// in: function registries, variable providers and session settings. It is
// built once per plan reconstruction and shared read-only by all nodes.
type ExecutionContextState struct {
	ScalarFunctions    map[string]*ScalarUDF
	AggregateFunctions map[string]*AggregateUDF
	VarProviders       map[VarType]VarProvider
	Config             ExecutionConfig
}

// NewExecutionContextState returns an empty environment with default settings.
func NewExecutionContextState() *ExecutionContextState {
	return &ExecutionContextState{
		ScalarFunctions:    make(map[string]*ScalarUDF),
		AggregateFunctions: make(map[string]*AggregateUDF),
		VarProviders:       make(map[VarType]VarProvider),
		Config:             ExecutionConfig{BatchSize: DefaultBatchSize},
	}
}

// Clone returns a copy whose registries can be extended independently.
func (s *ExecutionContextState) Clone() *ExecutionContextState {
	return &ExecutionContextState{
		ScalarFunctions:    maps.Clone(s.ScalarFunctions),
		AggregateFunctions: maps.Clone(s.AggregateFunctions),
		VarProviders:       maps.Clone(s.VarProviders),
		Config:             s.Config,
	}
}

// RegisterScalarFunction adds or replaces a scalar UDF.
func (s *ExecutionContextState) RegisterScalarFunction(f *ScalarUDF) {
	s.ScalarFunctions[f.Name] = f
}

// RegisterAggregateFunction adds or replaces an aggregate UDF.
func (s *ExecutionContextState) RegisterAggregateFunction(f *AggregateUDF) {
	s.AggregateFunctions[f.Name] = f
}

// RegisterVariable installs the provider for a variable type.
func (s *ExecutionContextState) RegisterVariable(t VarType, p VarProvider) {
	s.VarProviders[t] = p
}

// MapVarProvider serves variables from a fixed map keyed by the dotted name.
type MapVarProvider map[string]any

func (m MapVarProvider) GetValue(names []string) (arrow.DataType, any, error) {
	key := strings.Join(names, ".")
	v, ok := m[key]
	if !ok {
		return nil, nil, qerrors.VariableNotFoundError(key)
	}
	dt, err := goValueType(v)
	if err != nil {
		return nil, nil, err
	}
	return dt, v, nil
}

func goValueType(v any) (arrow.DataType, error) {
	switch v.(type) {
	case nil:
		return arrow.Null, nil
	case bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case int64:
		return arrow.PrimitiveTypes.Int64, nil
	case int32:
		return arrow.PrimitiveTypes.Int32, nil
	case float64:
		return arrow.PrimitiveTypes.Float64, nil
	case string:
		return arrow.BinaryTypes.String, nil
	}
	return nil, qerrors.FeatureNotSupportedError(fmt.Sprintf("variable of Go type %T", v))
}

// UpperFunction is a sample scalar UDF that upper-cases strings.
var UpperFunction = &ScalarUDF{
	Name:    "upper",
	NumArgs: 1,
	ReturnType: func(argTypes []arrow.DataType) (arrow.DataType, error) {
		if !types.IsString(argTypes[0]) {
			return nil, qerrors.Newf(qerrors.DatatypeMismatch, "upper expects a string argument, got %s", argTypes[0])
		}
		return arrow.BinaryTypes.String, nil
	},
	Fn: func(args []arrow.Array, numRows int) (arrow.Array, error) {
		return mapRows(arrow.BinaryTypes.String, numRows, args, func(v []any) (any, error) {
			if s, ok := v[0].(string); ok {
				return strings.ToUpper(s), nil
			}
			return nil, nil
		})
	},
}
