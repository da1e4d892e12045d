package physical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/logical"
)

// CreatePhysicalExpr compiles e against the input schema. Column references
// are resolved to positions here, so an unknown or ambiguous column is an
// error at planning time rather than at execution.
func CreatePhysicalExpr(e logical.Expr, schema *arrow.Schema, state *ExecutionContextState) (PhysicalExpr, error) {
	switch x := e.(type) {
	case *logical.Column:
		return NewColumn(x.Name, schema)

	case *logical.Literal:
		return NewLiteral(x.Type, x.Value), nil

	case *logical.Alias:
		return CreatePhysicalExpr(x.Expr, schema, state)

	case *logical.BinaryExpr:
		left, err := CreatePhysicalExpr(x.Left, schema, state)
		if err != nil {
			return nil, err
		}
		right, err := CreatePhysicalExpr(x.Right, schema, state)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpr(left, x.Op, right, schema)

	case *logical.Not:
		inner, err := CreatePhysicalExpr(x.Expr, schema, state)
		if err != nil {
			return nil, err
		}
		return NewNotExpr(inner, schema)

	case *logical.IsNull:
		inner, err := CreatePhysicalExpr(x.Expr, schema, state)
		if err != nil {
			return nil, err
		}
		return &IsNullExpr{Expr: inner}, nil

	case *logical.IsNotNull:
		inner, err := CreatePhysicalExpr(x.Expr, schema, state)
		if err != nil {
			return nil, err
		}
		return &IsNullExpr{Expr: inner, Negated: true}, nil

	case *logical.Negative:
		inner, err := CreatePhysicalExpr(x.Expr, schema, state)
		if err != nil {
			return nil, err
		}
		return NewNegativeExpr(inner, schema)

	case *logical.Cast:
		inner, err := CreatePhysicalExpr(x.Expr, schema, state)
		if err != nil {
			return nil, err
		}
		return NewCastExpr(inner, x.To, schema)

	case *logical.Between:
		return createBetween(x, schema, state)

	case *logical.ScalarUDF:
		fun, ok := state.ScalarFunctions[x.Name]
		if !ok {
			return nil, qerrors.FunctionNotFoundError(x.Name)
		}
		args, err := createAll(x.Args, schema, state)
		if err != nil {
			return nil, err
		}
		return NewScalarFunctionExpr(fun, args, schema)

	case *logical.ScalarVariable:
		return createVariable(x, state)

	case *logical.AggregateFunction, *logical.AggregateUDF:
		return nil, qerrors.Newf(qerrors.InvalidPlan,
			"aggregate %s is only valid in an aggregate expression list", e)

	case *logical.Sort:
		return nil, qerrors.Newf(qerrors.InvalidPlan,
			"sort descriptor %s is only valid as a sort key", e)

	default:
		return nil, qerrors.UnsupportedVariantError("expression", fmt.Sprintf("%T", e))
	}
}

func createAll(exprs []logical.Expr, schema *arrow.Schema, state *ExecutionContextState) ([]PhysicalExpr, error) {
	out := make([]PhysicalExpr, len(exprs))
	for i, e := range exprs {
		p, err := CreatePhysicalExpr(e, schema, state)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// createBetween rewrites x BETWEEN lo AND hi as x >= lo AND x <= hi.
func createBetween(b *logical.Between, schema *arrow.Schema, state *ExecutionContextState) (PhysicalExpr, error) {
	value, err := CreatePhysicalExpr(b.Expr, schema, state)
	if err != nil {
		return nil, err
	}
	low, err := CreatePhysicalExpr(b.Low, schema, state)
	if err != nil {
		return nil, err
	}
	high, err := CreatePhysicalExpr(b.High, schema, state)
	if err != nil {
		return nil, err
	}
	ge, err := NewBinaryExpr(value, logical.OpGtEq, low, schema)
	if err != nil {
		return nil, err
	}
	le, err := NewBinaryExpr(value, logical.OpLtEq, high, schema)
	if err != nil {
		return nil, err
	}
	both, err := NewBinaryExpr(ge, logical.OpAnd, le, schema)
	if err != nil {
		return nil, err
	}
	if b.Negated {
		return NewNotExpr(both, schema)
	}
	return both, nil
}

func createVariable(v *logical.ScalarVariable, state *ExecutionContextState) (PhysicalExpr, error) {
	if len(v.Names) == 0 {
		return nil, qerrors.New(qerrors.InvalidPlan, "variable has no name")
	}
	varType := VarUser
	if strings.HasPrefix(v.Names[0], "@@") {
		varType = VarSystem
	}
	provider, ok := state.VarProviders[varType]
	if !ok {
		return nil, qerrors.VariableNotFoundError(v.String()).
			WithHintf("no %s variable provider is registered", varType)
	}
	dt, value, err := provider.GetValue(v.Names)
	if err != nil {
		return nil, err
	}
	return NewLiteral(dt, value), nil
}

// CreateSortExpr compiles a sort descriptor.
func CreateSortExpr(s *logical.Sort, schema *arrow.Schema, state *ExecutionContextState) (SortExpr, error) {
	e, err := CreatePhysicalExpr(s.Expr, schema, state)
	if err != nil {
		return SortExpr{}, err
	}
	return SortExpr{Expr: e, Options: SortOptions{Descending: !s.Asc, NullsFirst: s.NullsFirst}}, nil
}

// CreateAggregateExpr compiles an aggregate call for the given mode. In
// partial mode arguments are compiled against the raw input schema. In final
// mode the input is a partial stage's output and the aggregate reads its
// state columns by name.
func CreateAggregateExpr(e logical.Expr, schema *arrow.Schema, state *ExecutionContextState, mode AggregateMode) (AggregateExpr, error) {
	name := logical.Name(e)
	if alias, ok := e.(*logical.Alias); ok {
		e = alias.Expr
	}

	switch x := e.(type) {
	case *logical.AggregateFunction:
		if !x.Fun.Valid() {
			return nil, qerrors.UnknownEnumError("AggregateExpr", "AggregateFunction", int32(x.Fun))
		}
		if x.Distinct {
			return nil, qerrors.FeatureNotSupportedError(fmt.Sprintf("DISTINCT in aggregate %s", x))
		}
		if mode == AggregateFinal {
			cols, fields, err := stateColumns(name, schema, NumStates(x.Fun))
			if err != nil {
				return nil, err
			}
			return NewBuiltinAggregate(x.Fun, name, mode, cols, fields[0].Type)
		}
		if len(x.Args) != 1 {
			return nil, qerrors.Newf(qerrors.UndefinedFunction, "aggregate %s expects 1 argument, got %d", x.Fun, len(x.Args))
		}
		args, err := createAll(x.Args, schema, state)
		if err != nil {
			return nil, err
		}
		dt, err := args[0].DataType(schema)
		if err != nil {
			return nil, err
		}
		return NewBuiltinAggregate(x.Fun, name, mode, args, dt)

	case *logical.AggregateUDF:
		fun, ok := state.AggregateFunctions[x.Name]
		if !ok {
			return nil, qerrors.FunctionNotFoundError(x.Name)
		}
		if mode == AggregateFinal {
			cols, _, err := stateColumns(name, schema, len(fun.StateTypes))
			if err != nil {
				return nil, err
			}
			return NewUDFAggregate(fun, name, mode, cols)
		}
		args, err := createAll(x.Args, schema, state)
		if err != nil {
			return nil, err
		}
		return NewUDFAggregate(fun, name, mode, args)

	default:
		return nil, qerrors.Newf(qerrors.InvalidPlan,
			"expression %s is not an aggregate function", e)
	}
}

// stateColumns locates the want state columns named "<name>[...]" in schema.
func stateColumns(name string, schema *arrow.Schema, want int) ([]PhysicalExpr, []arrow.Field, error) {
	prefix := name + "["
	var (
		cols   []PhysicalExpr
		fields []arrow.Field
	)
	for i, f := range schema.Fields() {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, "]") {
			cols = append(cols, &Column{Name: f.Name, Index: i})
			fields = append(fields, f)
		}
	}
	if len(cols) != want {
		return nil, nil, qerrors.ColumnNotFoundError(prefix+"...]").
			WithDetailf("expected %d state columns for aggregate %s, found %d", want, name, len(cols))
	}
	return cols, fields, nil
}
