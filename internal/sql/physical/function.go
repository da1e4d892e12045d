package physical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
)

// ScalarFunctionExpr calls a scalar UDF.
type ScalarFunctionExpr struct {
	Fun        *ScalarUDF
	Args       []PhysicalExpr
	returnType arrow.DataType
}

// NewScalarFunctionExpr checks arity and resolves the return type.
func NewScalarFunctionExpr(fun *ScalarUDF, args []PhysicalExpr, schema *arrow.Schema) (*ScalarFunctionExpr, error) {
	if fun.NumArgs >= 0 && len(args) != fun.NumArgs {
		return nil, qerrors.Newf(qerrors.UndefinedFunction, "function %s expects %d arguments, got %d",
			fun.Name, fun.NumArgs, len(args))
	}
	argTypes := make([]arrow.DataType, len(args))
	for i, a := range args {
		dt, err := a.DataType(schema)
		if err != nil {
			return nil, err
		}
		argTypes[i] = dt
	}
	rt, err := fun.ReturnType(argTypes)
	if err != nil {
		return nil, err
	}
	return &ScalarFunctionExpr{Fun: fun, Args: args, returnType: rt}, nil
}

func (f *ScalarFunctionExpr) DataType(*arrow.Schema) (arrow.DataType, error) {
	return f.returnType, nil
}

func (f *ScalarFunctionExpr) Nullable(*arrow.Schema) (bool, error) { return true, nil }

func (f *ScalarFunctionExpr) Evaluate(batch arrow.Record) (arrow.Array, error) {
	args, err := evaluateAll(f.Args, batch)
	if err != nil {
		return nil, err
	}
	defer releaseArrays(args)
	out, err := f.Fun.Fn(args, int(batch.NumRows()))
	if err != nil {
		return nil, err
	}
	if out.Len() != int(batch.NumRows()) {
		out.Release()
		return nil, qerrors.InternalErrorf("function %s returned %d rows for a batch of %d", f.Fun.Name, out.Len(), batch.NumRows())
	}
	return out, nil
}

func (f *ScalarFunctionExpr) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Fun.Name, strings.Join(parts, ", "))
}

// SortOptions controls the ordering of a sort key.
type SortOptions struct {
	Descending bool
	NullsFirst bool
}

// SortExpr is a sort key.
type SortExpr struct {
	Expr    PhysicalExpr
	Options SortOptions
}

func (s SortExpr) String() string {
	dir := "ASC"
	if s.Options.Descending {
		dir = "DESC"
	}
	nulls := "NULLS LAST"
	if s.Options.NullsFirst {
		nulls = "NULLS FIRST"
	}
	return fmt.Sprintf("%s %s %s", s.Expr, dir, nulls)
}
