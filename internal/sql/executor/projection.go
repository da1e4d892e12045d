package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/physical"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// ProjectionExpr is a projected expression and its output column name.
type ProjectionExpr struct {
	Expr physical.PhysicalExpr
	Name string
}

// ProjectionExec evaluates a list of expressions over each input batch.
type ProjectionExec struct {
	exprs  []ProjectionExpr
	input  ExecutionPlan
	schema *arrow.Schema
}

// NewProjectionExec derives the output schema from the expressions.
func NewProjectionExec(exprs []ProjectionExpr, input ExecutionPlan) (*ProjectionExec, error) {
	inputSchema := input.Schema()
	fields := make([]arrow.Field, len(exprs))
	for i, pe := range exprs {
		if pe.Name == "" {
			return nil, qerrors.New(qerrors.InvalidParameterValue, "projection output name must not be empty")
		}
		dt, err := pe.Expr.DataType(inputSchema)
		if err != nil {
			return nil, err
		}
		nullable, err := pe.Expr.Nullable(inputSchema)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: pe.Name, Type: dt, Nullable: nullable}
	}
	return &ProjectionExec{
		exprs:  exprs,
		input:  input,
		schema: arrow.NewSchema(fields, nil),
	}, nil
}

// Exprs returns the projected expressions.
func (p *ProjectionExec) Exprs() []ProjectionExpr { return p.exprs }

func (p *ProjectionExec) Schema() *arrow.Schema { return p.schema }

func (p *ProjectionExec) Children() []ExecutionPlan { return []ExecutionPlan{p.input} }

func (p *ProjectionExec) OutputPartitioning() int { return p.input.OutputPartitioning() }

func (p *ProjectionExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(p, partition); err != nil {
		return nil, err
	}
	input, err := p.input.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &mapStream{ctx: ctx, input: input, schema: p.schema, fn: p.project}, nil
}

func (p *ProjectionExec) project(rec arrow.Record) (arrow.Record, error) {
	cols := make([]arrow.Array, 0, len(p.exprs))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for _, pe := range p.exprs {
		arr, err := pe.Expr.Evaluate(rec)
		if err != nil {
			return nil, err
		}
		cols = append(cols, arr)
	}
	return array.NewRecord(p.schema, cols, rec.NumRows()), nil
}

func (p *ProjectionExec) String() string {
	parts := make([]string, len(p.exprs))
	for i, pe := range p.exprs {
		parts[i] = fmt.Sprintf("%s as %s", pe.Expr, pe.Name)
	}
	return fmt.Sprintf("ProjectionExec: expr=[%s]", strings.Join(parts, ", "))
}

// FilterExec keeps the rows for which the predicate is true.
type FilterExec struct {
	predicate physical.PhysicalExpr
	input     ExecutionPlan
}

// NewFilterExec requires a boolean predicate.
func NewFilterExec(predicate physical.PhysicalExpr, input ExecutionPlan) (*FilterExec, error) {
	dt, err := predicate.DataType(input.Schema())
	if err != nil {
		return nil, err
	}
	if dt.ID() != arrow.BOOL {
		return nil, qerrors.Newf(qerrors.DatatypeMismatch, "filter predicate must return boolean values, not %s", dt).
			WithDataType(dt.String())
	}
	return &FilterExec{predicate: predicate, input: input}, nil
}

// Predicate returns the filter predicate.
func (f *FilterExec) Predicate() physical.PhysicalExpr { return f.predicate }

func (f *FilterExec) Schema() *arrow.Schema { return f.input.Schema() }

func (f *FilterExec) Children() []ExecutionPlan { return []ExecutionPlan{f.input} }

func (f *FilterExec) OutputPartitioning() int { return f.input.OutputPartitioning() }

func (f *FilterExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(f, partition); err != nil {
		return nil, err
	}
	input, err := f.input.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &mapStream{ctx: ctx, input: input, schema: f.Schema(), fn: f.filter}, nil
}

func (f *FilterExec) filter(rec arrow.Record) (arrow.Record, error) {
	arr, err := f.predicate.Evaluate(rec)
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	mask, ok := arr.(*array.Boolean)
	if !ok {
		return nil, qerrors.InternalErrorf("filter predicate produced %s", arr.DataType())
	}
	out, err := types.FilterRecord(allocator, rec, mask)
	if err != nil {
		return nil, err
	}
	if out.NumRows() == 0 {
		out.Release()
		return nil, nil // nolint:nilnil // skip empty batch
	}
	return out, nil
}

func (f *FilterExec) String() string {
	return fmt.Sprintf("FilterExec: %s", f.predicate)
}
