package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/dshills/QuantaDist/internal/sql/physical"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// HashAggregateExec groups its input by the group expressions and folds each
// group with the aggregate expressions. In partial mode each input partition
// is aggregated on its own and the output carries accumulator state columns.
// In final mode all input partitions are merged into a single output
// partition carrying final values.
type HashAggregateExec struct {
	mode       physical.AggregateMode
	groupExprs []ProjectionExpr
	aggrExprs  []physical.AggregateExpr
	input      ExecutionPlan
	schema     *arrow.Schema
}

// NewHashAggregateExec derives the output schema: group columns first, then
// state columns (partial) or aggregate values (final).
func NewHashAggregateExec(mode physical.AggregateMode, groupExprs []ProjectionExpr, aggrExprs []physical.AggregateExpr, input ExecutionPlan) (*HashAggregateExec, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid aggregate mode %d", int32(mode))
	}
	inputSchema := input.Schema()
	var fields []arrow.Field
	for _, g := range groupExprs {
		dt, err := g.Expr.DataType(inputSchema)
		if err != nil {
			return nil, err
		}
		nullable, err := g.Expr.Nullable(inputSchema)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: g.Name, Type: dt, Nullable: nullable})
	}
	for _, a := range aggrExprs {
		if a.Mode() != mode {
			return nil, fmt.Errorf("aggregate %s planned for %s mode used in %s aggregation", a.Name(), a.Mode(), mode)
		}
		if mode == physical.AggregatePartial {
			fields = append(fields, a.StateFields()...)
		} else {
			fields = append(fields, a.Field())
		}
	}
	return &HashAggregateExec{
		mode:       mode,
		groupExprs: groupExprs,
		aggrExprs:  aggrExprs,
		input:      input,
		schema:     arrow.NewSchema(fields, nil),
	}, nil
}

// Mode returns the aggregation stage.
func (h *HashAggregateExec) Mode() physical.AggregateMode { return h.mode }

// GroupExprs returns the grouping expressions.
func (h *HashAggregateExec) GroupExprs() []ProjectionExpr { return h.groupExprs }

// AggrExprs returns the aggregate expressions.
func (h *HashAggregateExec) AggrExprs() []physical.AggregateExpr { return h.aggrExprs }

func (h *HashAggregateExec) Schema() *arrow.Schema { return h.schema }

func (h *HashAggregateExec) Children() []ExecutionPlan { return []ExecutionPlan{h.input} }

func (h *HashAggregateExec) OutputPartitioning() int {
	if h.mode == physical.AggregateFinal {
		return 1
	}
	return h.input.OutputPartitioning()
}

func (h *HashAggregateExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(h, partition); err != nil {
		return nil, err
	}
	var input RecordStream
	if h.mode == physical.AggregateFinal {
		input = newMergedStream(ctx, h.input)
	} else {
		stream, err := h.input.Execute(ctx, partition)
		if err != nil {
			return nil, err
		}
		input = stream
	}

	recs, err := drain(ctx, input)
	if err != nil {
		return nil, err
	}
	defer releaseRecords(recs)

	table := newAggregateTable(h)
	for _, rec := range recs {
		if err := table.processBatch(rec); err != nil {
			return nil, err
		}
	}
	out, err := table.result()
	if err != nil {
		return nil, err
	}
	return NewRecordStream(h.schema, []arrow.Record{out}), nil
}

func (h *HashAggregateExec) String() string {
	groups := make([]string, len(h.groupExprs))
	for i, g := range h.groupExprs {
		groups[i] = g.Name
	}
	aggrs := make([]string, len(h.aggrExprs))
	for i, a := range h.aggrExprs {
		aggrs[i] = a.Name()
	}
	return fmt.Sprintf("HashAggregateExec: mode=%s, gby=[%s], aggr=[%s]",
		h.mode, strings.Join(groups, ", "), strings.Join(aggrs, ", "))
}

// aggregateGroup is one group's key and accumulators.
type aggregateGroup struct {
	key          []any
	accumulators []physical.Accumulator
}

type aggregateTable struct {
	exec   *HashAggregateExec
	groups map[string]*aggregateGroup
	order  []*aggregateGroup
}

func newAggregateTable(exec *HashAggregateExec) *aggregateTable {
	return &aggregateTable{exec: exec, groups: make(map[string]*aggregateGroup)}
}

func (t *aggregateTable) newGroup(key []any) *aggregateGroup {
	g := &aggregateGroup{key: key, accumulators: make([]physical.Accumulator, len(t.exec.aggrExprs))}
	for i, a := range t.exec.aggrExprs {
		g.accumulators[i] = a.CreateAccumulator()
	}
	t.order = append(t.order, g)
	return g
}

func (t *aggregateTable) processBatch(rec arrow.Record) error {
	groupExprs := make([]physical.PhysicalExpr, len(t.exec.groupExprs))
	for i, g := range t.exec.groupExprs {
		groupExprs[i] = g.Expr
	}
	groupCols, err := physical.EvaluateAll(groupExprs, rec)
	if err != nil {
		return err
	}
	defer releaseArrayList(groupCols)

	aggInputs := make([][]arrow.Array, len(t.exec.aggrExprs))
	defer func() {
		for _, cols := range aggInputs {
			releaseArrayList(cols)
		}
	}()
	for i, a := range t.exec.aggrExprs {
		cols, err := physical.EvaluateAll(a.Expressions(), rec)
		if err != nil {
			return err
		}
		aggInputs[i] = cols
	}

	final := t.exec.mode == physical.AggregateFinal
	for row := 0; row < int(rec.NumRows()); row++ {
		key := make([]any, len(groupCols))
		for i, c := range groupCols {
			key[i] = types.ValueAt(c, row)
		}
		encoded := encodeGroupKey(key)
		g, ok := t.groups[encoded]
		if !ok {
			g = t.newGroup(key)
			t.groups[encoded] = g
		}
		for i, acc := range g.accumulators {
			values := make([]any, len(aggInputs[i]))
			for j, c := range aggInputs[i] {
				values[j] = types.ValueAt(c, row)
			}
			if final {
				err = acc.Merge(values)
			} else {
				err = acc.Update(values)
			}
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", t.exec.aggrExprs[i].Name(), err)
			}
		}
	}
	return nil
}

func (t *aggregateTable) result() (arrow.Record, error) {
	// an aggregate without grouping yields one row even for empty input
	if len(t.order) == 0 && len(t.exec.groupExprs) == 0 {
		t.newGroup(nil)
	}

	schema := t.exec.schema
	columns := make([][]any, schema.NumFields())
	for _, g := range t.order {
		col := 0
		for _, v := range g.key {
			columns[col] = append(columns[col], v)
			col++
		}
		for _, acc := range g.accumulators {
			if t.exec.mode == physical.AggregatePartial {
				states, err := acc.State()
				if err != nil {
					return nil, err
				}
				for _, s := range states {
					columns[col] = append(columns[col], s)
					col++
				}
				continue
			}
			v, err := acc.Evaluate()
			if err != nil {
				return nil, err
			}
			columns[col] = append(columns[col], v)
			col++
		}
	}
	if len(t.order) == 0 {
		return types.EmptyRecord(allocator, schema), nil
	}
	return types.RecordFromColumns(allocator, schema, columns)
}

// encodeGroupKey builds a map key that distinguishes values by type and
// keeps NULL apart from every non-null value.
func encodeGroupKey(key []any) string {
	var sb strings.Builder
	for _, v := range key {
		if v == nil {
			sb.WriteString("N;")
			continue
		}
		s := types.FormatValue(v)
		if b, ok := v.([]byte); ok {
			s = string(b)
		}
		fmt.Fprintf(&sb, "%T:%d:%s;", v, len(s), s)
	}
	return sb.String()
}

func releaseArrayList(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}
