package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	"github.com/dshills/QuantaDist/internal/sql/physical"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// SortExec merges all input partitions and sorts them into a single output
// partition.
type SortExec struct {
	exprs       []physical.SortExpr
	input       ExecutionPlan
	concurrency int
}

// NewSortExec creates a new sort operator. concurrency bounds how many input
// partitions are read at once.
func NewSortExec(exprs []physical.SortExpr, input ExecutionPlan, concurrency int) *SortExec {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SortExec{exprs: exprs, input: input, concurrency: concurrency}
}

// Exprs returns the sort keys.
func (s *SortExec) Exprs() []physical.SortExpr { return s.exprs }

// Concurrency returns the input read concurrency.
func (s *SortExec) Concurrency() int { return s.concurrency }

func (s *SortExec) Schema() *arrow.Schema { return s.input.Schema() }

func (s *SortExec) Children() []ExecutionPlan { return []ExecutionPlan{s.input} }

func (s *SortExec) OutputPartitioning() int { return 1 }

func (s *SortExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(s, partition); err != nil {
		return nil, err
	}
	recs, err := Collect(ctx, s.input, s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("error reading input for sort: %w", err)
	}
	defer releaseRecords(recs)

	if len(recs) == 0 {
		return NewRecordStream(s.Schema(), nil), nil
	}
	all, err := types.ConcatRecords(allocator, s.Schema(), recs)
	if err != nil {
		return nil, err
	}
	defer all.Release()

	sorted, err := s.sortRecord(all)
	if err != nil {
		return nil, err
	}
	return NewRecordStream(s.Schema(), []arrow.Record{sorted}), nil
}

func (s *SortExec) sortRecord(rec arrow.Record) (arrow.Record, error) {
	keys, err := physical.EvaluateAll(sortKeyExprs(s.exprs), rec)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, k := range keys {
			k.Release()
		}
	}()

	indices := make([]int, rec.NumRows())
	for i := range indices {
		indices[i] = i
	}
	sorter := &rowSorter{keys: keys, exprs: s.exprs, indices: indices}
	sort.Stable(sorter)
	if sorter.err != nil {
		return nil, fmt.Errorf("error during sort: %w", sorter.err)
	}
	return types.TakeRecord(allocator, rec, indices)
}

func sortKeyExprs(exprs []physical.SortExpr) []physical.PhysicalExpr {
	out := make([]physical.PhysicalExpr, len(exprs))
	for i, e := range exprs {
		out[i] = e.Expr
	}
	return out
}

func (s *SortExec) String() string {
	parts := make([]string, len(s.exprs))
	for i, e := range s.exprs {
		parts[i] = e.String()
	}
	return fmt.Sprintf("SortExec: [%s]", strings.Join(parts, ", "))
}

// rowSorter orders row indices by evaluated sort keys.
type rowSorter struct {
	keys    []arrow.Array
	exprs   []physical.SortExpr
	indices []int
	err     error
}

func (rs *rowSorter) Len() int {
	return len(rs.indices)
}

func (rs *rowSorter) Less(i, j int) bool {
	a, b := rs.indices[i], rs.indices[j]
	for k, key := range rs.keys {
		c := compareSortValues(types.ValueAt(key, a), types.ValueAt(key, b), rs.exprs[k].Options, &rs.err)
		if c != 0 {
			return c < 0
		}
	}
	return false
}

func (rs *rowSorter) Swap(i, j int) {
	rs.indices[i], rs.indices[j] = rs.indices[j], rs.indices[i]
}

// compareSortValues applies null placement and direction. The first
// comparison error is recorded in errp.
func compareSortValues(a, b any, opts physical.SortOptions, errp *error) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		if opts.NullsFirst {
			return -1
		}
		return 1
	case b == nil:
		if opts.NullsFirst {
			return 1
		}
		return -1
	}
	c, err := types.Compare(a, b)
	if err != nil {
		if *errp == nil {
			*errp = err
		}
		return 0
	}
	if opts.Descending {
		return -c
	}
	return c
}
