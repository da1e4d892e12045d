package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v13/arrow"

	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/sql/types"
)

// JoinType represents the type of join.
type JoinType int32

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
)

func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "Inner"
	case LeftJoin:
		return "Left"
	case RightJoin:
		return "Right"
	}
	return fmt.Sprintf("JoinType(%d)", int32(j))
}

// Valid reports whether j is a known join type.
func (j JoinType) Valid() bool {
	return j >= InnerJoin && j <= RightJoin
}

// JoinOn pairs a left key column with a right key column.
type JoinOn struct {
	Left  string
	Right string
}

// HashJoinExec is an equi-join. The left input is collected into a hash table
// and each right partition probes it. Rows whose key contains a null never
// match.
type HashJoinExec struct {
	left     ExecutionPlan
	right    ExecutionPlan
	on       []JoinOn
	joinType JoinType
	schema   *arrow.Schema

	leftKeys  []int
	rightKeys []int
	// input column positions that make up the output, in order
	leftOut  []int
	rightOut []int
	floatKey []bool
}

// NewHashJoinExec resolves the key columns and derives the output schema.
// Key columns named the same on both sides appear once: from the left for
// inner and left joins, from the right for right joins.
func NewHashJoinExec(left, right ExecutionPlan, on []JoinOn, joinType JoinType) (*HashJoinExec, error) {
	if !joinType.Valid() {
		return nil, qerrors.UnknownEnumError("HashJoinExec", "JoinType", int32(joinType))
	}
	if len(on) == 0 {
		return nil, qerrors.New(qerrors.InvalidParameterValue, "hash join requires at least one join key")
	}

	ls, rs := left.Schema(), right.Schema()
	h := &HashJoinExec{left: left, right: right, on: on, joinType: joinType}
	duplicate := make(map[string]bool)
	for _, pair := range on {
		li, err := uniqueField(ls, pair.Left)
		if err != nil {
			return nil, err
		}
		ri, err := uniqueField(rs, pair.Right)
		if err != nil {
			return nil, err
		}
		lt, rt := ls.Field(li).Type, rs.Field(ri).Type
		if !types.Comparable(lt, rt) {
			return nil, qerrors.DataTypeMismatchError("=", lt.String(), rt.String())
		}
		h.leftKeys = append(h.leftKeys, li)
		h.rightKeys = append(h.rightKeys, ri)
		h.floatKey = append(h.floatKey, types.IsFloat(lt) || types.IsFloat(rt))
		if pair.Left == pair.Right {
			duplicate[pair.Left] = true
		}
	}

	var fields []arrow.Field
	for i, f := range ls.Fields() {
		if joinType == RightJoin && duplicate[f.Name] {
			continue
		}
		if joinType == RightJoin {
			f.Nullable = true
		}
		h.leftOut = append(h.leftOut, i)
		fields = append(fields, f)
	}
	for i, f := range rs.Fields() {
		if joinType != RightJoin && duplicate[f.Name] {
			continue
		}
		if joinType == LeftJoin {
			f.Nullable = true
		}
		h.rightOut = append(h.rightOut, i)
		fields = append(fields, f)
	}
	h.schema = arrow.NewSchema(fields, nil)
	return h, nil
}

func uniqueField(schema *arrow.Schema, name string) (int, error) {
	indices := schema.FieldIndices(name)
	switch len(indices) {
	case 0:
		return 0, qerrors.ColumnNotFoundError(name)
	case 1:
		return indices[0], nil
	default:
		return 0, qerrors.Newf(qerrors.AmbiguousColumn, "join key %q is ambiguous", name).WithColumn(name)
	}
}

// On returns the join key pairs.
func (h *HashJoinExec) On() []JoinOn { return h.on }

// JoinType returns the join type.
func (h *HashJoinExec) JoinType() JoinType { return h.joinType }

func (h *HashJoinExec) Schema() *arrow.Schema { return h.schema }

func (h *HashJoinExec) Children() []ExecutionPlan { return []ExecutionPlan{h.left, h.right} }

// OutputPartitioning follows the right input, except for left joins which
// emit unmatched build rows exactly once from a single partition.
func (h *HashJoinExec) OutputPartitioning() int {
	if h.joinType == LeftJoin {
		return 1
	}
	return h.right.OutputPartitioning()
}

func (h *HashJoinExec) Execute(ctx context.Context, partition int) (RecordStream, error) {
	if err := checkPartition(h, partition); err != nil {
		return nil, err
	}

	buildRecs, err := Collect(ctx, h.left, 0)
	if err != nil {
		return nil, fmt.Errorf("error building hash table: %w", err)
	}
	defer releaseRecords(buildRecs)
	var build arrow.Record
	if len(buildRecs) == 0 {
		build = types.EmptyRecord(allocator, h.left.Schema())
	} else {
		build, err = types.ConcatRecords(allocator, h.left.Schema(), buildRecs)
		if err != nil {
			return nil, err
		}
	}

	table := make(map[string][]int)
	for row := 0; row < int(build.NumRows()); row++ {
		key, ok := h.rowKey(build, h.leftKeys, row)
		if ok {
			table[key] = append(table[key], row)
		}
	}

	var probe RecordStream
	if h.joinType == LeftJoin {
		probe = newMergedStream(ctx, h.right)
	} else {
		probe, err = h.right.Execute(ctx, partition)
		if err != nil {
			build.Release()
			return nil, err
		}
	}

	return &hashJoinStream{
		ctx:     ctx,
		join:    h,
		build:   build,
		table:   table,
		probe:   probe,
		visited: make([]bool, build.NumRows()),
	}, nil
}

// rowKey encodes the key of row; ok is false when any key column is null.
func (h *HashJoinExec) rowKey(rec arrow.Record, keys []int, row int) (string, bool) {
	values := make([]any, len(keys))
	for i, k := range keys {
		v := types.ValueAt(rec.Column(k), row)
		if v == nil {
			return "", false
		}
		values[i] = normalizeKey(v, h.floatKey[i])
	}
	return encodeGroupKey(values), true
}

// normalizeKey maps values of different widths onto one representation so
// that int32 1 on the left matches int64 1 on the right.
func normalizeKey(v any, float bool) any {
	if float {
		if f, ok := types.AsFloat64(v); ok {
			return f
		}
	}
	switch v.(type) {
	case float32, float64:
		f, _ := types.AsFloat64(v)
		return f
	}
	if i, ok := types.AsInt64(v); ok {
		return i
	}
	return v
}

func (h *HashJoinExec) String() string {
	pairs := make([]string, len(h.on))
	for i, p := range h.on {
		pairs[i] = fmt.Sprintf("(%s, %s)", p.Left, p.Right)
	}
	return fmt.Sprintf("HashJoinExec: join_type=%s, on=[%s]", h.joinType, strings.Join(pairs, ", "))
}

type hashJoinStream struct {
	ctx     context.Context
	join    *HashJoinExec
	build   arrow.Record
	table   map[string][]int
	probe   RecordStream
	visited []bool
	done    bool
}

func (s *hashJoinStream) Schema() *arrow.Schema { return s.join.schema }

func (s *hashJoinStream) Next() (arrow.Record, error) {
	for !s.done {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.probe.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			s.done = true
			break
		}
		out, err := s.probeBatch(rec)
		rec.Release()
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}
	if s.join.joinType == LeftJoin && s.visited != nil {
		var leftRows []int
		for i, seen := range s.visited {
			if !seen {
				leftRows = append(leftRows, i)
			}
		}
		s.visited = nil
		if len(leftRows) > 0 {
			rightRows := make([]int, len(leftRows))
			for i := range rightRows {
				rightRows[i] = -1
			}
			return s.assemble(leftRows, nil, rightRows)
		}
	}
	return nil, nil // nolint:nilnil // EOF
}

func (s *hashJoinStream) probeBatch(rec arrow.Record) (arrow.Record, error) {
	var leftRows, rightRows []int
	for row := 0; row < int(rec.NumRows()); row++ {
		key, ok := s.join.rowKey(rec, s.join.rightKeys, row)
		var matches []int
		if ok {
			matches = s.table[key]
		}
		for _, l := range matches {
			leftRows = append(leftRows, l)
			rightRows = append(rightRows, row)
			if s.visited != nil {
				s.visited[l] = true
			}
		}
		if len(matches) == 0 && s.join.joinType == RightJoin {
			leftRows = append(leftRows, -1)
			rightRows = append(rightRows, row)
		}
	}
	if len(leftRows) == 0 {
		return nil, nil // nolint:nilnil // no output for this batch
	}
	return s.assemble(leftRows, rec, rightRows)
}

// assemble builds output rows from build-side and probe-side row indices;
// an index of -1 produces nulls for that side.
func (s *hashJoinStream) assemble(leftRows []int, probe arrow.Record, rightRows []int) (arrow.Record, error) {
	columns := make([][]any, 0, s.join.schema.NumFields())
	for _, c := range s.join.leftOut {
		col := s.build.Column(c)
		values := make([]any, len(leftRows))
		for i, r := range leftRows {
			if r >= 0 {
				values[i] = types.ValueAt(col, r)
			}
		}
		columns = append(columns, values)
	}
	for _, c := range s.join.rightOut {
		values := make([]any, len(rightRows))
		if probe != nil {
			col := probe.Column(c)
			for i, r := range rightRows {
				if r >= 0 {
					values[i] = types.ValueAt(col, r)
				}
			}
		}
		columns = append(columns, values)
	}
	return types.RecordFromColumns(allocator, s.join.schema, columns)
}

func (s *hashJoinStream) Close() error {
	if s.build != nil {
		s.build.Release()
		s.build = nil
	}
	return s.probe.Close()
}
