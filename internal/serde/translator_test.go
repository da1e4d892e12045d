package serde

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/parquet"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/QuantaDist/internal/config"
	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/log"
	"github.com/dshills/QuantaDist/internal/metrics"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
	"github.com/dshills/QuantaDist/internal/shuffle"
	"github.com/dshills/QuantaDist/internal/sql/executor"
	"github.com/dshills/QuantaDist/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var salesWire = &protobuf.Schema{Columns: []*protobuf.Field{
	protobuf.NewField("region", protobuf.PrimitiveScalarType_UTF8, true),
	protobuf.NewField("amount", protobuf.PrimitiveScalarType_INT64, true),
}}

var salesSchema = testutil.Schema(
	testutil.Field("region", arrow.BinaryTypes.String, true),
	testutil.Field("amount", arrow.PrimitiveTypes.Int64, true),
)

func newTranslator(t *testing.T, opts ...Option) *Translator {
	t.Helper()
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)
	cfg := config.DefaultExecutorConfig()
	cfg.WorkDir = dir
	tr, err := NewTranslator(append([]Option{WithConfig(cfg), WithLogger(log.Nop())}, opts...)...)
	require.NoError(t, err)
	return tr
}

func salesScan(t *testing.T) *protobuf.PhysicalPlanNode {
	t.Helper()
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)
	path := testutil.WriteFile(t, dir, "sales.csv", "region,amount\neast,10\nwest,5\neast,\nwest,7\n")
	return protobuf.Plan(&protobuf.CsvScanExecNode{
		Path:      path,
		Schema:    salesWire,
		HasHeader: true,
		Delimiter: ",",
	})
}

func sumAmount() *protobuf.LogicalExprNode {
	return protobuf.Expr(&protobuf.AggregateExprNode{
		AggrFunction: protobuf.AggregateFunction_SUM,
		Expr:         protobuf.Column("amount"),
	})
}

func amountAbove(v int64) *protobuf.LogicalExprNode {
	return protobuf.Expr(&protobuf.BinaryExprNode{
		L:  protobuf.Column("amount"),
		Op: "Gt",
		R:  protobuf.Literal(protobuf.Int64Value(v)),
	})
}

func collect(t *testing.T, plan executor.ExecutionPlan) []arrow.Record {
	t.Helper()
	recs, err := executor.Collect(context.Background(), plan, 2)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, r := range recs {
			r.Release()
		}
	})
	return recs
}

func TestTranslateSchemas(t *testing.T) {
	scan := salesScan(t)
	partial := protobuf.Plan(&protobuf.HashAggregateExecNode{
		Mode:      protobuf.AggregateMode_PARTIAL,
		GroupExpr: []*protobuf.LogicalExprNode{protobuf.Column("region")},
		AggrExpr:  []*protobuf.LogicalExprNode{sumAmount()},
		Input:     scan,
	})
	regions := protobuf.Plan(&protobuf.EmptyExecNode{Schema: &protobuf.Schema{Columns: []*protobuf.Field{
		protobuf.NewField("region", protobuf.PrimitiveScalarType_UTF8, true),
		protobuf.NewField("manager", protobuf.PrimitiveScalarType_UTF8, true),
	}}})

	tests := []struct {
		name string
		node *protobuf.PhysicalPlanNode
		want []string
	}{
		{"csv", scan, []string{"region", "amount"}},
		{"csv projection", protobuf.Plan(&protobuf.CsvScanExecNode{
			Path: "sales.csv", Schema: salesWire, Delimiter: ",", Projection: []uint32{1},
		}), []string{"amount"}},
		{"parquet with schema", protobuf.Plan(&protobuf.ParquetScanExecNode{
			Filename: []string{"a.parquet", "b.parquet"}, Schema: salesWire, Projection: []uint32{1, 0},
		}), []string{"amount", "region"}},
		{"projection", protobuf.Plan(&protobuf.ProjectionExecNode{
			Input:    scan,
			Expr:     []*protobuf.LogicalExprNode{protobuf.Column("amount"), protobuf.Column("region")},
			ExprName: []string{"", "r"},
		}), []string{"amount", "r"}},
		{"filter", protobuf.Plan(&protobuf.FilterExecNode{Input: scan, Expr: amountAbove(6)}), []string{"region", "amount"}},
		{"coalesce", protobuf.Plan(&protobuf.CoalesceBatchesExecNode{Input: scan}), []string{"region", "amount"}},
		{"global limit", protobuf.Plan(&protobuf.GlobalLimitExecNode{Input: scan, Limit: 2}), []string{"region", "amount"}},
		{"local limit", protobuf.Plan(&protobuf.LocalLimitExecNode{Input: scan, Limit: 2}), []string{"region", "amount"}},
		{"partial aggregate", partial, []string{"region", "SUM(amount)[sum]"}},
		{"final aggregate", protobuf.Plan(&protobuf.HashAggregateExecNode{
			Mode:      protobuf.AggregateMode_FINAL,
			GroupExpr: []*protobuf.LogicalExprNode{protobuf.Column("region")},
			AggrExpr:  []*protobuf.LogicalExprNode{sumAmount()},
			Input:     partial,
		}), []string{"region", "SUM(amount)"}},
		{"join", protobuf.Plan(&protobuf.HashJoinExecNode{
			Left:     scan,
			Right:    regions,
			On:       []*protobuf.JoinOn{{Left: "region", Right: "region"}},
			JoinType: protobuf.JoinType_INNER,
		}), []string{"region", "amount", "manager"}},
		{"empty", protobuf.Plan(&protobuf.EmptyExecNode{Schema: salesWire}), []string{"region", "amount"}},
		{"sort", protobuf.Plan(&protobuf.SortExecNode{
			Input: scan,
			Expr: []*protobuf.LogicalExprNode{protobuf.Expr(&protobuf.SortExprNode{
				Expr: protobuf.Column("amount"), Asc: false, NullsFirst: true,
			})},
		}), []string{"region", "amount"}},
	}

	tr := newTranslator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := tr.Translate(tt.node)
			require.NoError(t, err)
			testutil.AssertSchemaNames(t, tt.want, plan.Schema())
		})
	}
}

func TestTranslateExecutesPipeline(t *testing.T) {
	tr := newTranslator(t)
	node := protobuf.Plan(&protobuf.ProjectionExecNode{
		Input: protobuf.Plan(&protobuf.FilterExecNode{Input: salesScan(t), Expr: amountAbove(6)}),
		Expr: []*protobuf.LogicalExprNode{
			protobuf.Column("region"),
			protobuf.Expr(&protobuf.AliasNode{Expr: protobuf.Column("amount"), Alias: "total"}),
		},
	})
	plan, err := tr.Translate(node)
	require.NoError(t, err)
	testutil.AssertSchemaNames(t, []string{"region", "total"}, plan.Schema())
	testutil.AssertRows(t, [][]any{{"east", int64(10)}, {"west", int64(7)}}, collect(t, plan))
}

func writeSalesParquet(t *testing.T, dir, name string, regions, amounts []any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	rec := testutil.Record(t, salesSchema, regions, amounts)
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := pqarrow.NewFileWriter(salesSchema, f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return path
}

func TestTranslateExecutesParquetScan(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	t.Cleanup(cleanup)
	first := writeSalesParquet(t, dir, "sales-0.parquet", []any{"east", "west"}, []any{int64(10), nil})
	second := writeSalesParquet(t, dir, "sales-1.parquet", []any{"east"}, []any{int64(3)})

	tests := []struct {
		name   string
		schema *protobuf.Schema
	}{
		{"schema from footer", nil},
		{"schema on the wire", salesWire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTranslator(t)
			plan, err := tr.Translate(protobuf.Plan(&protobuf.ParquetScanExecNode{
				Filename:   []string{first, second},
				Schema:     tt.schema,
				Projection: []uint32{1, 0},
			}))
			require.NoError(t, err)
			assert.Equal(t, 2, plan.OutputPartitioning())
			testutil.AssertSchemaNames(t, []string{"amount", "region"}, plan.Schema())
			testutil.AssertRowsAnyOrder(t, [][]any{
				{int64(10), "east"}, {nil, "west"}, {int64(3), "east"},
			}, collect(t, plan))
		})
	}
}

func TestTranslateBytes(t *testing.T) {
	tr := newTranslator(t)
	data, err := protobuf.MarshalPlan(protobuf.Plan(&protobuf.FilterExecNode{
		Input: salesScan(t),
		Expr:  amountAbove(6),
	}))
	require.NoError(t, err)

	plan, err := tr.TranslateBytes(data)
	require.NoError(t, err)
	testutil.AssertRows(t, [][]any{{"east", int64(10)}, {"west", int64(7)}}, collect(t, plan))

	_, err = tr.TranslateBytes(data[:len(data)-2])
	require.Error(t, err)
	qe := qerrors.GetError(err)
	assert.Equal(t, qerrors.InvalidPlan, qe.Code)
	assert.Equal(t, "PhysicalPlanNode", qe.Node)

	// well-formed bytes still go through the usual checks
	_, err = tr.TranslateBytes(nil)
	assert.True(t, qerrors.IsError(err, qerrors.MissingVariant))
}

func TestTranslateTwoPhaseAggregate(t *testing.T) {
	tr := newTranslator(t)
	partial := protobuf.Plan(&protobuf.HashAggregateExecNode{
		Mode:      protobuf.AggregateMode_PARTIAL,
		GroupExpr: []*protobuf.LogicalExprNode{protobuf.Column("region")},
		AggrExpr:  []*protobuf.LogicalExprNode{sumAmount()},
		Input:     salesScan(t),
	})
	final := protobuf.Plan(&protobuf.HashAggregateExecNode{
		Mode:      protobuf.AggregateMode_FINAL,
		GroupExpr: []*protobuf.LogicalExprNode{protobuf.Column("region")},
		AggrExpr:  []*protobuf.LogicalExprNode{sumAmount()},
		Input:     partial,
	})

	plan, err := tr.Translate(final)
	require.NoError(t, err)
	testutil.AssertRowsAnyOrder(t, [][]any{{"east", int64(10)}, {"west", int64(12)}}, collect(t, plan))
}

func TestTranslateEmpty(t *testing.T) {
	tr := newTranslator(t)

	plan, err := tr.Translate(protobuf.Plan(&protobuf.EmptyExecNode{ProduceOneRow: true, Schema: salesWire}))
	require.NoError(t, err)
	testutil.AssertRows(t, [][]any{{nil, nil}}, collect(t, plan))

	plan, err = tr.Translate(protobuf.Plan(&protobuf.EmptyExecNode{Schema: salesWire}))
	require.NoError(t, err)
	assert.Empty(t, testutil.Rows(collect(t, plan)))
}

func TestTranslateMissingPlanType(t *testing.T) {
	tr := newTranslator(t)
	for _, node := range []*protobuf.PhysicalPlanNode{nil, {}} {
		_, err := tr.Translate(node)
		require.Error(t, err)
		assert.True(t, qerrors.IsError(err, qerrors.MissingVariant))
		assert.Equal(t, "PhysicalPlanNode", qerrors.GetError(err).Node)
	}
}

func TestTranslateMissingInput(t *testing.T) {
	sortByAmount := []*protobuf.LogicalExprNode{protobuf.Expr(&protobuf.SortExprNode{Expr: protobuf.Column("amount"), Asc: true})}
	tests := []struct {
		node *protobuf.PhysicalPlanNode
		kind string
	}{
		{protobuf.Plan(&protobuf.ProjectionExecNode{Expr: []*protobuf.LogicalExprNode{protobuf.Column("amount")}}), "ProjectionExecNode"},
		{protobuf.Plan(&protobuf.FilterExecNode{Expr: amountAbove(1)}), "FilterExecNode"},
		{protobuf.Plan(&protobuf.SortExecNode{Expr: sortByAmount}), "SortExecNode"},
		{protobuf.Plan(&protobuf.GlobalLimitExecNode{Limit: 1}), "GlobalLimitExecNode"},
		{protobuf.Plan(&protobuf.CoalesceBatchesExecNode{TargetBatchSize: 10}), "CoalesceBatchesExecNode"},
		{protobuf.Plan(&protobuf.HashAggregateExecNode{AggrExpr: []*protobuf.LogicalExprNode{sumAmount()}}), "HashAggregateExecNode"},
	}

	tr := newTranslator(t)
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			_, err := tr.Translate(tt.node)
			require.Error(t, err)
			qe := qerrors.GetError(err)
			assert.Equal(t, qerrors.MissingRequiredField, qe.Code)
			assert.Equal(t, tt.kind, qe.Node)
			assert.Equal(t, "input", qe.Field)
		})
	}
}

func TestTranslateMissingFields(t *testing.T) {
	tr := newTranslator(t)
	tests := []struct {
		name  string
		node  *protobuf.PhysicalPlanNode
		field string
	}{
		{"csv path", protobuf.Plan(&protobuf.CsvScanExecNode{Schema: salesWire, Delimiter: ","}), "path"},
		{"csv schema", protobuf.Plan(&protobuf.CsvScanExecNode{Path: "x.csv", Delimiter: ","}), "schema"},
		{"csv delimiter", protobuf.Plan(&protobuf.CsvScanExecNode{Path: "x.csv", Schema: salesWire}), "delimiter"},
		{"parquet files", protobuf.Plan(&protobuf.ParquetScanExecNode{Schema: salesWire}), "filename"},
		{"empty schema", protobuf.Plan(&protobuf.EmptyExecNode{}), "schema"},
		{"filter predicate", protobuf.Plan(&protobuf.FilterExecNode{Input: salesScan(t)}), "expr"},
		{"projection exprs", protobuf.Plan(&protobuf.ProjectionExecNode{Input: salesScan(t)}), "expr"},
		{"join keys", protobuf.Plan(&protobuf.HashJoinExecNode{Left: salesScan(t), Right: salesScan(t)}), "on"},
		{"join right", protobuf.Plan(&protobuf.HashJoinExecNode{Left: salesScan(t)}), "right"},
		{"shuffle locations", protobuf.Plan(&protobuf.ShuffleReaderExecNode{Schema: salesWire}), "partition_location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Translate(tt.node)
			require.Error(t, err)
			qe := qerrors.GetError(err)
			assert.Equal(t, qerrors.MissingRequiredField, qe.Code, err.Error())
			assert.Equal(t, tt.field, qe.Field)
		})
	}
}

func TestTranslateCsvDelimiter(t *testing.T) {
	tr := newTranslator(t)
	for _, delim := range []string{"||", "§", "\t\t"} {
		_, err := tr.Translate(protobuf.Plan(&protobuf.CsvScanExecNode{
			Path: "x.csv", Schema: salesWire, Delimiter: delim,
		}))
		require.Error(t, err, delim)
		qe := qerrors.GetError(err)
		assert.Equal(t, qerrors.InvalidPlan, qe.Code)
		assert.Equal(t, "CsvScanExecNode", qe.Node)
	}

	plan, err := tr.Translate(protobuf.Plan(&protobuf.CsvScanExecNode{
		Path: "x.csv", Schema: salesWire, Delimiter: "|",
	}))
	require.NoError(t, err)
	assert.Equal(t, byte('|'), plan.(*executor.CsvExec).Options().Delimiter)
}

func TestTranslateEnums(t *testing.T) {
	tr := newTranslator(t)

	_, err := tr.Translate(protobuf.Plan(&protobuf.HashAggregateExecNode{
		Mode:     protobuf.AggregateMode(7),
		AggrExpr: []*protobuf.LogicalExprNode{sumAmount()},
		Input:    salesScan(t),
	}))
	require.Error(t, err)
	assert.True(t, qerrors.IsError(err, qerrors.UnknownEnumValue))
	assert.Equal(t, "HashAggregateExecNode", qerrors.GetError(err).Node)

	_, err = tr.Translate(protobuf.Plan(&protobuf.HashJoinExecNode{
		Left:     salesScan(t),
		Right:    salesScan(t),
		On:       []*protobuf.JoinOn{{Left: "region", Right: "region"}},
		JoinType: protobuf.JoinType(9),
	}))
	require.Error(t, err)
	assert.True(t, qerrors.IsError(err, qerrors.UnknownEnumValue))
	assert.Equal(t, "HashJoinExecNode", qerrors.GetError(err).Node)

	for wire, want := range map[protobuf.JoinType]executor.JoinType{
		protobuf.JoinType_INNER: executor.InnerJoin,
		protobuf.JoinType_LEFT:  executor.LeftJoin,
		protobuf.JoinType_RIGHT: executor.RightJoin,
	} {
		plan, err := tr.Translate(protobuf.Plan(&protobuf.HashJoinExecNode{
			Left:     salesScan(t),
			Right:    salesScan(t),
			On:       []*protobuf.JoinOn{{Left: "region", Right: "region"}},
			JoinType: wire,
		}))
		require.NoError(t, err)
		assert.Contains(t, plan.String(), "join_type="+want.String())
	}
}

func TestTranslateSortRejectsPlainExpression(t *testing.T) {
	tr := newTranslator(t)
	_, err := tr.Translate(protobuf.Plan(&protobuf.SortExecNode{
		Input: salesScan(t),
		Expr:  []*protobuf.LogicalExprNode{protobuf.Column("amount")},
	}))
	require.Error(t, err)
	qe := qerrors.GetError(err)
	assert.Equal(t, qerrors.InvalidPlan, qe.Code)
	assert.Equal(t, "SortExecNode", qe.Node)
}

func TestTranslateUnsupported(t *testing.T) {
	tr := newTranslator(t)

	_, err := tr.Translate(protobuf.Plan(&protobuf.SelectionExecNode{Input: salesScan(t), Expr: amountAbove(1)}))
	assert.True(t, qerrors.IsError(err, qerrors.UnsupportedVariant))

	_, err = tr.Translate(protobuf.Plan(&protobuf.FilterExecNode{
		Input: salesScan(t),
		Expr:  protobuf.Expr(&protobuf.InListNode{Expr: protobuf.Column("amount")}),
	}))
	assert.True(t, qerrors.IsError(err, qerrors.UnsupportedVariant))
}

func TestTranslateBindingErrors(t *testing.T) {
	tr := newTranslator(t)

	_, err := tr.Translate(protobuf.Plan(&protobuf.FilterExecNode{Input: salesScan(t), Expr: protobuf.Column("missing")}))
	require.Error(t, err)
	qe := qerrors.GetError(err)
	assert.Equal(t, qerrors.UndefinedColumn, qe.Code)
	assert.Equal(t, "FilterExecNode", qe.Node)

	// errors below the root keep the node kind that raised them
	_, err = tr.Translate(protobuf.Plan(&protobuf.GlobalLimitExecNode{
		Limit: 1,
		Input: protobuf.Plan(&protobuf.FilterExecNode{Input: salesScan(t), Expr: protobuf.Column("missing")}),
	}))
	assert.Equal(t, "FilterExecNode", qerrors.GetError(err).Node)

	misplaced := []struct {
		name string
		node *protobuf.PhysicalPlanNode
		want string
	}{
		{"aggregate in projection", protobuf.Plan(&protobuf.ProjectionExecNode{
			Input: salesScan(t),
			Expr:  []*protobuf.LogicalExprNode{sumAmount()},
		}), "ProjectionExecNode"},
		{"sort key in filter", protobuf.Plan(&protobuf.FilterExecNode{
			Input: salesScan(t),
			Expr:  protobuf.Expr(&protobuf.SortExprNode{Expr: protobuf.Column("amount"), Asc: true}),
		}), "FilterExecNode"},
		{"column as aggregate", protobuf.Plan(&protobuf.HashAggregateExecNode{
			Mode:     protobuf.AggregateMode_PARTIAL,
			AggrExpr: []*protobuf.LogicalExprNode{protobuf.Column("amount")},
			Input:    salesScan(t),
		}), "HashAggregateExecNode"},
	}
	for _, tt := range misplaced {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Translate(tt.node)
			require.Error(t, err)
			qe := qerrors.GetError(err)
			assert.Equal(t, qerrors.InvalidPlan, qe.Code)
			assert.Equal(t, tt.want, qe.Node)
		})
	}
}

func TestTranslateConstructionErrors(t *testing.T) {
	tr := newTranslator(t)

	_, err := tr.Translate(protobuf.Plan(&protobuf.HashJoinExecNode{
		Left:  salesScan(t),
		Right: salesScan(t),
		On:    []*protobuf.JoinOn{{Left: "region", Right: "nope"}},
	}))
	require.Error(t, err)
	qe := qerrors.GetError(err)
	assert.Equal(t, qerrors.ConstructionFailed, qe.Code)
	assert.Equal(t, "HashJoinExecNode", qe.Node)
	assert.NotNil(t, qe.Cause)

	_, err = tr.Translate(protobuf.Plan(&protobuf.CsvScanExecNode{
		Path: "x.csv", Schema: salesWire, Delimiter: ",", Projection: []uint32{4},
	}))
	assert.True(t, qerrors.IsError(err, qerrors.ConstructionFailed))
}

func shuffleLocations(executors ...*protobuf.ExecutorMetadata) []*protobuf.PartitionLocation {
	locs := make([]*protobuf.PartitionLocation, 3)
	for i := range locs {
		locs[i] = &protobuf.PartitionLocation{
			PartitionId:  &protobuf.PartitionId{JobId: "q", StageId: 1, PartitionId: uint32(i)},
			ExecutorMeta: executors,
		}
	}
	return locs
}

func TestTranslateShuffleReader(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	fetcher, err := shuffle.NewLocalFetcher(dir, shuffle.CodecLZ4, log.Nop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := testutil.Record(t, salesSchema, testutil.Strings("east"), testutil.Int64s(int64(i)))
		rec.Retain()
		id := shuffle.PartitionID{JobID: "q", StageID: 1, PartitionID: i}
		_, err := fetcher.WritePartition(context.Background(), "exec-1", id, executor.NewRecordStream(salesSchema, []arrow.Record{rec}))
		require.NoError(t, err)
	}

	tr := newTranslator(t, WithFetcher(fetcher))
	plan, err := tr.Translate(protobuf.Plan(&protobuf.ShuffleReaderExecNode{
		Schema:            salesWire,
		PartitionLocation: shuffleLocations(&protobuf.ExecutorMetadata{Id: "exec-1", Host: "localhost", Port: 50051}),
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, plan.OutputPartitioning())

	reader, ok := plan.(*shuffle.ShuffleReaderExec)
	require.True(t, ok)
	for i, loc := range reader.Locations() {
		assert.Equal(t, i, loc.PartitionID.PartitionID)
	}

	stream, err := plan.Execute(context.Background(), 2)
	require.NoError(t, err)
	defer stream.Close()
	rec, err := stream.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	defer rec.Release()
	testutil.AssertRows(t, [][]any{{"east", int64(2)}}, []arrow.Record{rec})
}

func TestTranslateShuffleReaderInvalidExecutor(t *testing.T) {
	tr := newTranslator(t)
	_, err := tr.Translate(protobuf.Plan(&protobuf.ShuffleReaderExecNode{
		Schema:            salesWire,
		PartitionLocation: shuffleLocations(&protobuf.ExecutorMetadata{Id: "exec-1", Host: "localhost", Port: 70000}),
	}))
	require.Error(t, err)
	assert.True(t, qerrors.IsError(err, qerrors.InvalidPartition))
}

func TestTranslateIsDeterministic(t *testing.T) {
	tr := newTranslator(t)
	node := protobuf.Plan(&protobuf.SortExecNode{
		Input: protobuf.Plan(&protobuf.FilterExecNode{Input: salesScan(t), Expr: amountAbove(3)}),
		Expr:  []*protobuf.LogicalExprNode{protobuf.Expr(&protobuf.SortExprNode{Expr: protobuf.Column("region"), Asc: true})},
	})

	var g errgroup.Group
	trees := make([]string, 8)
	for i := range trees {
		i := i
		g.Go(func() error {
			plan, err := tr.Translate(node)
			if err != nil {
				return err
			}
			trees[i] = executor.DisplayTree(plan)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for _, tree := range trees[1:] {
		assert.Equal(t, trees[0], tree)
	}
	assert.True(t, strings.HasPrefix(trees[0], "SortExec"), trees[0])
}

func TestTranslateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	tr := newTranslator(t, WithMetrics(m))

	_, err = tr.Translate(protobuf.Plan(&protobuf.GlobalLimitExecNode{Input: salesScan(t), Limit: 1}))
	require.NoError(t, err)
	_, err = tr.Translate(protobuf.Plan(&protobuf.GlobalLimitExecNode{Limit: 1}))
	require.Error(t, err)

	expected := `
# HELP quantadist_plan_nodes_translated_total Count of plan nodes turned into operators, by node kind.
# TYPE quantadist_plan_nodes_translated_total counter
quantadist_plan_nodes_translated_total{node="CsvScanExecNode"} 1
quantadist_plan_nodes_translated_total{node="GlobalLimitExecNode"} 1
# HELP quantadist_plan_translation_errors_total Count of failed plan translations, by error code.
# TYPE quantadist_plan_translation_errors_total counter
quantadist_plan_translation_errors_total{code="XP002"} 1
`
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"quantadist_plan_nodes_translated_total", "quantadist_plan_translation_errors_total"))
	n, err := promtest.GatherAndCount(reg, "quantadist_plan_translation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewTranslatorValidatesConfig(t *testing.T) {
	cfg := config.DefaultExecutorConfig()
	cfg.BatchSize = 0
	_, err := NewTranslator(WithConfig(cfg), WithLogger(log.Nop()))
	assert.True(t, qerrors.IsError(err, qerrors.InvalidParameterValue))
}
