// Package serde rebuilds executable operator trees from wire plans. Each
// plan node is translated after its children, its expressions are bound
// against the child schema and the result is handed to the operator's
// constructor.
package serde

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/google/uuid"

	"github.com/dshills/QuantaDist/internal/config"
	qerrors "github.com/dshills/QuantaDist/internal/errors"
	"github.com/dshills/QuantaDist/internal/log"
	"github.com/dshills/QuantaDist/internal/metrics"
	"github.com/dshills/QuantaDist/internal/serde/protobuf"
	"github.com/dshills/QuantaDist/internal/shuffle"
	"github.com/dshills/QuantaDist/internal/sql/executor"
	"github.com/dshills/QuantaDist/internal/sql/logical"
	"github.com/dshills/QuantaDist/internal/sql/physical"
)

// Translator turns wire plans into operator trees. It is safe for
// concurrent use; every call to Translate works on its own environment.
type Translator struct {
	config  *config.ExecutorConfig
	logger  log.Logger
	metrics *metrics.Metrics
	fetcher shuffle.Fetcher
	state   *physical.ExecutionContextState
}

// Option configures a Translator.
type Option func(*Translator)

// WithConfig sets the executor configuration batch sizes and reader
// concurrency are taken from.
func WithConfig(cfg *config.ExecutorConfig) Option {
	return func(t *Translator) { t.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// WithMetrics enables translation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Translator) { t.metrics = m }
}

// WithFetcher sets the fetcher shuffle readers pull partitions through. The
// default reads from the configured work directory.
func WithFetcher(f shuffle.Fetcher) Option {
	return func(t *Translator) { t.fetcher = f }
}

// WithExecutionState sets the functions and variables expressions may use.
// The state is copied at the start of every translation.
func WithExecutionState(s *physical.ExecutionContextState) Option {
	return func(t *Translator) { t.state = s }
}

// NewTranslator creates a Translator. Without options it uses the default
// executor configuration, the default logger and empty function registries.
func NewTranslator(opts ...Option) (*Translator, error) {
	t := &Translator{
		config: config.DefaultExecutorConfig(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.config == nil {
		t.config = config.DefaultExecutorConfig()
	}
	if t.logger == nil {
		t.logger = log.Nop()
	}
	if err := t.config.Validate(); err != nil {
		return nil, qerrors.Wrap(qerrors.InvalidParameterValue, err, "invalid executor configuration")
	}
	if t.fetcher == nil {
		f, err := shuffle.NewLocalFetcher(t.config.WorkDir, t.config.ShuffleCompression, t.logger)
		if err != nil {
			return nil, err
		}
		t.fetcher = f
	}
	return t, nil
}

// Translate builds the operator tree for node. On error no operator is
// returned; the error is an *errors.Error naming the offending node kind.
func (t *Translator) Translate(node *protobuf.PhysicalPlanNode) (executor.ExecutionPlan, error) {
	start := time.Now()
	id := uuid.NewString()
	tr := &translation{
		Translator: t,
		state:      t.newState(),
		logger:     t.logger.With("translation_id", id),
	}

	plan, err := tr.plan(node)
	t.metrics.ObserveTranslation(time.Since(start))
	if err != nil {
		qe := qerrors.GetError(err)
		t.metrics.TranslationFailed(qe.Code)
		tr.logger.Warn("plan translation failed", "code", qe.Code, "node", qe.Node, "error", err)
		return nil, err
	}
	tr.logger.Debug("plan translated",
		"root", nodeKind(node.PhysicalPlanType),
		"partitions", plan.OutputPartitioning(),
		"elapsed", time.Since(start))
	return plan, nil
}

// TranslateBytes decodes a plan in the protobuf binary format and
// translates it. Malformed input is reported as an InvalidPlan error.
func (t *Translator) TranslateBytes(data []byte) (executor.ExecutionPlan, error) {
	node, err := protobuf.UnmarshalPlan(data)
	if err != nil {
		qe := qerrors.Wrap(qerrors.InvalidPlan, err, "malformed plan message").
			WithNode("PhysicalPlanNode")
		t.metrics.TranslationFailed(qe.Code)
		t.logger.Warn("plan decoding failed", "bytes", len(data), "error", err)
		return nil, qe
	}
	return t.Translate(node)
}

func (t *Translator) newState() *physical.ExecutionContextState {
	var s *physical.ExecutionContextState
	if t.state != nil {
		s = t.state.Clone()
	} else {
		s = physical.NewExecutionContextState()
	}
	s.Config.BatchSize = t.config.BatchSize
	return s
}

// translation is the state of a single Translate call.
type translation struct {
	*Translator
	state  *physical.ExecutionContextState
	logger log.Logger
}

func (tr *translation) plan(node *protobuf.PhysicalPlanNode) (executor.ExecutionPlan, error) {
	if node == nil || node.PhysicalPlanType == nil {
		return nil, qerrors.MissingVariantError("physical plan type", protobuf.Text(node)).
			WithNode("PhysicalPlanNode")
	}

	kind := nodeKind(node.PhysicalPlanType)
	var plan executor.ExecutionPlan
	var err error
	switch n := node.PhysicalPlanType.(type) {
	case *protobuf.ProjectionExecNode:
		plan, err = tr.projection(kind, n)
	case *protobuf.FilterExecNode:
		plan, err = tr.filter(kind, n)
	case *protobuf.CsvScanExecNode:
		plan, err = tr.csvScan(kind, n)
	case *protobuf.ParquetScanExecNode:
		plan, err = tr.parquetScan(kind, n)
	case *protobuf.CoalesceBatchesExecNode:
		plan, err = tr.coalesceBatches(kind, n)
	case *protobuf.GlobalLimitExecNode:
		plan, err = tr.globalLimit(kind, n)
	case *protobuf.LocalLimitExecNode:
		plan, err = tr.localLimit(kind, n)
	case *protobuf.HashAggregateExecNode:
		plan, err = tr.hashAggregate(kind, n)
	case *protobuf.HashJoinExecNode:
		plan, err = tr.hashJoin(kind, n)
	case *protobuf.ShuffleReaderExecNode:
		plan, err = tr.shuffleReader(kind, n)
	case *protobuf.EmptyExecNode:
		plan, err = tr.empty(kind, n)
	case *protobuf.SortExecNode:
		plan, err = tr.sort(kind, n)
	default:
		err = qerrors.UnsupportedVariantError("physical plan", kind)
	}
	if err != nil {
		return nil, annotate(err, kind)
	}

	tr.metrics.NodeTranslated(kind)
	tr.logger.Debug("plan node translated",
		"node", kind,
		"operator", plan.String(),
		"schema_fields", plan.Schema().NumFields())
	return plan, nil
}

// input translates a required child.
func (tr *translation) input(kind, field string, child *protobuf.PhysicalPlanNode) (executor.ExecutionPlan, error) {
	if child == nil {
		return nil, qerrors.MissingFieldError(kind, field)
	}
	return tr.plan(child)
}

// bind decodes e and compiles it against schema.
func (tr *translation) bind(kind, field string, e *protobuf.LogicalExprNode, schema *arrow.Schema) (physical.PhysicalExpr, logical.Expr, error) {
	if e == nil {
		return nil, nil, qerrors.MissingFieldError(kind, field)
	}
	le, err := DecodeExpr(e)
	if err != nil {
		return nil, nil, err
	}
	pe, err := physical.CreatePhysicalExpr(le, schema, tr.state)
	if err != nil {
		return nil, nil, err
	}
	return pe, le, nil
}

func (tr *translation) projection(kind string, n *protobuf.ProjectionExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	if len(n.Expr) == 0 {
		return nil, qerrors.MissingFieldError(kind, "expr")
	}
	if len(n.ExprName) > 0 && len(n.ExprName) != len(n.Expr) {
		return nil, qerrors.InvalidPlanError(kind,
			fmt.Sprintf("%d expression names for %d expressions", len(n.ExprName), len(n.Expr)))
	}

	exprs := make([]executor.ProjectionExpr, len(n.Expr))
	for i, e := range n.Expr {
		pe, le, err := tr.bind(kind, "expr", e, input.Schema())
		if err != nil {
			return nil, err
		}
		name := logical.Name(le)
		if len(n.ExprName) > 0 && n.ExprName[i] != "" {
			name = n.ExprName[i]
		}
		exprs[i] = executor.ProjectionExpr{Expr: pe, Name: name}
	}
	plan, err := executor.NewProjectionExec(exprs, input)
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) filter(kind string, n *protobuf.FilterExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	predicate, _, err := tr.bind(kind, "expr", n.Expr, input.Schema())
	if err != nil {
		return nil, err
	}
	plan, err := executor.NewFilterExec(predicate, input)
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) csvScan(kind string, n *protobuf.CsvScanExecNode) (executor.ExecutionPlan, error) {
	if n.Path == "" {
		return nil, qerrors.MissingFieldError(kind, "path")
	}
	schema, err := DecodeSchema(kind, n.Schema)
	if err != nil {
		return nil, err
	}
	if n.Delimiter == "" {
		return nil, qerrors.MissingFieldError(kind, "delimiter")
	}
	if len(n.Delimiter) != 1 {
		return nil, qerrors.InvalidPlanError(kind,
			fmt.Sprintf("delimiter %q must be a single byte", n.Delimiter))
	}
	options := executor.CsvReadOptions{
		HasHeader:     n.HasHeader,
		Delimiter:     n.Delimiter[0],
		FileExtension: n.FileExtension,
		Schema:        schema,
	}
	plan, err := executor.NewCsvExec(n.Path, options, projection(n.Projection), tr.config.BatchSize)
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) parquetScan(kind string, n *protobuf.ParquetScanExecNode) (executor.ExecutionPlan, error) {
	if len(n.Filename) == 0 {
		return nil, qerrors.MissingFieldError(kind, "filename")
	}
	var schema *arrow.Schema
	if n.Schema != nil {
		s, err := DecodeSchema(kind, n.Schema)
		if err != nil {
			return nil, err
		}
		schema = s
	}
	plan, err := executor.NewParquetExec(n.Filename, schema, projection(n.Projection),
		tr.config.BatchSize, tr.config.ParquetMaxConcurrency)
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) coalesceBatches(kind string, n *protobuf.CoalesceBatchesExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	target := int(n.TargetBatchSize)
	if target == 0 {
		target = tr.config.BatchSize
	}
	return executor.NewCoalesceBatchesExec(input, target), nil
}

func (tr *translation) globalLimit(kind string, n *protobuf.GlobalLimitExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	return executor.NewGlobalLimitExec(input, int64(n.Limit)), nil
}

func (tr *translation) localLimit(kind string, n *protobuf.LocalLimitExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	return executor.NewLocalLimitExec(input, int64(n.Limit)), nil
}

func (tr *translation) hashAggregate(kind string, n *protobuf.HashAggregateExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	mode := physical.AggregateMode(n.Mode)
	if !mode.Valid() {
		return nil, qerrors.UnknownEnumError(kind, "AggregateMode", int32(n.Mode))
	}
	schema := input.Schema()

	groups := make([]executor.ProjectionExpr, len(n.GroupExpr))
	for i, e := range n.GroupExpr {
		pe, le, err := tr.bind(kind, "group_expr", e, schema)
		if err != nil {
			return nil, err
		}
		groups[i] = executor.ProjectionExpr{Expr: pe, Name: logical.Name(le)}
	}

	aggrs := make([]physical.AggregateExpr, len(n.AggrExpr))
	for i, e := range n.AggrExpr {
		if e == nil {
			return nil, qerrors.MissingFieldError(kind, "aggr_expr")
		}
		le, err := DecodeExpr(e)
		if err != nil {
			return nil, err
		}
		ae, err := physical.CreateAggregateExpr(le, schema, tr.state, mode)
		if err != nil {
			return nil, err
		}
		aggrs[i] = ae
	}
	plan, err := executor.NewHashAggregateExec(mode, groups, aggrs, input)
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) hashJoin(kind string, n *protobuf.HashJoinExecNode) (executor.ExecutionPlan, error) {
	left, err := tr.input(kind, "left", n.Left)
	if err != nil {
		return nil, err
	}
	right, err := tr.input(kind, "right", n.Right)
	if err != nil {
		return nil, err
	}
	joinType := executor.JoinType(n.JoinType)
	if !joinType.Valid() {
		return nil, qerrors.UnknownEnumError(kind, "JoinType", int32(n.JoinType))
	}
	if len(n.On) == 0 {
		return nil, qerrors.MissingFieldError(kind, "on")
	}
	on := make([]executor.JoinOn, len(n.On))
	for i, pair := range n.On {
		if pair == nil || pair.Left == "" || pair.Right == "" {
			return nil, qerrors.MissingFieldError(kind, "on").WithDetailf("join key %d is incomplete", i)
		}
		on[i] = executor.JoinOn{Left: pair.Left, Right: pair.Right}
	}
	plan, err := executor.NewHashJoinExec(left, right, on, joinType)
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) shuffleReader(kind string, n *protobuf.ShuffleReaderExecNode) (executor.ExecutionPlan, error) {
	schema, err := DecodeSchema(kind, n.Schema)
	if err != nil {
		return nil, err
	}
	if len(n.PartitionLocation) == 0 {
		return nil, qerrors.MissingFieldError(kind, "partition_location")
	}
	locations, err := DecodePartitionLocations(n.PartitionLocation)
	if err != nil {
		return nil, err
	}
	plan, err := shuffle.NewShuffleReaderExec(locations, schema, tr.fetcher, shuffle.WithLogger(tr.logger))
	if err != nil {
		return nil, qerrors.ConstructionError(kind, err)
	}
	return plan, nil
}

func (tr *translation) empty(kind string, n *protobuf.EmptyExecNode) (executor.ExecutionPlan, error) {
	schema, err := DecodeSchema(kind, n.Schema)
	if err != nil {
		return nil, err
	}
	return executor.NewEmptyExec(n.ProduceOneRow, schema), nil
}

func (tr *translation) sort(kind string, n *protobuf.SortExecNode) (executor.ExecutionPlan, error) {
	input, err := tr.input(kind, "input", n.Input)
	if err != nil {
		return nil, err
	}
	if len(n.Expr) == 0 {
		return nil, qerrors.MissingFieldError(kind, "expr")
	}
	exprs := make([]physical.SortExpr, len(n.Expr))
	for i, e := range n.Expr {
		var node *protobuf.SortExprNode
		if e != nil {
			node, _ = e.ExprType.(*protobuf.SortExprNode)
		}
		if node == nil {
			return nil, qerrors.InvalidPlanError(kind,
				fmt.Sprintf("sort expression %d is not a sort descriptor", i)).
				WithDetail(protobuf.Text(e))
		}
		le, err := DecodeExpr(protobuf.Expr(node))
		if err != nil {
			return nil, err
		}
		se, err := physical.CreateSortExpr(le.(*logical.Sort), input.Schema(), tr.state)
		if err != nil {
			return nil, err
		}
		exprs[i] = se
	}
	return executor.NewSortExec(exprs, input, tr.config.SortConcurrency), nil
}

// annotate records the node kind on errors that do not name one yet.
func annotate(err error, kind string) error {
	if qe := qerrors.GetError(err); qe != nil && qe.Node == "" && qe.Code != qerrors.InternalError {
		qe.Node = kind
	}
	return err
}

func projection(indices []uint32) []int {
	if len(indices) == 0 {
		return nil
	}
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = int(idx)
	}
	return out
}

func nodeKind(v protobuf.PhysicalPlanType) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*protobuf.")
}
