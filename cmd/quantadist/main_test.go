package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaDist/internal/testutil"
)

const emptyPlan = `
empty:
  produce_one_row: true
  schema:
    columns:
      - name: region
        arrow_type: {scalar_type: UTF8}
        nullable: true
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestExplainAndRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	plan := testutil.WriteFile(t, dir, "plan.yaml", emptyPlan)

	assert.Contains(t, execute(t, "explain", plan, "--work-dir", dir), "EmptyExec: produce_one_row=true")
	assert.Contains(t, execute(t, "explain", plan, "--work-dir", dir, "--format", "json"), `"partitions": 1`)

	out := execute(t, "run", plan, "--work-dir", dir, "--metrics")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(1 rows in")
	assert.Contains(t, out, "quantadist_plan_nodes_translated_total")
}

func TestConvertToBinary(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	plan := testutil.WriteFile(t, dir, "plan.yaml", emptyPlan)
	binary := filepath.Join(dir, "plan.pb")

	assert.Contains(t, execute(t, "convert", plan, binary), "wrote binary plan")
	assert.Contains(t, execute(t, "explain", binary, "--work-dir", dir), "EmptyExec: produce_one_row=true")

	back := filepath.Join(dir, "plan.json")
	execute(t, "convert", binary, back)
	assert.Contains(t, execute(t, "explain", back, "--work-dir", dir), "EmptyExec: produce_one_row=true")
}

func TestVersion(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "QuantaDist v")
}
