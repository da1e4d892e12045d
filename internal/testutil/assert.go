package testutil

import (
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// AssertRows checks that recs contain exactly want, in order.
func AssertRows(t *testing.T, want [][]any, recs []arrow.Record) {
	t.Helper()
	if diff := cmp.Diff(want, Rows(recs), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

// AssertRowsAnyOrder checks that recs contain exactly want, in any order.
func AssertRowsAnyOrder(t *testing.T, want [][]any, recs []arrow.Record) {
	t.Helper()
	if diff := cmp.Diff(want, Rows(recs), cmpopts.EquateEmpty(), cmpopts.SortSlices(lessRow)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

// AssertSchemaNames checks the field names of schema.
func AssertSchemaNames(t *testing.T, want []string, schema *arrow.Schema) {
	t.Helper()
	got := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		got[i] = f.Name
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}
}

func lessRow(a, b []any) bool {
	return fmt.Sprint(a...) < fmt.Sprint(b...)
}
