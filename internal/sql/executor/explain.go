package executor

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// PlanDescription is a serializable view of an operator tree.
type PlanDescription struct {
	Operator   string             `json:"operator"`
	Detail     string             `json:"detail"`
	Partitions int                `json:"partitions"`
	Schema     []string           `json:"schema"`
	Children   []*PlanDescription `json:"children,omitempty"`
}

// Describe builds a PlanDescription for plan and its inputs.
func Describe(plan ExecutionPlan) *PlanDescription {
	schema := plan.Schema()
	fields := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		fields[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
	}
	d := &PlanDescription{
		Operator:   operatorName(plan),
		Detail:     plan.String(),
		Partitions: plan.OutputPartitioning(),
		Schema:     fields,
	}
	for _, child := range plan.Children() {
		d.Children = append(d.Children, Describe(child))
	}
	return d
}

// DisplayTree renders plan as an indented tree, one operator per line.
func DisplayTree(plan ExecutionPlan) string {
	return asTree(plan, nil).String()
}

func asTree(plan ExecutionPlan, root treeprint.Tree) treeprint.Tree {
	txt := fmt.Sprintf("%s (partitions=%d)", plan, plan.OutputPartitioning())
	var branch treeprint.Tree
	if root == nil {
		branch = treeprint.NewWithRoot(txt)
	} else {
		branch = root.AddBranch(txt)
	}
	for _, child := range plan.Children() {
		asTree(child, branch)
	}
	return branch
}
