package protobuf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// A oneof is written as an object with exactly one key naming the variant,
// e.g. {"projection": {...}}. Unknown keys are ignored on input, as unknown
// protobuf fields are; a message with no known key decodes with its oneof
// unset and keeps its raw text for error reporting.

func (n *PhysicalPlanNode) MarshalJSON() ([]byte, error) {
	if n.PhysicalPlanType == nil {
		return emptyOneof(n.raw), nil
	}
	return marshalOneof(n.PhysicalPlanType.planVariant(), n.PhysicalPlanType)
}

func (n *PhysicalPlanNode) UnmarshalJSON(data []byte) error {
	name, body, err := splitOneof(data, "PhysicalPlanNode", isPlanVariant)
	if err != nil {
		return err
	}
	*n = PhysicalPlanNode{}
	if name == "" {
		n.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	v := planVariants[name]()
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	n.PhysicalPlanType = v
	return nil
}

func (n *LogicalExprNode) MarshalJSON() ([]byte, error) {
	if n.ExprType == nil {
		return emptyOneof(n.raw), nil
	}
	return marshalOneof(n.ExprType.exprVariant(), n.ExprType)
}

func (n *LogicalExprNode) UnmarshalJSON(data []byte) error {
	name, body, err := splitOneof(data, "LogicalExprNode", isExprVariant)
	if err != nil {
		return err
	}
	*n = LogicalExprNode{}
	if name == "" {
		n.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	v := exprVariants[name]()
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	n.ExprType = v
	return nil
}

func (s *ScalarValue) MarshalJSON() ([]byte, error) {
	if s.Value == nil {
		return []byte("{}"), nil
	}
	return marshalOneof(s.Value.scalarVariant(), s.Value)
}

func (s *ScalarValue) UnmarshalJSON(data []byte) error {
	name, body, err := splitOneof(data, "ScalarValue", isScalarVariant)
	if err != nil {
		return err
	}
	*s = ScalarValue{}
	if name == "" {
		return nil
	}
	v, err := scalarVariants[name](body)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.Value = v
	return nil
}

func isPlanVariant(k string) bool {
	_, ok := planVariants[k]
	return ok
}

func isExprVariant(k string) bool {
	_, ok := exprVariants[k]
	return ok
}

func isScalarVariant(k string) bool {
	_, ok := scalarVariants[k]
	return ok
}

func marshalOneof(name string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{name: body})
}

func emptyOneof(raw json.RawMessage) []byte {
	if len(raw) > 0 {
		return raw
	}
	return []byte("{}")
}

// splitOneof returns the single known variant key of an object and its
// body. A key whose value is null counts as unset.
func splitOneof(data []byte, message string, known func(string) bool) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, fmt.Errorf("%s: %w", message, err)
	}
	var name string
	var body json.RawMessage
	for k, v := range fields {
		if !known(k) || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		if name != "" {
			return "", nil, fmt.Errorf("%s: oneof has both %q and %q set", message, name, k)
		}
		name, body = k, v
	}
	return name, body, nil
}

// UnmarshalPlanJSON decodes a plan from JSON.
func UnmarshalPlanJSON(data []byte) (*PhysicalPlanNode, error) {
	node := &PhysicalPlanNode{}
	if err := json.Unmarshal(data, node); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return node, nil
}

// MarshalPlanJSON encodes a plan as indented JSON.
func MarshalPlanJSON(node *PhysicalPlanNode) ([]byte, error) {
	return json.MarshalIndent(node, "", "  ")
}

// UnmarshalPlanYAML decodes a plan written in YAML using the JSON field names.
func UnmarshalPlanYAML(data []byte) (*PhysicalPlanNode, error) {
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return UnmarshalPlanJSON(js)
}

// PlanFormat is the encoding of a plan file.
type PlanFormat string

const (
	FormatJSON   PlanFormat = "json"
	FormatYAML   PlanFormat = "yaml"
	FormatBinary PlanFormat = "binary"
)

// FormatOf picks the format from a file extension: .yaml and .yml are YAML,
// .pb, .binpb and .bin are protobuf binary, anything else is JSON.
func FormatOf(path string) PlanFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".pb", ".binpb", ".bin":
		return FormatBinary
	}
	return FormatJSON
}

// ReadPlanFile loads a plan in the format its extension names.
func ReadPlanFile(path string) (*PhysicalPlanNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch FormatOf(path) {
	case FormatYAML:
		return UnmarshalPlanYAML(data)
	case FormatBinary:
		return UnmarshalPlan(data)
	}
	return UnmarshalPlanJSON(data)
}

// EncodePlan encodes node in the given format.
func EncodePlan(node *PhysicalPlanNode, format PlanFormat) ([]byte, error) {
	switch format {
	case FormatBinary:
		return MarshalPlan(node)
	case FormatYAML:
		js, err := json.Marshal(node)
		if err != nil {
			return nil, err
		}
		return yaml.JSONToYAML(js)
	case FormatJSON:
		return MarshalPlanJSON(node)
	}
	return nil, fmt.Errorf("unknown plan format %q", format)
}

// WritePlanFile writes node in the format its extension names.
func WritePlanFile(path string, node *PhysicalPlanNode) error {
	data, err := EncodePlan(node, FormatOf(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Text renders a message compactly for error details.
func Text(msg any) string {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Sprintf("%+v", msg)
	}
	return string(data)
}
