package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		records  []Record
		wantRows []int
		wantMsgs []string
	}{
		{
			name:   "valid item",
			target: TargetItems,
			records: []Record{
				{"internal_item_name": "Bolt", "tenant_id": "123", "item_description": "Hex", "uom": "pcs", "type": "Sell", "min_buffer": "5", "max_buffer": "10"},
			},
		},
		{
			name:   "item buffer rules",
			target: TargetItems,
			records: []Record{
				{"internal_item_name": "Bolt", "tenant_id": json.Number("123"), "item_description": "Hex", "uom": "pcs", "type": "sell", "min_buffer": "20", "max_buffer": "10"},
				{"internal_item_name": "Nut", "tenant_id": "123", "item_description": "Hex", "uom": "pcs", "type": "sell", "min_buffer": "-1"},
			},
			wantRows: []int{1, 2},
			wantMsgs: []string{"min_buffer must not exceed max_buffer", "min_buffer: must be at least 0"},
		},
		{
			name:   "item enum and required",
			target: TargetItems,
			records: []Record{
				{"internal_item_name": "Bolt", "tenant_id": "x", "item_description": "", "uom": "pcs", "type": "rent"},
			},
			wantRows: []int{1, 1, 1},
			wantMsgs: []string{`tenant_id: invalid number "x"`, "item_description: required field is empty", "type: value must be one of"},
		},
		{
			name:   "duplicate item names ignore case",
			target: TargetItems,
			records: []Record{
				{"internal_item_name": "Bolt", "tenant_id": "1", "item_description": "a", "uom": "pcs", "type": "sell"},
				{"internal_item_name": " BOLT ", "tenant_id": "1", "item_description": "b", "uom": "pcs", "type": "sell"},
			},
			wantRows: []int{2},
			wantMsgs: []string{"duplicate internal_item_name (first seen in row 1)"},
		},
		{
			name:   "transfer process needs factory",
			target: TargetProcess,
			records: []Record{
				{"process_name": "Move", "tenant_id": "1", "type": "transfer"},
				{"process_name": "Pack", "tenant_id": "1", "type": "internal"},
			},
			wantRows: []int{1},
			wantMsgs: []string{"factory_id: required when type is transfer"},
		},
		{
			name:   "bom quantity must be positive",
			target: TargetBillOfMaterial,
			records: []Record{
				{"item_id": "A", "component_id": "B", "quantity": "0", "created_by": "u1", "last_updated_by": "u2"},
				{"item_id": "A", "component_id": "C", "quantity": 0.5, "created_by": "u1", "last_updated_by": "u2"},
			},
			wantRows: []int{1},
			wantMsgs: []string{"quantity: must be greater than 0"},
		},
		{
			name:   "process step ratio and duplicates",
			target: TargetProcessStep,
			records: []Record{
				{"process_id": "P", "item_id": "I", "sequence": "1", "conversion_ratio": "100"},
				{"process_id": "P", "item_id": "I", "sequence": "1", "conversion_ratio": "100.5"},
			},
			wantRows: []int{2, 2},
			wantMsgs: []string{"conversion_ratio: must be at most 100", "duplicate item_id, sequence"},
		},
		{
			name:    "unknown target",
			target:  "widgets",
			records: []Record{{"a": "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.target, tt.records)
			if len(got) != len(tt.wantMsgs) {
				t.Fatalf("got %d issues, want %d: %v", len(got), len(tt.wantMsgs), got)
			}
			for i, issue := range got {
				if issue.Row != tt.wantRows[i] {
					t.Errorf("issue %d row = %d, want %d", i, issue.Row, tt.wantRows[i])
				}
				if !strings.HasPrefix(issue.Message, tt.wantMsgs[i]) {
					t.Errorf("issue %d = %q, want prefix %q", i, issue.Message, tt.wantMsgs[i])
				}
			}
		})
	}
}

func TestValidate_DoesNotModifyRecords(t *testing.T) {
	rec := Record{"internal_item_name": " Bolt ", "min_buffer": "x"}
	_ = Validate(TargetItems, []Record{rec})

	if rec["internal_item_name"] != " Bolt " || rec["min_buffer"] != "x" || len(rec) != 2 {
		t.Errorf("record modified: %v", rec)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  a ", "a"},
		{json.Number("1.50"), "1.50"},
		{2.5, "2.5"},
		{7, "7"},
		{true, "true"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		if got := valueString(tt.in); got != tt.want {
			t.Errorf("valueString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
