package core

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// FieldType is the expected type of a record field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldNumeric
)

// FieldSpec is an advisory rule for one record field.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Required   bool
	EnumValues []string // valid values for FieldEnum
	Min        *decimal.Decimal
	Max        *decimal.Decimal
	MinExcl    bool // Min is exclusive
}

// RecordCheck is a cross-field rule. It returns one message per problem.
type RecordCheck func(r Record) []string

// TargetDefinition describes an import target.
type TargetDefinition struct {
	Target    Target
	Label     string
	Path      string // endpoint path relative to the API base URL
	Fields    []FieldSpec
	UniqueKey []string // fields that must be unique within a file
	Checks    []RecordCheck
}

// FieldNames returns the declared field names in order.
func (d TargetDefinition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

var (
	registry   = make(map[Target]TargetDefinition)
	order      []Target
	registryMu sync.RWMutex
)

// Register adds a target definition to the registry.
// Panics if the target is already registered.
func Register(def TargetDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Target]; exists {
		panic(fmt.Sprintf("target already registered: %s", def.Target))
	}
	registry[def.Target] = def
	order = append(order, def.Target)
}

// Lookup returns the definition for t.
func Lookup(t Target) (TargetDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[t]
	return def, ok
}

// Targets returns all definitions in registration order.
func Targets() []TargetDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	defs := make([]TargetDefinition, 0, len(order))
	for _, t := range order {
		defs = append(defs, registry[t])
	}
	return defs
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func init() {
	Register(TargetDefinition{
		Target: TargetItems,
		Label:  "Items",
		Path:   "/items",
		Fields: []FieldSpec{
			{Name: "internal_item_name", Required: true},
			{Name: "tenant_id", Required: true, Type: FieldNumeric},
			{Name: "item_description", Required: true},
			{Name: "uom", Required: true},
			{Name: "type", Required: true, Type: FieldEnum, EnumValues: []string{"sell", "purchase", "component"}},
			{Name: "min_buffer", Type: FieldNumeric, Min: dec("0")},
			{Name: "max_buffer", Type: FieldNumeric, Min: dec("0")},
			{Name: "additional_attributes"},
		},
		UniqueKey: []string{"internal_item_name"},
		Checks:    []RecordCheck{checkBufferRange},
	})

	Register(TargetDefinition{
		Target: TargetProcess,
		Label:  "Process",
		Path:   "/process",
		Fields: []FieldSpec{
			{Name: "process_name", Required: true},
			{Name: "tenant_id", Required: true, Type: FieldNumeric},
			{Name: "type", Type: FieldEnum, EnumValues: []string{"internal", "transfer"}},
			{Name: "factory_id", Type: FieldNumeric},
		},
		Checks: []RecordCheck{checkTransferFactory},
	})

	Register(TargetDefinition{
		Target: TargetBillOfMaterial,
		Label:  "Bill of Material",
		Path:   "/bom",
		Fields: []FieldSpec{
			{Name: "item_id", Required: true},
			{Name: "component_id", Required: true},
			{Name: "quantity", Required: true, Type: FieldNumeric, Min: dec("0"), MinExcl: true},
			{Name: "created_by", Required: true},
			{Name: "last_updated_by", Required: true},
		},
	})

	Register(TargetDefinition{
		Target: TargetProcessStep,
		Label:  "Process Step",
		Path:   "/process-step",
		Fields: []FieldSpec{
			{Name: "process_id", Required: true},
			{Name: "item_id", Required: true},
			{Name: "sequence", Required: true, Type: FieldNumeric, Min: dec("1")},
			{Name: "conversion_ratio", Required: true, Type: FieldNumeric, Min: dec("0"), Max: dec("100")},
		},
		UniqueKey: []string{"item_id", "sequence"},
	})
}
