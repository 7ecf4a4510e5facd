package core

// validation.go provides advisory checks for parsed records.
//
// Checks run per record against the target's FieldSpecs, then across the
// file for duplicate unique keys. Results are warnings only: they never
// block an upload and never modify the records.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks records against the rules for target. Issues are keyed by
// record position, starting at 1.
func Validate(target Target, records []Record) []ImportError {
	def, ok := Lookup(target)
	if !ok {
		return nil
	}

	var issues []ImportError
	seen := make(map[string]int)

	for i, rec := range records {
		row := i + 1

		for _, spec := range def.Fields {
			if msg := validateField(rec, spec); msg != "" {
				issues = append(issues, ImportError{Row: row, Message: msg})
			}
		}
		for _, check := range def.Checks {
			for _, msg := range check(rec) {
				issues = append(issues, ImportError{Row: row, Message: msg})
			}
		}

		if key, ok := uniqueKey(rec, def.UniqueKey); ok {
			if first, dup := seen[key]; dup {
				issues = append(issues, ImportError{
					Row:     row,
					Message: fmt.Sprintf("duplicate %s (first seen in row %d)", strings.Join(def.UniqueKey, ", "), first),
				})
			} else {
				seen[key] = row
			}
		}
	}
	return issues
}

func validateField(rec Record, spec FieldSpec) string {
	raw := valueString(rec[spec.Name])
	if raw == "" {
		if spec.Required {
			return fmt.Sprintf("%s: required field is empty", spec.Name)
		}
		return ""
	}

	switch spec.Type {
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, raw) {
				return ""
			}
		}
		return fmt.Sprintf("%s: value must be one of: %s", spec.Name, strings.Join(spec.EnumValues, ", "))

	case FieldNumeric:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Sprintf("%s: invalid number %q", spec.Name, raw)
		}
		if spec.Min != nil {
			if spec.MinExcl && d.LessThanOrEqual(*spec.Min) {
				return fmt.Sprintf("%s: must be greater than %s", spec.Name, spec.Min)
			}
			if !spec.MinExcl && d.LessThan(*spec.Min) {
				return fmt.Sprintf("%s: must be at least %s", spec.Name, spec.Min)
			}
		}
		if spec.Max != nil && d.GreaterThan(*spec.Max) {
			return fmt.Sprintf("%s: must be at most %s", spec.Name, spec.Max)
		}
	}
	return ""
}

func checkBufferRange(rec Record) []string {
	lo, errLo := decimal.NewFromString(valueString(rec["min_buffer"]))
	hi, errHi := decimal.NewFromString(valueString(rec["max_buffer"]))
	if errLo != nil || errHi != nil {
		return nil
	}
	if lo.GreaterThan(hi) {
		return []string{"min_buffer must not exceed max_buffer"}
	}
	return nil
}

func checkTransferFactory(rec Record) []string {
	if strings.EqualFold(valueString(rec["type"]), "transfer") && valueString(rec["factory_id"]) == "" {
		return []string{"factory_id: required when type is transfer"}
	}
	return nil
}

// uniqueKey builds a case-insensitive key from fields. ok is false when any
// field is empty.
func uniqueKey(rec Record, fields []string) (string, bool) {
	if len(fields) == 0 {
		return "", false
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		v := valueString(rec[f])
		if v == "" {
			return "", false
		}
		parts[i] = strings.ToLower(v)
	}
	return strings.Join(parts, "\x1f"), true
}

// valueString renders a record value as trimmed text.
func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
