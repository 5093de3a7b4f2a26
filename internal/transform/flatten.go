// Package transform reshapes the nested API payloads into the flat,
// string-typed records the staging tables take. Nested objects flatten
// into underscore-separated columns; nested arrays either explode into
// one row per element or persist as JSON text.
package transform

import (
	"encoding/json"
	"strconv"

	"asset-migrator/internal/sap"
)

// Flatten converts one record into flat column values. Nested objects are
// walked recursively with "_" joined keys, arrays are JSON-encoded, and
// empty arrays and nulls become absent columns.
func Flatten(row sap.Row) map[string]string {
	out := make(map[string]string, len(row))
	flattenInto(out, "", row)
	return out
}

// FlattenAll flattens a whole result set.
func FlattenAll(rows []sap.Row) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		out[i] = Flatten(row)
	}
	return out
}

func flattenInto(out map[string]string, prefix string, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			name := key
			if prefix != "" {
				name = prefix + "_" + key
			}
			flattenInto(out, name, child)
		}
	case []interface{}:
		if len(v) == 0 {
			return
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return
		}
		out[prefix] = string(encoded)
	case nil:
		return
	default:
		out[prefix] = Stringify(v)
	}
}

// Stringify renders a scalar JSON value the way it appeared on the wire.
// JSON numbers decode as float64, so integral values are printed without
// a fraction.
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// Explode expands an array-valued field into one row per element. Each
// element's keys are flattened under "<field>_"; the remaining fields of the
// parent row repeat on every produced row. Rows without the field (or with
// an empty array) pass through once, unchanged except for the dropped field.
func Explode(rows []sap.Row, field string) []sap.Row {
	var out []sap.Row

	for _, row := range rows {
		elements, _ := row[field].([]interface{})
		if len(elements) == 0 {
			out = append(out, without(row, field))
			continue
		}

		for _, element := range elements {
			exploded := without(row, field)
			switch e := element.(type) {
			case map[string]interface{}:
				for key, value := range e {
					exploded[field+"_"+key] = value
				}
			default:
				exploded[field] = element
			}
			out = append(out, exploded)
		}
	}
	return out
}

func without(row sap.Row, field string) sap.Row {
	copied := make(sap.Row, len(row))
	for key, value := range row {
		if key != field {
			copied[key] = value
		}
	}
	return copied
}
