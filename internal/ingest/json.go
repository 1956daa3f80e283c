package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	splits "attorney-splits/internal/splits/domain"
)

// Flatten turns a decoded JSON object into a raw record. Nested objects are
// joined with "_" so {"matter":{"display_number":"X"}} yields matter_display_number.
// Arrays are skipped. Numbers decoded with UseNumber stay json.Number.
func Flatten(obj map[string]any) splits.RawRecord {
	out := make(splits.RawRecord, len(obj))
	flattenInto(out, "", obj)
	return out
}

func flattenInto(out splits.RawRecord, prefix string, obj map[string]any) {
	for key, value := range obj {
		name := key
		if prefix != "" {
			name = prefix + "_" + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenInto(out, name, v)
		case []any:
			// list values have no single cell
		default:
			out[name] = v
		}
	}
}

// DecodeJSONArray parses an array of objects into raw records.
func DecodeJSONArray(data []byte) ([]splits.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("ingest: decode json rows: %w", err)
	}
	out := make([]splits.RawRecord, 0, len(items))
	for _, item := range items {
		out = append(out, Flatten(item))
	}
	return out, nil
}
