package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"needsls/internal/errors"
	"needsls/internal/needs"
)

// field is one key/value pair of a JSON object, kept in document order.
type field struct {
	Key   string
	Value json.RawMessage
}

// decodeObject decodes a JSON object preserving key order.
func decodeObject(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// decodeString accepts JSON strings and null; other scalars are kept as
// their literal text with a warning.
func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return strings.TrimSpace(string(raw)), false
}

// decodeIDList accepts an array of strings; non-string entries are skipped.
func decodeIDList(raw json.RawMessage) ([]string, bool) {
	if isNull(raw) {
		return nil, true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	ids := make([]string, 0, len(items))
	clean := true
	for _, item := range items {
		var id string
		if err := json.Unmarshal(item, &id); err != nil {
			clean = false
			continue
		}
		ids = append(ids, id)
	}
	return ids, clean
}

// decodeNeed is the schema pass: it turns one raw snapshot entry into a
// typed Need and reports every field that did not have the expected shape.
func decodeNeed(key string, raw json.RawMessage) (*needs.Need, []error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, []error{errors.New(errors.SnapshotInvalid, fmt.Sprintf("need %s is not an object", key), err)}
	}

	n := &needs.Need{ID: key}
	var problems []error
	warn := func(format string, args ...interface{}) {
		problems = append(problems, errors.Newf(errors.SnapshotInvalid, "need %s: "+format, append([]interface{}{key}, args...)...))
	}

	strField := func(name string, raw json.RawMessage, dst *string) {
		v, ok := decodeString(raw)
		if !ok {
			warn("field %q is not a string", name)
		}
		*dst = v
	}

	for _, f := range fields {
		switch f.Key {
		case "id":
			var id string
			strField("id", f.Value, &id)
			if id != "" && id != key {
				warn("id %q differs from its key, using the key", id)
			}
		case "title":
			strField(f.Key, f.Value, &n.Title)
		case "description":
			strField(f.Key, f.Value, &n.Description)
		case "type":
			strField(f.Key, f.Value, &n.Type)
		case "docname":
			strField(f.Key, f.Value, &n.DocName)
		case "doctype":
			strField(f.Key, f.Value, &n.DocType)
		case "status":
			strField(f.Key, f.Value, &n.Status)
		case "parent_need":
			strField(f.Key, f.Value, &n.ParentNeed)
		case "links":
			ids, ok := decodeIDList(f.Value)
			if !ok {
				warn("field \"links\" is not a list of ids")
			}
			n.Links = ids
		default:
			if strings.HasSuffix(f.Key, needs.ReverseLinkSuffix) {
				if ids, _ := decodeIDList(f.Value); ids != nil {
					n.ReverseLinks = append(n.ReverseLinks, needs.FieldLinks{Field: f.Key, IDs: ids})
					continue
				}
			}
			if n.Extra == nil {
				n.Extra = make(map[string]json.RawMessage)
			}
			n.Extra[f.Key] = f.Value
		}
	}

	return n, problems
}
