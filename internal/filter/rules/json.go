package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	jsonMaxDepth = 5
	jsonMaxKeys  = 15
)

// condenseJSONFiles handles `cat` only when every file argument is a .json
// file.
func condenseJSONFiles(raw []byte, args []string) ([]byte, error) {
	files := positional(args, nil)
	if len(files) == 0 {
		return nil, errUnrecognized
	}
	for _, f := range files {
		if !strings.HasSuffix(strings.ToLower(f), ".json") {
			return nil, errUnrecognized
		}
	}
	return condenseJSON(raw, args)
}

// condenseJSON renders the schema of each JSON document in raw.
func condenseJSON(raw []byte, _ []string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var docs []string
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		docs = append(docs, jsonSchema(v, 0, jsonMaxDepth))
	}
	if len(docs) == 0 {
		return nil, errUnrecognized
	}
	return []byte(strings.Join(docs, "\n") + "\n"), nil
}

func jsonScalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "null", true
	case bool:
		return "bool", true
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return "int", true
		}
		return "float", true
	case string:
		switch {
		case len(t) > 50:
			return fmt.Sprintf("string[%d]", len(t)), true
		case strings.HasPrefix(t, "http"):
			return "url", true
		case len(t) == 10 && strings.Contains(t, "-"):
			return "date?", true
		}
		return "string", true
	}
	return "", false
}

// jsonSchema describes v's structure: scalar types, sorted object keys
// (capped at jsonMaxKeys) and arrays summarized by their first element.
func jsonSchema(v any, depth, maxDepth int) string {
	indent := strings.Repeat("  ", depth)
	if depth > maxDepth {
		return indent + "..."
	}
	if s, ok := jsonScalar(v); ok {
		return indent + s
	}

	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return indent + "[]"
		}
		first := jsonSchema(t[0], depth+1, maxDepth)
		if len(t) == 1 {
			return indent + "[\n" + first + "\n" + indent + "]"
		}
		return fmt.Sprintf("%s[%s] (%d)", indent, strings.TrimSpace(first), len(t))
	case map[string]any:
		if len(t) == 0 {
			return indent + "{}"
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := []string{indent + "{"}
		for i, k := range keys {
			if i == jsonMaxKeys {
				out = append(out, fmt.Sprintf("%s  ... +%d more keys", indent, len(keys)-i))
				break
			}
			if s, ok := jsonScalar(t[k]); ok {
				out = append(out, fmt.Sprintf("%s  %s: %s", indent, k, s))
				continue
			}
			out = append(out, fmt.Sprintf("%s  %s:", indent, k), jsonSchema(t[k], depth+1, maxDepth))
		}
		out = append(out, indent+"}")
		return strings.Join(out, "\n")
	}
	return indent + "?"
}
