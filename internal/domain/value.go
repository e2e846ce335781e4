package domain

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// CoerceValue converts the modem's loose string encoding into a typed value.
// Strings containing a dot parse as float64, other strings as int; values
// that fail to parse come back as the trimmed string. Non-string input passes
// through unchanged.
func CoerceValue(raw any) any {
	value, ok := raw.(string)
	if !ok {
		return raw
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	if strings.Contains(trimmed, ".") {
		if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return parsed
		}
		return trimmed
	}
	if parsed, err := strconv.Atoi(trimmed); err == nil {
		return parsed
	}
	return trimmed
}

// IsEmptyValue reports whether a resolved metric value carries no data. Nil,
// whitespace-only strings, and maps or slices whose members are all empty
// count as empty. Numbers and booleans never do, so 0 and false publish.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]any:
		for _, member := range v {
			if !IsEmptyValue(member) {
				return false
			}
		}
		return true
	case []any:
		for _, member := range v {
			if !IsEmptyValue(member) {
				return false
			}
		}
		return true
	case []NeighborCell:
		return len(v) == 0
	default:
		return false
	}
}

// EncodePayload renders a resolved metric value for the wire. Scalars go out
// as plain text so a request for a single field answers with just the value;
// maps and slices serialize to JSON.
func EncodePayload(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case int:
		return []byte(strconv.Itoa(v)), nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	case float64:
		return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case []byte:
		return v, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return encoded, nil
	}
}
