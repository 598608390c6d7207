package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is a list of trimmed, non-empty strings. Upstream data may
// deliver it as a single string, a delimited string or a JSON array; all
// shapes normalize to the same list on decode.
type StringList []string

func isListDelimiter(r rune) bool {
	switch r {
	case ',', ';', '|', '\n', '\r':
		return true
	}
	return false
}

// SplitList splits a delimited string into trimmed, non-empty parts.
func SplitList(raw string) StringList {
	parts := strings.FieldsFunc(raw, isListDelimiter)
	out := make(StringList, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// NormalizeList accepts the loosely typed shapes seen upstream.
func NormalizeList(raw any) (StringList, error) {
	switch v := raw.(type) {
	case nil:
		return StringList{}, nil
	case string:
		return SplitList(v), nil
	case []string:
		return compact(v), nil
	case StringList:
		return compact(v), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				items = append(items, s)
			case nil:
			default:
				items = append(items, fmt.Sprint(s))
			}
		}
		return compact(items), nil
	default:
		return nil, fmt.Errorf("string list: unsupported type %T", raw)
	}
}

func compact(items []string) StringList {
	out := make(StringList, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	list, err := NormalizeList(raw)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

// Value stores the list as a JSON array.
func (l StringList) Value() (driver.Value, error) {
	b, err := l.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads either a JSON array or a legacy delimited string.
func (l *StringList) Scan(value any) error {
	var text []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		text = v
	case string:
		text = []byte(v)
	default:
		return fmt.Errorf("string list: unsupported Scan type %T", value)
	}

	trimmed := bytes.TrimSpace(text)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '"') {
		return l.UnmarshalJSON(trimmed)
	}
	*l = SplitList(string(trimmed))
	return nil
}
