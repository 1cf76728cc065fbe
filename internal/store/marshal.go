package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// marshalStrings converts a string list to JSON TEXT for storage.
// A nil list is stored as "[]".
func marshalStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // paths and class names stay readable
	if err := enc.Encode(list); err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalStrings parses JSON TEXT back into a string list.
func unmarshalStrings(data string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return list, nil
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
