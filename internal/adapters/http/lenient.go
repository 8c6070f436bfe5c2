package httpadapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PabloGalante/perception-lab/internal/resultcsv"
)

// The getters below read loosely typed JSON fields. A missing or
// ill-typed value yields the zero value.

func getString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func getInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		return resultcsv.ParseInt(v)
	default:
		return 0
	}
}

func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		return resultcsv.ParseFloat(v)
	default:
		return 0
	}
}

func getBool(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return resultcsv.ParseBool(v)
	case float64:
		return v != 0
	default:
		return false
	}
}

// getBoolPtr returns nil when the field is absent or null.
func getBoolPtr(m map[string]any, key string) *bool {
	if v, ok := m[key]; !ok || v == nil {
		return nil
	}
	b := getBool(m, key)
	return &b
}

func getStrings(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return resultcsv.SplitChoices(v)
	default:
		return nil
	}
}
