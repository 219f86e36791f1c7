package core

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Classification is the first registry signature that matched a tool call.
type Classification struct {
	Level          RiskLevel `json:"level"`
	Label          string    `json:"label"`
	Reason         string    `json:"reason"`
	MatchedPattern string    `json:"matched_pattern"`
}

// commandArgKeys are the argument names that hold the command line of
// shell-style tools, in lookup order.
var commandArgKeys = []string{"command", "cmd", "script"}

const maxRenderDepth = 16

// Classify matches a tool call against the registry in declared order and
// returns the first hit. A nil result means no signature matched, which is
// not the same as safe.
func Classify(toolName string, args map[string]any) *Classification {
	text := BuildSearchText(toolName, args)
	if text == "" {
		return nil
	}
	for _, s := range registry {
		if s.Pattern.MatchString(text) {
			return &Classification{
				Level:          s.Level,
				Label:          s.Label,
				Reason:         s.Reason,
				MatchedPattern: s.Source,
			}
		}
	}
	return nil
}

// IsPrivilegeEscalation reports whether the call matches one of the
// registry's privilege-escalation signatures.
func IsPrivilegeEscalation(toolName string, args map[string]any) bool {
	text := BuildSearchText(toolName, args)
	if text == "" {
		return false
	}
	for _, s := range escalationSignatures {
		if s.Pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// BuildSearchText renders the tool name followed by every argument value,
// space separated. Keys are visited in sorted order so the result is stable.
// Strings are used verbatim, slices are space-joined, maps and structs are
// JSON encoded, nil values are skipped.
func BuildSearchText(toolName string, args map[string]any) string {
	parts := make([]string, 0, len(args)+1)
	if name := strings.TrimSpace(toolName); name != "" {
		parts = append(parts, name)
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if rendered := renderValue(args[k], 0); rendered != "" {
			parts = append(parts, rendered)
		}
	}
	return strings.Join(parts, " ")
}

// CommandText returns the text matched against the denylist and shown to
// approvers. Shell-style tools contribute their command line; every other
// tool is matched on its full search text.
func CommandText(toolName string, args map[string]any) string {
	if command, ok := commandArg(args); ok {
		return command
	}
	return BuildSearchText(toolName, args)
}

// AllowlistText returns the command line the allowlist is matched against.
// It is empty for tools without a command argument, which the allowlist
// never approves.
func AllowlistText(args map[string]any) string {
	command, _ := commandArg(args)
	return command
}

func commandArg(args map[string]any) (string, bool) {
	for _, key := range commandArgKeys {
		if s, ok := args[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func renderValue(v any, depth int) string {
	if v == nil || depth > maxRenderDepth {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case []string:
		return strings.Join(val, " ")
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s := renderValue(rv.Index(i).Interface(), depth+1); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case reflect.Map, reflect.Struct:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return renderValue(rv.Elem().Interface(), depth+1)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
