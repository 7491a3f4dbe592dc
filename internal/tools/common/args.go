package common

import (
	"strings"
)

// GetRecipientFromArgs returns the "recipient" argument of a tool request,
// or "" when absent.
func GetRecipientFromArgs(args map[string]interface{}) string {
	if v, ok := args["recipient"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// GetBoolArg returns a boolean argument, or def when absent or not a bool.
func GetBoolArg(args map[string]interface{}, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

// GetIntArg returns a numeric argument as int, or def when absent. JSON
// numbers arrive as float64.
func GetIntArg(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
