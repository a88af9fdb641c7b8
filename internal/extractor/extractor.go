// Package extractor pulls numeric fields out of JSON response bodies so the
// driver can report them as ad-hoc realtime metrics.
package extractor

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// Extract returns the numeric value at a gjson path, supporting the $.field
// and bare $ syntaxes. The second return is false when the path does not
// resolve or the value is not numeric.
func Extract(body []byte, path string) (float64, bool) {
	if len(path) > 0 && path[0] == '$' {
		if len(path) > 1 && path[1] == '.' {
			path = path[2:]
		} else if len(path) == 1 {
			// Bare "$" means entire JSON - use @this in gjson
			path = "@this"
		}
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return 0, false
	}
	switch result.Type {
	case gjson.Number, gjson.True, gjson.False:
		return result.Float(), true
	case gjson.String:
		// Numeric strings are accepted; anything else is not a metric.
		f, err := strconv.ParseFloat(result.String(), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
