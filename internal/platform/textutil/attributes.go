package textutil

import "strings"

// CleanAttributes trims product attribute maps (specifications, selected options).
// Blank keys are dropped; blank values are dropped when dropEmpty is set.
func CleanAttributes(values map[string]string, dropEmpty bool) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || (dropEmpty && value == "") {
			continue
		}
		result[key] = value
	}
	return result
}
