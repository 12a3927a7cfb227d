package llm

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrNoJSONObject = errors.New("response contains no JSON object")

// ExtractJSONObject returns the substring from the first '{' to the last '}', dropping
// any conversational text or code fences around it.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return s[start : end+1], nil
}
