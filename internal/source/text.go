package source

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMissingTenant is returned when a parent directory does not follow <account>_<tenant>.
var ErrMissingTenant = errors.New("parent directory has no tenant token")

// StripFooter truncates text at the earliest occurrence of any marker, marker
// excluded. Text without a marker is returned unchanged.
func StripFooter(text string, markers []string) string {
	cut := -1
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.Index(text, m); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return text
	}
	return text[:cut]
}

// TenantFromDir returns the second "_"-separated token of a directory name.
func TenantFromDir(dir string) (string, error) {
	tokens := strings.Split(dir, "_")
	if len(tokens) < 2 || strings.TrimSpace(tokens[1]) == "" {
		return "", errors.Wrapf(ErrMissingTenant, "directory %q", dir)
	}
	return tokens[1], nil
}

// WithHeader prepends the file name and tenant lines the prompt relies on.
func WithHeader(fileName, tenantLabel, tenantID, body string) string {
	return fmt.Sprintf("File name: %s\n%s: %s\n", fileName, tenantLabel, tenantID) + body
}
