package results

import (
	"fmt"
	"strings"
)

// sanitizeSegment rejects values that cannot be used as a single directory
// name below the store root.
func sanitizeSegment(kind, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s cannot be empty", kind)
	}
	if value == "." || value == ".." {
		return "", fmt.Errorf("%s cannot be a current or parent directory reference", kind)
	}
	if strings.ContainsAny(value, `/\`) {
		return "", fmt.Errorf("%s must not contain path separators", kind)
	}
	return value, nil
}

// fileNameFor maps a task slug onto a file name. Overrides may put separators
// into category or task ids, so they are replaced rather than rejected.
func fileNameFor(slug string) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(slug)
	if name == "" || name == "." || name == ".." || name == summaryName {
		name = "_" + name
	}
	return name + ".json"
}
