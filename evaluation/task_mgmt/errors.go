package task_mgmt

import "fmt"

// DiscoveryError aborts a discovery pass. It is only raised for structural
// problems with the task tree root itself.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("task tree root %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// MalformedTaskWarning records a per-task anomaly found during discovery: a
// task skipped for missing or ambiguous files, a rejected record, or an
// override sidecar that could not be used. Discovery continues past it.
type MalformedTaskWarning struct {
	Service  string `json:"service"`
	Category string `json:"category"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

func (w MalformedTaskWarning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("%s/%s: %s (%s): %v", w.Service, w.Category, w.Reason, w.Path, w.Err)
	}
	return fmt.Sprintf("%s/%s: %s (%s)", w.Service, w.Category, w.Reason, w.Path)
}

func (w MalformedTaskWarning) Unwrap() error {
	return w.Err
}
