package task_mgmt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// MetaFileName is the sidecar that can override derived identifiers.
const MetaFileName = "meta.json"

// OverrideState distinguishes a missing sidecar from a broken one.
type OverrideState int

const (
	OverrideAbsent OverrideState = iota
	OverrideValid
	OverrideMalformed
)

func (s OverrideState) String() string {
	switch s {
	case OverrideValid:
		return "valid"
	case OverrideMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// Override is the parsed form of a metadata sidecar. Only a valid override
// carries values; a malformed one carries the reason in Err.
type Override struct {
	State      OverrideState
	Path       string
	CategoryID string
	TaskID     TaskID
	Err        error
}

// HasTaskID reports whether the override sets a task id.
func (o Override) HasTaskID() bool {
	return o.State == OverrideValid && !o.TaskID.IsZero()
}

// Apply returns category and id with any valid override values substituted.
func (o Override) Apply(category string, id TaskID) (string, TaskID) {
	if o.State != OverrideValid {
		return category, id
	}
	if o.CategoryID != "" {
		category = o.CategoryID
	}
	if !o.TaskID.IsZero() {
		id = o.TaskID
	}
	return category, id
}

// ReadOverride loads the sidecar at path. A missing file is OverrideAbsent;
// unreadable content, invalid JSON or keys of the wrong type are
// OverrideMalformed. Unknown keys are ignored.
func ReadOverride(path string) Override {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Override{State: OverrideAbsent, Path: path}
	}
	if err != nil {
		return malformed(path, err)
	}
	return ParseOverride(path, data)
}

// ParseOverride decodes sidecar content; path is only used for reporting.
func ParseOverride(path string, data []byte) Override {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return malformed(path, fmt.Errorf("decode: %w", err))
	}

	out := Override{State: OverrideValid, Path: path}
	if msg, ok := raw["category_id"]; ok {
		var category string
		if err := json.Unmarshal(msg, &category); err != nil {
			return malformed(path, fmt.Errorf("category_id must be a string"))
		}
		if strings.TrimSpace(category) == "" {
			return malformed(path, fmt.Errorf("category_id must not be empty"))
		}
		out.CategoryID = category
	}
	if msg, ok := raw["task_id"]; ok {
		var id TaskID
		if err := json.Unmarshal(msg, &id); err != nil {
			return malformed(path, err)
		}
		out.TaskID = id
	}
	return out
}

func malformed(path string, err error) Override {
	return Override{State: OverrideMalformed, Path: path, Err: err}
}

// layer returns base with every value set in top taking precedence. A
// malformed or absent top leaves base untouched.
func layer(base, top Override) Override {
	if top.State != OverrideValid {
		return base
	}
	if base.State != OverrideValid {
		return top
	}
	merged := base
	merged.Path = top.Path
	if top.CategoryID != "" {
		merged.CategoryID = top.CategoryID
	}
	if !top.TaskID.IsZero() {
		merged.TaskID = top.TaskID
	}
	return merged
}
