package task_mgmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Organization selects how a service lays its tasks out on disk.
type Organization string

const (
	// OrganizationFile: tasks are <stem>_verify.<ext> files next to a matching
	// instruction file inside the category directory.
	OrganizationFile Organization = "file"
	// OrganizationDirectory: every task is its own subdirectory holding one
	// instruction file and one verify.<ext>.
	OrganizationDirectory Organization = "directory"
)

// TaskID identifies a task within its category. It is either an integer
// (directory names following the prefix_number convention) or a raw string.
type TaskID struct {
	num     int
	str     string
	numeric bool
}

// IntID returns a numeric task id.
func IntID(n int) TaskID { return TaskID{num: n, numeric: true} }

// StringID returns a string task id.
func StringID(s string) TaskID { return TaskID{str: s} }

// IsNumeric reports whether the id is an integer.
func (id TaskID) IsNumeric() bool { return id.numeric }

// Int returns the integer value and whether the id is numeric.
func (id TaskID) Int() (int, bool) { return id.num, id.numeric }

// IsZero reports whether the id was never set.
func (id TaskID) IsZero() bool { return !id.numeric && id.str == "" }

func (id TaskID) String() string {
	if id.numeric {
		return strconv.Itoa(id.num)
	}
	return id.str
}

// Less orders numeric ids numerically ahead of string ids, which sort lexically.
func (id TaskID) Less(other TaskID) bool {
	switch {
	case id.numeric && other.numeric:
		return id.num < other.num
	case id.numeric != other.numeric:
		return id.numeric
	default:
		return id.str < other.str
	}
}

// MarshalJSON emits a JSON number for numeric ids and a string otherwise.
func (id TaskID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(strconv.Itoa(id.num)), nil
	}
	return json.Marshal(id.str)
}

// UnmarshalJSON accepts an integer or a non-empty string.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("task_id must not be empty")
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("task_id must be an integer or a string, got %s", data)
	}
	*id = IntID(n)
	return nil
}

var numericSuffix = regexp.MustCompile(`^(.+)_([0-9]+)$`)

// ParseTaskDirName derives a task id from a task directory name. Names of the
// form prefix_number (number after the last underscore, non-empty prefix)
// yield the number; leading zeros are dropped. Everything else, including
// values that overflow int, keeps the raw name.
func ParseTaskDirName(name string) TaskID {
	m := numericSuffix.FindStringSubmatch(name)
	if m == nil {
		return StringID(name)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return StringID(name)
	}
	return IntID(n)
}

// ParseTaskID inverts TaskID.String: a canonical non-negative decimal becomes
// a numeric id, anything else a string id.
func ParseTaskID(s string) TaskID {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && strconv.Itoa(n) == s {
		return IntID(n)
	}
	return StringID(s)
}

// Task is the canonical, immutable descriptor of one evaluable unit. It only
// records locations; the referenced files are read on demand.
type Task struct {
	InstructionPath  string `json:"instruction_path"`
	VerificationPath string `json:"verification_path"`
	Service          string `json:"service"`
	Category         string `json:"category"`
	ID               TaskID `json:"task_id"`
	// Name is the on-disk stem or directory name the id was derived from.
	Name string `json:"name"`

	Endpoint      string `json:"endpoint,omitempty"`
	CredentialRef string `json:"credential_ref,omitempty"`
	WorkDir       string `json:"work_dir,omitempty"`
}

// Key returns "category/task_id", the form accepted by task filters.
func (t Task) Key() string {
	return t.Category + "/" + t.ID.String()
}

// Slug returns "category__task_id", safe for use as a file name.
func (t Task) Slug() string {
	return t.Category + "__" + t.ID.String()
}

// ReadInstruction returns the instruction file verbatim.
func (t Task) ReadInstruction() (string, error) {
	data, err := os.ReadFile(t.InstructionPath)
	if err != nil {
		return "", fmt.Errorf("read instruction for %s: %w", t.Key(), err)
	}
	return string(data), nil
}

// FileInfo is what discovery hands a backend for one task: the located file
// pair, the derived identity and any override metadata found alongside.
type FileInfo struct {
	Name             string
	ID               TaskID
	InstructionPath  string
	VerificationPath string
	Override         Override
}
