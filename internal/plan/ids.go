package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// flexID accepts task identifiers written as integers or strings.
type flexID string

func (f flexID) taskID() models.TaskID {
	return models.TaskID(strings.TrimSpace(string(f)))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *flexID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: task id must be a scalar", value.Line)
	}
	switch value.ShortTag() {
	case "!!null":
		*f = ""
		return nil
	case "!!int":
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("line %d: task id: %w", value.Line, err)
		}
		*f = flexID(strconv.FormatInt(n, 10))
		return nil
	case "!!float":
		var x float64
		if err := value.Decode(&x); err != nil {
			return fmt.Errorf("line %d: task id: %w", value.Line, err)
		}
		id, err := scalarID(x)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*f = flexID(id)
		return nil
	}
	*f = flexID(value.Value)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id must be a number or string: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexID(strconv.FormatInt(i, 10))
		return nil
	}
	x, err := n.Float64()
	if err != nil {
		return fmt.Errorf("task id %s: %w", n, err)
	}
	id, err := scalarID(x)
	if err != nil {
		return err
	}
	*f = flexID(id)
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (f *flexID) UnmarshalTOML(v interface{}) error {
	id, err := scalarID(v)
	if err != nil {
		return err
	}
	*f = flexID(id)
	return nil
}

func scalarID(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("task id %v is not an integer", x)
		}
		return strconv.FormatInt(int64(x), 10), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported task id type %T", v)
	}
}

// depRecord is one entry of requires_completion_of. A bare ID is accepted
// in place of the {task_id, reason} mapping.
type depRecord struct {
	TaskID flexID `yaml:"task_id" json:"task_id" toml:"task_id"`
	Reason string `yaml:"reason" json:"reason" toml:"reason"`
}

type depRecordFields depRecord

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *depRecord) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return d.TaskID.UnmarshalYAML(value)
	}
	return value.Decode((*depRecordFields)(d))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *depRecord) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, (*depRecordFields)(d))
	}
	return d.TaskID.UnmarshalJSON(trimmed)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *depRecord) UnmarshalTOML(v interface{}) error {
	m, ok := v.(map[string]interface{})
	if !ok {
		return d.TaskID.UnmarshalTOML(v)
	}
	id, err := scalarID(m["task_id"])
	if err != nil {
		return err
	}
	d.TaskID = flexID(id)
	if r, ok := m["reason"].(string); ok {
		d.Reason = r
	}
	return nil
}

func (d depRecord) dependency() models.Dependency {
	return models.Dependency{TaskID: d.TaskID.taskID(), Reason: d.Reason}
}
