// Package plan reads task lists and execution plan documents.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskbatch/internal/schedule"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat indicates an unsupported document format.
var ErrUnknownFormat = errors.New("unknown document format")

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// FormatFromPath picks a format from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// taskFields are the fields a task record may carry at either level.
type taskFields struct {
	ID                   flexID      `yaml:"id" json:"id" toml:"id"`
	Name                 string      `yaml:"name" json:"name" toml:"name"`
	Context              string      `yaml:"context" json:"context" toml:"context"`
	Dependencies         *depsBlock  `yaml:"dependencies" json:"dependencies" toml:"dependencies"`
	RequiresCompletionOf []depRecord `yaml:"requires_completion_of" json:"requires_completion_of" toml:"requires_completion_of"`
}

type depsBlock struct {
	RequiresCompletionOf []depRecord `yaml:"requires_completion_of" json:"requires_completion_of" toml:"requires_completion_of"`
}

// taskRecord accepts both the nested form
//
//	task: {id, name, context}
//	dependencies: {requires_completion_of: [...]}
//
// and a flat record with the same keys at the top level.
type taskRecord struct {
	Task       *taskFields `yaml:"task" json:"task" toml:"task"`
	taskFields `yaml:",inline"`
}

func (f *taskFields) deps() []depRecord {
	if f == nil {
		return nil
	}
	deps := f.RequiresCompletionOf
	if f.Dependencies != nil {
		deps = append(deps, f.Dependencies.RequiresCompletionOf...)
	}
	return deps
}

func (r taskRecord) toTask() models.Task {
	body := r.taskFields
	deps := r.taskFields.deps()
	if r.Task != nil {
		body = *r.Task
		deps = append(r.Task.deps(), deps...)
	}

	t := models.Task{
		ID:      body.ID.taskID(),
		Name:    strings.TrimSpace(body.Name),
		Context: strings.TrimSpace(body.Context),
	}
	for _, d := range deps {
		t.Dependencies = append(t.Dependencies, d.dependency())
	}
	return t
}

type taskList struct {
	Tasks []taskRecord `yaml:"tasks" json:"tasks" toml:"tasks"`
}

// ParseTasks decodes a task list. YAML input may hold one record per
// document, a sequence of records, or a mapping with a tasks key. JSON input
// may be an array or an object with a tasks key. TOML input uses [[tasks]].
// Records without an ID are rejected.
func ParseTasks(data []byte, format Format) ([]models.Task, error) {
	var records []taskRecord
	var err error

	switch format {
	case FormatYAML, "":
		records, err = parseYAMLTasks(data)
	case FormatJSON:
		records, err = parseJSONTasks(data)
	case FormatTOML:
		var list taskList
		if _, err = toml.Decode(string(data), &list); err != nil {
			err = fmt.Errorf("decode toml tasks: %w", err)
		}
		records = list.Tasks
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(records))
	for i, r := range records {
		t := r.toTask()
		if t.ID == "" {
			return nil, fmt.Errorf("task record %d: %w", i+1, schedule.ErrMissingID)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func parseYAMLTasks(data []byte) ([]taskRecord, error) {
	text := string(data)
	if strings.Contains(text, "```") {
		text = ExtractYAML(text)
	}

	var records []taskRecord
	dec := yaml.NewDecoder(strings.NewReader(text))
	for doc := 1; ; doc++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml document %d: %w", doc, err)
		}

		root := &node
		if root.Kind == yaml.DocumentNode {
			if len(root.Content) == 0 {
				continue
			}
			root = root.Content[0]
		}

		switch root.Kind {
		case yaml.SequenceNode:
			var list []taskRecord
			if err := root.Decode(&list); err != nil {
				return nil, fmt.Errorf("decode yaml document %d: %w", doc, err)
			}
			records = append(records, list...)
		case yaml.MappingNode:
			if hasKey(root, "tasks") {
				var list taskList
				if err := root.Decode(&list); err != nil {
					return nil, fmt.Errorf("decode yaml document %d: %w", doc, err)
				}
				records = append(records, list.Tasks...)
				continue
			}
			var r taskRecord
			if err := root.Decode(&r); err != nil {
				return nil, fmt.Errorf("decode yaml document %d: %w", doc, err)
			}
			records = append(records, r)
		case yaml.ScalarNode:
			if root.ShortTag() == "!!null" {
				continue
			}
			return nil, fmt.Errorf("yaml document %d: expected a task record, got %q", doc, root.Value)
		default:
			return nil, fmt.Errorf("yaml document %d: expected a task record", doc)
		}
	}
	return records, nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func parseJSONTasks(data []byte) ([]taskRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []taskRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode json tasks: %w", err)
		}
		return records, nil
	}
	var list taskList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("decode json tasks: %w", err)
	}
	return list.Tasks, nil
}

// LoadTasks reads a task file, choosing the format from its extension.
func LoadTasks(path string) ([]models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	tasks, err := ParseTasks(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

// MarshalTasks renders tasks as multi-document YAML in the nested record
// form, one document per task.
func MarshalTasks(tasks []models.Task) ([]byte, error) {
	type taskOut struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Context string `yaml:"context,omitempty"`
	}
	type depsOut struct {
		RequiresCompletionOf []models.Dependency `yaml:"requires_completion_of"`
	}
	type recordOut struct {
		Task         taskOut  `yaml:"task"`
		Dependencies *depsOut `yaml:"dependencies,omitempty"`
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, t := range tasks {
		r := recordOut{Task: taskOut{ID: string(t.ID), Name: t.Name, Context: t.Context}}
		if t.HasDependencies() {
			r.Dependencies = &depsOut{RequiresCompletionOf: t.Dependencies}
		}
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
