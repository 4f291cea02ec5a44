package model

import (
	"strconv"
	"strings"
)

// FieldType is the enum of answerable question kinds.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeNumber    FieldType = "number"
	FieldTypeDate      FieldType = "date"
	FieldTypeEmail     FieldType = "email"
	FieldTypePhone     FieldType = "phone"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeMulti     FieldType = "multi"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeFile      FieldType = "file"
	FieldTypeObject    FieldType = "object"
	FieldTypeSynthetic FieldType = "synthetic"
)

// Valid reports whether the type is one of the known field kinds.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeEmail,
		FieldTypePhone, FieldTypeEnum, FieldTypeMulti, FieldTypeBoolean,
		FieldTypeFile, FieldTypeObject, FieldTypeSynthetic:
		return true
	default:
		return false
	}
}

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
	ValidationRuleEnum      = "enum"
	ValidationRuleSum       = "sum"
)

// ValidationRule represents a single validation constraint applied to a field.
// Numeric bounds and length limits encode their threshold in Params["value"],
// pattern rules keep the expression in Params["pattern"] and an optional
// Params["message"]. Sum rules list comma separated paths in Params["fields"]
// and the expected total in Params["equals"].
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Option is a selectable value for enum and multi fields.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Field models one answerable question. Key is a dotted path that uniquely
// addresses the value in form state; children of object fields and group
// items are addressed relative to their parent.
type Field struct {
	Key          string            `json:"key" yaml:"key"`
	Type         FieldType         `json:"type" yaml:"type"`
	Label        string            `json:"label,omitempty" yaml:"label,omitempty"`
	Help         string            `json:"help,omitempty" yaml:"help,omitempty"`
	Required     bool              `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredWhen string            `json:"requiredWhen,omitempty" yaml:"requiredWhen,omitempty"`
	VisibleWhen  string            `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	Default      any               `json:"default,omitempty" yaml:"default,omitempty"`
	Options      []Option          `json:"options,omitempty" yaml:"options,omitempty"`
	Fields       []Field           `json:"fields,omitempty" yaml:"fields,omitempty"`
	Validations  []ValidationRule  `json:"validations,omitempty" yaml:"validations,omitempty"`
	PayloadKey   string            `json:"payloadKey,omitempty" yaml:"payloadKey,omitempty"`
	Sanitize     bool              `json:"sanitize,omitempty" yaml:"sanitize,omitempty"`
	Hints        map[string]string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Group describes a repeating list of structurally identical records such as
// a vehicle schedule. Max of zero means unbounded.
type Group struct {
	Name        string            `json:"name" yaml:"name"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty"`
	ItemLabel   string            `json:"itemLabel,omitempty" yaml:"itemLabel,omitempty"`
	Min         int               `json:"min,omitempty" yaml:"min,omitempty"`
	Max         int               `json:"max,omitempty" yaml:"max,omitempty"`
	Initial     int               `json:"initial,omitempty" yaml:"initial,omitempty"`
	VisibleWhen string            `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	Fields      []Field           `json:"fields" yaml:"fields"`
	Hints       map[string]string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Step is one page of the wizard. Fields lists field keys and group names in
// render order; RequiredForAdvance is the subset validated before leaving
// the step.
type Step struct {
	ID                 string   `json:"id" yaml:"id"`
	Title              string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
	Fields             []string `json:"fields" yaml:"fields"`
	RequiredForAdvance []string `json:"requiredForAdvance,omitempty" yaml:"requiredForAdvance,omitempty"`
}

// PayloadMode selects how the assembler shapes the submission body.
type PayloadMode string

const (
	// PayloadPassthrough forwards the nested values under "payload" next to a
	// handful of promoted summary keys.
	PayloadPassthrough PayloadMode = "passthrough"
	// PayloadFlattened promotes every field to a top-level key.
	PayloadFlattened PayloadMode = "flattened"
)

const (
	SummaryCount       = "count"
	SummaryCountTruthy = "countTruthy"
	SummarySum         = "sum"
)

// Summary declares a derived value computed once at assembly time.
type Summary struct {
	Key    string `json:"key" yaml:"key"`
	Kind   string `json:"kind" yaml:"kind"`
	Source string `json:"source" yaml:"source"`
}

// PayloadConfig captures the submission sink contract for a form.
type PayloadConfig struct {
	Mode          PayloadMode       `json:"mode,omitempty" yaml:"mode,omitempty"`
	Promote       map[string]string `json:"promote,omitempty" yaml:"promote,omitempty"`
	Summaries     []Summary         `json:"summaries,omitempty" yaml:"summaries,omitempty"`
	IncludeHidden bool              `json:"includeHidden,omitempty" yaml:"includeHidden,omitempty"`
}

// Form is the complete schema of one quote-request wizard.
type Form struct {
	ID           string            `json:"id" yaml:"id"`
	Title        string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Fields       []Field           `json:"fields" yaml:"fields"`
	Groups       []Group           `json:"groups,omitempty" yaml:"groups,omitempty"`
	Steps        []Step            `json:"steps" yaml:"steps"`
	Payload      PayloadConfig     `json:"payload,omitempty" yaml:"payload,omitempty"`
	Confirmation string            `json:"confirmation,omitempty" yaml:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// FileRef is the value stored for file fields. Only the presence and name of
// the attachment matter to the engine; Path lets the submission client stream
// the content.
type FileRef struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// StepCount returns the number of steps.
func (f Form) StepCount() int {
	return len(f.Steps)
}

// Group returns the repeating group with the supplied name.
func (f Form) Group(name string) (Group, bool) {
	for _, group := range f.Groups {
		if group.Name == name {
			return group, true
		}
	}
	return Group{}, false
}

// Field resolves a top-level or nested field definition by dotted key. Group
// item paths ("vehicles.2.vin") resolve to the item field definition.
func (f Form) Field(key string) (Field, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Field{}, false
	}
	if field, ok := findField(f.Fields, "", key); ok {
		return field, true
	}
	segments := strings.Split(key, ".")
	if len(segments) >= 3 {
		if group, ok := f.Group(segments[0]); ok {
			return findField(group.Fields, "", strings.Join(segments[2:], "."))
		}
	}
	return Field{}, false
}

func findField(fields []Field, prefix, key string) (Field, bool) {
	for _, field := range fields {
		full := JoinPath(prefix, field.Key)
		if full == key {
			return field, true
		}
		if len(field.Fields) > 0 && strings.HasPrefix(key, full+".") {
			if nested, ok := findField(field.Fields, full, key); ok {
				return nested, true
			}
		}
	}
	return Field{}, false
}

// JoinPath joins dotted path segments, skipping empty ones.
func JoinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ".")
}

// ItemPath returns the dotted path of a field inside a group item.
func ItemPath(group string, index int, key string) string {
	return JoinPath(group, strconv.Itoa(index), key)
}
