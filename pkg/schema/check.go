package schema

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/confirmation"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Normalize fills the implicit defaults of a decoded form: text fields,
// pass-through payloads and trimmed keys.
func Normalize(form model.Form) model.Form {
	form.ID = strings.TrimSpace(form.ID)
	form.Fields = normalizeFields(form.Fields)
	form.Groups = append([]model.Group(nil), form.Groups...)
	form.Steps = append([]model.Step(nil), form.Steps...)
	for i := range form.Groups {
		form.Groups[i].Name = strings.TrimSpace(form.Groups[i].Name)
		form.Groups[i].Fields = normalizeFields(form.Groups[i].Fields)
	}
	for i := range form.Steps {
		form.Steps[i].ID = strings.TrimSpace(form.Steps[i].ID)
	}
	if form.Payload.Mode == "" {
		form.Payload.Mode = model.PayloadPassthrough
	}
	return form
}

func normalizeFields(in []model.Field) []model.Field {
	if in == nil {
		return nil
	}
	fields := append([]model.Field(nil), in...)
	for i := range fields {
		fields[i].Key = strings.TrimSpace(fields[i].Key)
		if fields[i].Type == "" {
			if len(fields[i].Fields) > 0 {
				fields[i].Type = model.FieldTypeObject
			} else {
				fields[i].Type = model.FieldTypeText
			}
		}
		fields[i].Fields = normalizeFields(fields[i].Fields)
	}
	return fields
}

// Check reports every structural authoring defect of form. Expression and
// cycle checks need the resolver and run in Compile.
func Check(form model.Form, src string) error {
	is := &issues{formID: form.ID, source: src}

	if form.ID == "" {
		is.add("id is required")
	}
	if strings.TrimSpace(form.Endpoint) == "" {
		is.add("endpoint is required")
	}

	keys := make(map[string]struct{})
	checkFields(is, form, form.Fields, "", keys)

	groups := make(map[string]struct{}, len(form.Groups))
	for _, group := range form.Groups {
		switch {
		case group.Name == "":
			is.add("group name is required")
			continue
		case strings.Contains(group.Name, "."):
			is.add("group %q: name must not contain dots", group.Name)
		}
		if _, dup := keys[group.Name]; dup {
			is.add("group %q collides with a field key", group.Name)
		}
		if _, dup := groups[group.Name]; dup {
			is.add("duplicate group %q", group.Name)
		}
		groups[group.Name] = struct{}{}

		if group.Min < 0 || group.Max < 0 || group.Initial < 0 {
			is.add("group %q: cardinality must not be negative", group.Name)
		}
		if group.Max > 0 && group.Min > group.Max {
			is.add("group %q: min %d exceeds max %d", group.Name, group.Min, group.Max)
		}
		if group.Max > 0 && group.Initial > group.Max {
			is.add("group %q: initial %d exceeds max %d", group.Name, group.Initial, group.Max)
		}
		if group.Initial > 0 && group.Initial < group.Min {
			is.add("group %q: initial %d is below min %d", group.Name, group.Initial, group.Min)
		}
		if len(group.Fields) == 0 {
			is.add("group %q has no fields", group.Name)
		}
		checkFields(is, form, group.Fields, "", make(map[string]struct{}))
	}

	checkSteps(is, form, keys, groups)
	checkPayload(is, form)
	if err := confirmation.Check(form.Confirmation); err != nil {
		is.wrap(err, "confirmation template")
	}
	return is.err()
}

func checkFields(is *issues, form model.Form, fields []model.Field, prefix string, keys map[string]struct{}) {
	for _, field := range fields {
		if field.Key == "" {
			is.add("field under %q has an empty key", prefix)
			continue
		}
		path := model.JoinPath(prefix, field.Key)
		if strings.Contains(field.Key, "*") || hasNumericSegment(field.Key) {
			is.add("field %q: keys must not contain wildcards or numeric segments", path)
		}
		if _, dup := keys[path]; dup {
			is.add("duplicate field key %q", path)
		}
		keys[path] = struct{}{}

		if !field.Type.Valid() {
			is.add("field %q: unknown type %q", path, field.Type)
		}
		if (field.Type == model.FieldTypeEnum || field.Type == model.FieldTypeMulti) && len(field.Options) == 0 {
			is.add("field %q: %s field has no options", path, field.Type)
		}
		if field.Type == model.FieldTypeObject && len(field.Fields) == 0 {
			is.add("field %q: object field has no children", path)
		}
		if field.Type == model.FieldTypeSynthetic && len(field.Validations) == 0 {
			is.add("field %q: synthetic field carries no validator", path)
		}
		rules, err := validation.Compile(field)
		if err != nil {
			is.wrap(err, "field %q", path)
		}
		for _, ref := range rules.SumFields() {
			if _, ok := form.Field(ref); !ok {
				is.add("field %q: sum references unknown field %q", path, ref)
			}
		}
		checkFields(is, form, field.Fields, path, keys)
	}
}

func hasNumericSegment(key string) bool {
	for _, segment := range strings.Split(key, ".") {
		if _, err := strconv.Atoi(segment); err == nil {
			return true
		}
	}
	return false
}

func checkSteps(is *issues, form model.Form, keys, groups map[string]struct{}) {
	if len(form.Steps) == 0 {
		is.add("form has no steps")
		return
	}

	known := func(key string) bool {
		if _, ok := keys[key]; ok {
			return true
		}
		_, ok := groups[key]
		return ok
	}

	placed := make(map[string]struct{})
	ids := make(map[string]struct{}, len(form.Steps))
	for i, step := range form.Steps {
		label := step.ID
		if label == "" {
			label = strconv.Itoa(i)
		} else if _, dup := ids[step.ID]; dup {
			is.add("duplicate step id %q", step.ID)
		}
		ids[step.ID] = struct{}{}

		if len(step.Fields) == 0 {
			is.add("step %q has no fields", label)
		}
		listed := make(map[string]struct{}, len(step.Fields))
		for _, key := range step.Fields {
			if !known(key) {
				is.add("step %q references unknown key %q", label, key)
				continue
			}
			listed[key] = struct{}{}
			placed[key] = struct{}{}
		}
		for _, key := range step.RequiredForAdvance {
			if !known(key) {
				is.add("step %q requiredForAdvance references unknown key %q", label, key)
				continue
			}
			if !listedOrNested(key, listed) {
				is.add("step %q requiredForAdvance key %q is not rendered by the step", label, key)
			}
		}
	}

	for _, field := range form.Fields {
		if !placedOrNested(field.Key, placed) {
			is.add("field %q is not placed on any step", field.Key)
		}
	}
	for _, group := range form.Groups {
		if _, ok := placed[group.Name]; !ok {
			is.add("group %q is not placed on any step", group.Name)
		}
	}
}

// listedOrNested accepts a key rendered by the step directly or through an
// enclosing object field.
func listedOrNested(key string, listed map[string]struct{}) bool {
	for k := key; k != ""; k = parentKey(k) {
		if _, ok := listed[k]; ok {
			return true
		}
	}
	return false
}

// placedOrNested accepts an object field whose children are placed
// individually.
func placedOrNested(key string, placed map[string]struct{}) bool {
	if _, ok := placed[key]; ok {
		return true
	}
	for k := range placed {
		if strings.HasPrefix(k, key+".") {
			return true
		}
	}
	return false
}

func parentKey(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return ""
	}
	return key[:idx]
}

func checkPayload(is *issues, form model.Form) {
	switch form.Payload.Mode {
	case model.PayloadPassthrough, model.PayloadFlattened:
	default:
		is.add("unknown payload mode %q", form.Payload.Mode)
	}

	for target, path := range form.Payload.Promote {
		if strings.TrimSpace(target) == "" {
			is.add("payload promote entry for %q has an empty target key", path)
		}
		if _, ok := form.Field(path); !ok {
			is.add("payload promote %q references unknown field %q", target, path)
		}
	}

	seen := make(map[string]struct{}, len(form.Payload.Summaries))
	for _, summary := range form.Payload.Summaries {
		if summary.Key == "" {
			is.add("payload summary with source %q has no key", summary.Source)
		}
		if _, dup := seen[summary.Key]; dup {
			is.add("duplicate payload summary %q", summary.Key)
		}
		seen[summary.Key] = struct{}{}

		switch summary.Kind {
		case model.SummaryCount, model.SummaryCountTruthy, model.SummarySum:
		default:
			is.add("payload summary %q: unknown kind %q", summary.Key, summary.Kind)
		}
		if !summarySourceKnown(form, summary.Source) {
			is.add("payload summary %q references unknown source %q", summary.Key, summary.Source)
		}
	}

	roles := make(map[string]string)
	for _, file := range fileFields(form) {
		role := file.role
		if other, dup := roles[role]; dup {
			is.add("file fields %q and %q share the attachment role %q", other, file.path, role)
		}
		roles[role] = file.path
	}
}

func summarySourceKnown(form model.Form, src string) bool {
	if _, ok := form.Group(src); ok {
		return true
	}
	if _, ok := form.Field(src); ok {
		return true
	}
	group, rest, ok := strings.Cut(src, ".*.")
	if !ok {
		return false
	}
	if _, ok := form.Group(group); !ok {
		return false
	}
	_, ok = form.Field(model.ItemPath(group, 0, rest))
	return ok
}

type fileField struct {
	path string
	role string
}

func fileFields(form model.Form) []fileField {
	var out []fileField
	var walk func(prefix string, fields []model.Field)
	walk = func(prefix string, fields []model.Field) {
		for _, field := range fields {
			path := model.JoinPath(prefix, field.Key)
			if field.Type == model.FieldTypeFile {
				role := field.PayloadKey
				if role == "" {
					role = field.Key
				}
				out = append(out, fileField{path: path, role: role})
			}
			walk(path, field.Fields)
		}
	}
	walk("", form.Fields)

	// Group items send one part per item; the role is recorded with a *
	// standing in for the index.
	for _, group := range form.Groups {
		var walkItem func(prefix string, fields []model.Field)
		walkItem = func(prefix string, fields []model.Field) {
			for _, field := range fields {
				rel := model.JoinPath(prefix, field.Key)
				if field.Type == model.FieldTypeFile {
					role := model.JoinPath(group.Name, "*", rel)
					if field.PayloadKey != "" {
						role = model.JoinPath(field.PayloadKey, "*")
					}
					out = append(out, fileField{path: model.JoinPath(group.Name, "*", rel), role: role})
				}
				walkItem(rel, field.Fields)
			}
		}
		walkItem("", group.Fields)
	}
	return out
}
