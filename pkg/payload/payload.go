// Package payload turns a terminal form state into the body expected by the
// submission sink.
package payload

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

// PassthroughKey holds the nested form values in pass-through mode.
const PassthroughKey = "payload"

// Attachment is a file to send as a multipart part named after Role.
type Attachment struct {
	Role  string
	Field string
	Name  string
	Path  string
}

// Payload is the read-only submission body built from one snapshot.
type Payload struct {
	Form        string
	Endpoint    string
	Body        map[string]any
	Attachments []Attachment
	Name        string
	Email       string
}

// HasAttachments reports whether the payload needs multipart encoding.
func (p *Payload) HasAttachments() bool {
	return p != nil && len(p.Attachments) > 0
}

// Assembler builds payloads for one form.
type Assembler struct {
	form     model.Form
	resolver *visibility.Resolver
	policy   *bluemonday.Policy
}

// Option customises an Assembler.
type Option func(*Assembler)

// WithPolicy replaces the sanitising policy applied to free-text fields
// flagged with sanitize.
func WithPolicy(policy *bluemonday.Policy) Option {
	return func(a *Assembler) {
		if policy != nil {
			a.policy = policy
		}
	}
}

// New constructs an Assembler. Free text is stripped of all markup by
// default.
func New(form model.Form, resolver *visibility.Resolver, opts ...Option) *Assembler {
	a := &Assembler{
		form:     form,
		resolver: resolver,
		policy:   bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Assemble builds a payload from values without mutating them. Summary
// values are computed here, once.
func (a *Assembler) Assemble(values map[string]any, extras map[string]any) *Payload {
	visible := a.resolver.Resolve(visibility.Context{Values: values, Extras: extras})
	p := &Payload{
		Form:     a.form.ID,
		Endpoint: a.form.Endpoint,
		Body:     make(map[string]any),
	}

	switch a.form.Payload.Mode {
	case model.PayloadFlattened:
		a.flatten(p, values, visible)
	default:
		if a.form.Payload.IncludeHidden {
			p.Body[PassthroughKey] = a.copyAll(values)
		} else {
			p.Body[PassthroughKey] = a.copyVisible(values, visible)
		}
	}

	for target, path := range a.form.Payload.Promote {
		if !visible.Has(path) {
			continue
		}
		value, ok := model.Lookup(values, path)
		if !ok {
			continue
		}
		field, _ := a.form.Field(path)
		p.Body[target] = a.scalar(field, value)
	}

	for _, summary := range a.form.Payload.Summaries {
		p.Body[summary.Key] = summarize(summary, values)
	}

	a.collectAttachments(p, "", a.form.Fields, values, visible)
	a.collectGroupAttachments(p, values, visible)
	p.Name = a.contact(p.Body, values, "name")
	p.Email = a.contact(p.Body, values, "email")
	return p
}

func (a *Assembler) contact(body map[string]any, values map[string]any, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	for _, path := range []string{key, model.JoinPath("contact", key)} {
		if v, ok := model.Lookup(values, path); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func (a *Assembler) copyVisible(values map[string]any, visible visibility.Set) map[string]any {
	out := make(map[string]any)
	a.copyFields(out, "", a.form.Fields, values, visible, false)
	a.copyGroups(out, values, visible, false)
	return out
}

func (a *Assembler) flatten(p *Payload, values map[string]any, visible visibility.Set) {
	a.copyFields(p.Body, "", a.form.Fields, values, visible, true)
	a.copyGroups(p.Body, values, visible, true)
}

// copyFields copies visible values. Nested mode keeps objects as maps;
// flat mode promotes every leaf to out under its payloadKey or dotted path.
func (a *Assembler) copyFields(out map[string]any, prefix string, fields []model.Field, values map[string]any, visible visibility.Set, flat bool) {
	for _, field := range fields {
		path := model.JoinPath(prefix, field.Key)
		if field.Type == model.FieldTypeSynthetic || !visible.Has(path) {
			continue
		}
		if len(field.Fields) > 0 {
			if flat {
				a.copyFields(out, path, field.Fields, values, visible, true)
				continue
			}
			child := make(map[string]any)
			a.copyFields(child, path, field.Fields, values, visible, false)
			if len(child) > 0 {
				out[field.Key] = child
			}
			continue
		}
		value, ok := model.Lookup(values, path)
		if !ok {
			continue
		}
		name := field.Key
		if flat {
			name = path
			if field.PayloadKey != "" {
				name = field.PayloadKey
			}
		}
		out[name] = a.scalar(field, value)
	}
}

// copyGroups keeps repeating groups as lists of records in both modes.
func (a *Assembler) copyGroups(out map[string]any, values map[string]any, visible visibility.Set, flat bool) {
	for _, group := range a.form.Groups {
		if !visible.Has(group.Name) {
			continue
		}
		raw, ok := model.Lookup(values, group.Name)
		if !ok {
			continue
		}
		list, _ := raw.([]any)
		items := make([]any, 0, len(list))
		for i := range list {
			item := make(map[string]any)
			a.copyItemFields(item, model.JoinPath(group.Name, strconv.Itoa(i)), "", group.Fields, values, visible, flat)
			items = append(items, item)
		}
		out[group.Name] = items
	}
}

func (a *Assembler) copyItemFields(out map[string]any, itemPath, prefix string, fields []model.Field, values map[string]any, visible visibility.Set, flat bool) {
	for _, field := range fields {
		rel := model.JoinPath(prefix, field.Key)
		path := model.JoinPath(itemPath, rel)
		if field.Type == model.FieldTypeSynthetic || !visible.Has(path) {
			continue
		}
		if len(field.Fields) > 0 {
			child := make(map[string]any)
			a.copyItemFields(child, itemPath, rel, field.Fields, values, visible, flat)
			if len(child) > 0 {
				out[field.Key] = child
			}
			continue
		}
		value, ok := model.Lookup(values, path)
		if !ok {
			continue
		}
		name := field.Key
		if flat && field.PayloadKey != "" {
			name = field.PayloadKey
		}
		out[name] = a.scalar(field, value)
	}
}

// copyAll forwards every value, hidden ones included, converting files and
// sanitising flagged text.
func (a *Assembler) copyAll(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = a.copyValue(k, v)
	}
	return out
}

func (a *Assembler) copyValue(path string, value any) any {
	if field, ok := a.form.Field(path); ok && len(field.Fields) == 0 {
		return a.scalar(field, value)
	}
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = a.copyValue(model.JoinPath(path, k), v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = a.copyValue(model.JoinPath(path, strconv.Itoa(i)), v)
		}
		return out
	default:
		return value
	}
}

// scalar converts one stored value into its wire form.
func (a *Assembler) scalar(field model.Field, value any) any {
	switch field.Type {
	case model.FieldTypeFile:
		if ref, ok := fileRef(value); ok {
			return ref.Name
		}
		return value
	case model.FieldTypeMulti:
		if list, ok := value.([]string); ok {
			out := make([]any, len(list))
			for i, v := range list {
				out[i] = v
			}
			return out
		}
	}
	if s, ok := value.(string); ok && field.Sanitize {
		return a.sanitize(s)
	}
	return cloneValue(value)
}

func (a *Assembler) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(a.policy.Sanitize(s)))
}

func (a *Assembler) collectAttachments(p *Payload, prefix string, fields []model.Field, values map[string]any, visible visibility.Set) {
	for _, field := range fields {
		path := model.JoinPath(prefix, field.Key)
		if !visible.Has(path) {
			continue
		}
		if len(field.Fields) > 0 {
			a.collectAttachments(p, path, field.Fields, values, visible)
			continue
		}
		if field.Type != model.FieldTypeFile {
			continue
		}
		value, ok := model.Lookup(values, path)
		if !ok {
			continue
		}
		ref, ok := fileRef(value)
		if !ok || ref.Name == "" || ref.Path == "" {
			continue
		}
		role := field.PayloadKey
		if role == "" {
			role = field.Key
		}
		p.Attachments = append(p.Attachments, Attachment{Role: role, Field: path, Name: ref.Name, Path: ref.Path})
	}
}

// collectGroupAttachments sends the file fields of repeating-group items,
// one part per item.
func (a *Assembler) collectGroupAttachments(p *Payload, values map[string]any, visible visibility.Set) {
	for _, group := range a.form.Groups {
		if !visible.Has(group.Name) {
			continue
		}
		raw, _ := model.Lookup(values, group.Name)
		list, _ := raw.([]any)
		for i := range list {
			a.collectItemAttachments(p, group.Name, i, "", group.Fields, values, visible)
		}
	}
}

func (a *Assembler) collectItemAttachments(p *Payload, group string, idx int, prefix string, fields []model.Field, values map[string]any, visible visibility.Set) {
	for _, field := range fields {
		rel := model.JoinPath(prefix, field.Key)
		path := model.ItemPath(group, idx, rel)
		if !visible.Has(path) {
			continue
		}
		if len(field.Fields) > 0 {
			a.collectItemAttachments(p, group, idx, rel, field.Fields, values, visible)
			continue
		}
		if field.Type != model.FieldTypeFile {
			continue
		}
		value, ok := model.Lookup(values, path)
		if !ok {
			continue
		}
		ref, ok := fileRef(value)
		if !ok || ref.Name == "" || ref.Path == "" {
			continue
		}
		p.Attachments = append(p.Attachments, Attachment{Role: itemRole(group, idx, field.PayloadKey, rel), Field: path, Name: ref.Name, Path: ref.Path})
	}
}

// itemRole names the part of a file inside a group item: payloadKey.<index>
// when the field declares one, the item path <group>.<index>.<key> otherwise.
func itemRole(group string, idx int, payloadKey, rel string) string {
	if payloadKey != "" {
		return model.JoinPath(payloadKey, strconv.Itoa(idx))
	}
	return model.ItemPath(group, idx, rel)
}

func fileRef(value any) (model.FileRef, bool) {
	switch v := value.(type) {
	case model.FileRef:
		return v, true
	case *model.FileRef:
		if v == nil {
			return model.FileRef{}, false
		}
		return *v, true
	case map[string]any:
		name, _ := v["name"].(string)
		path, _ := v["path"].(string)
		return model.FileRef{Name: name, Path: path}, name != ""
	case string:
		return model.FileRef{Name: v}, v != ""
	default:
		return model.FileRef{}, false
	}
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = cloneValue(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return typed
	}
}
