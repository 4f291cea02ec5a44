package validation

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

// Result captures the outcome of validating one step.
type Result struct {
	Valid  bool
	Issues []*FieldError
}

// Errors returns the issues keyed by field path, the shape kept in form
// state.
func (r Result) Errors() map[string]string {
	out := make(map[string]string, len(r.Issues))
	for _, issue := range r.Issues {
		if _, ok := out[issue.Path]; !ok {
			out[issue.Path] = issue.Message
		}
	}
	return out
}

// Validator checks the fields of one form. It is immutable and safe for
// concurrent use.
type Validator struct {
	form     model.Form
	resolver *visibility.Resolver
	rules    map[string]Rules
}

// New compiles the rules of every field of form, including nested object
// children and repeating group item fields.
func New(form model.Form, resolver *visibility.Resolver) (*Validator, error) {
	if resolver == nil {
		return nil, fmt.Errorf("validation: resolver is required")
	}
	v := &Validator{form: form, resolver: resolver, rules: make(map[string]Rules)}
	if err := v.compileFields("", form.Fields); err != nil {
		return nil, err
	}
	for _, group := range form.Groups {
		if err := v.compileFields(model.JoinPath(group.Name, "*"), group.Fields); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Validator) compileFields(prefix string, fields []model.Field) error {
	for _, field := range fields {
		key := model.JoinPath(prefix, field.Key)
		rules, err := Compile(field)
		if err != nil {
			return err
		}
		v.rules[key] = rules
		if err := v.compileFields(key, field.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns the compiled rules for a field path. Group item paths resolve
// to their template.
func (v *Validator) Rules(path string) (Rules, bool) {
	rules, ok := v.rules[v.form.TemplatePath(path)]
	return rules, ok
}

// Field validates the field at a concrete path. Hidden fields always pass.
func (v *Validator) Field(path string, ctx visibility.Context, visible visibility.Set) *FieldError {
	if visible == nil {
		visible = v.resolver.Resolve(ctx)
	}
	if !visible.Has(path) {
		return nil
	}
	rules, ok := v.Rules(path)
	if !ok {
		return nil
	}
	value, _ := model.Lookup(ctx.Values, path)
	return rules.Check(path, value, v.resolver.Required(path, ctx), ctx.Values)
}

// ValidateStep checks the step's requiredForAdvance keys, expanded to
// concrete field paths, intersected with the visible set. Steps without an
// explicit list validate every key they render.
func (v *Validator) ValidateStep(step model.Step, ctx visibility.Context) Result {
	visible := v.resolver.Resolve(ctx)
	result := Result{Valid: true}

	keys := step.RequiredForAdvance
	if len(keys) == 0 {
		keys = step.Fields
	}
	for _, key := range keys {
		for _, issue := range v.validateKey(key, ctx, visible) {
			result.Valid = false
			result.Issues = append(result.Issues, issue)
		}
	}
	return result
}

func (v *Validator) validateKey(key string, ctx visibility.Context, visible visibility.Set) []*FieldError {
	if group, ok := v.form.Group(key); ok {
		return v.validateGroup(group, ctx, visible)
	}
	field, ok := v.form.Field(key)
	if !ok {
		return nil
	}
	return v.validateTree(key, field, ctx, visible)
}

func (v *Validator) validateTree(path string, field model.Field, ctx visibility.Context, visible visibility.Set) []*FieldError {
	if len(field.Fields) == 0 {
		if issue := v.Field(path, ctx, visible); issue != nil {
			return []*FieldError{issue}
		}
		return nil
	}
	if !visible.Has(path) {
		return nil
	}
	var issues []*FieldError
	for _, child := range field.Fields {
		issues = append(issues, v.validateTree(model.JoinPath(path, child.Key), child, ctx, visible)...)
	}
	return issues
}

func (v *Validator) validateGroup(group model.Group, ctx visibility.Context, visible visibility.Set) []*FieldError {
	if !visible.Has(group.Name) {
		return nil
	}
	items, _ := model.Lookup(ctx.Values, group.Name)
	list, _ := items.([]any)

	var issues []*FieldError
	if group.Min > 0 && len(list) < group.Min {
		issues = append(issues, &FieldError{
			Path:    group.Name,
			Rule:    "min",
			Message: fmt.Sprintf("Add at least %d %s.", group.Min, itemNoun(group)),
		})
	}
	for i := range list {
		for _, field := range group.Fields {
			path := model.ItemPath(group.Name, i, field.Key)
			issues = append(issues, v.validateTree(path, field, ctx, visible)...)
		}
	}
	return issues
}

func itemNoun(group model.Group) string {
	if group.ItemLabel != "" {
		return group.ItemLabel
	}
	if group.Label != "" {
		return group.Label
	}
	return "items"
}

// Paths lists every compiled field path, sorted.
func (v *Validator) Paths() []string {
	out := make([]string, 0, len(v.rules))
	for key := range v.rules {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
