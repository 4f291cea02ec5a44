package visibility

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

const (
	itemScope   = "item."
	extrasScope = "extras."
	itemKey     = "item"
)

var (
	// ErrCycle marks a cyclic visibleWhen dependency graph.
	ErrCycle = errors.New("visibility: cyclic dependency")
	// ErrUnknownReference marks an expression that reads a key the form does
	// not define.
	ErrUnknownReference = errors.New("visibility: unknown reference")
)

// CycleError reports the dependency cycle found while ordering the graph.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("visibility: cyclic dependency %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// ReferenceError reports an expression identifier that does not resolve to
// a field or group.
type ReferenceError struct {
	Field     string
	Reference string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("visibility: field %q references unknown key %q", e.Field, e.Reference)
}

func (e *ReferenceError) Unwrap() error { return ErrUnknownReference }

// Set is the set of currently visible keys. Top-level and nested fields use
// their dotted key, groups their name, group item fields their concrete path
// such as "vehicles.0.vin".
type Set map[string]struct{}

// Has reports whether key is visible.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the visible keys sorted.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s))
	for key := range s {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

type nodeKind int

const (
	nodeField nodeKind = iota
	nodeGroup
	nodeItemField
)

type dependency struct {
	key string
	// index pins an item dependency to a concrete item; -1 means the same
	// item as the dependent node.
	index int
}

type node struct {
	key      string
	kind     nodeKind
	group    string
	itemKey  string
	parent   string
	static   bool
	visible  Predicate
	required Predicate
	deps     []dependency
}

// Resolver computes the visible field set for a form. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	nodes map[string]*node
	decl  []string
	order []string
}

// NewResolver compiles every visibleWhen/requiredWhen expression of form,
// resolves their references and orders the dependency graph. Unknown
// references and cycles are reported as errors; callers treat them as schema
// authoring defects.
func NewResolver(form model.Form, compile CompileFunc) (*Resolver, error) {
	if compile == nil {
		return nil, errors.New("visibility: compile func is required")
	}
	r := &Resolver{nodes: make(map[string]*node)}

	for _, field := range form.Fields {
		if err := r.addField(field, "", "", "", compile); err != nil {
			return nil, err
		}
	}
	for _, group := range form.Groups {
		n := &node{key: group.Name, kind: nodeGroup, group: group.Name}
		if err := r.compileNode(n, group.VisibleWhen, "", compile); err != nil {
			return nil, err
		}
		r.add(n)
		for _, field := range group.Fields {
			if err := r.addField(field, "", group.Name, group.Name, compile); err != nil {
				return nil, err
			}
		}
	}

	if err := r.link(); err != nil {
		return nil, err
	}
	if err := r.sort(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) add(n *node) {
	r.nodes[n.key] = n
	r.decl = append(r.decl, n.key)
}

func (r *Resolver) addField(field model.Field, prefix, group, parent string, compile CompileFunc) error {
	rel := model.JoinPath(prefix, field.Key)
	n := &node{
		itemKey: rel,
		parent:  parent,
		static:  field.Required,
	}
	if group == "" {
		n.key = rel
		n.kind = nodeField
	} else {
		n.key = model.JoinPath(group, "*", rel)
		n.kind = nodeItemField
		n.group = group
	}
	if err := r.compileNode(n, field.VisibleWhen, field.RequiredWhen, compile); err != nil {
		return err
	}
	r.add(n)
	for _, child := range field.Fields {
		if err := r.addField(child, rel, group, n.key, compile); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) compileNode(n *node, visibleWhen, requiredWhen string, compile CompileFunc) error {
	if strings.TrimSpace(visibleWhen) != "" {
		p, err := compile(visibleWhen)
		if err != nil {
			return fmt.Errorf("visibility: field %q visibleWhen: %w", n.key, err)
		}
		n.visible = p
	}
	if strings.TrimSpace(requiredWhen) != "" {
		p, err := compile(requiredWhen)
		if err != nil {
			return fmt.Errorf("visibility: field %q requiredWhen: %w", n.key, err)
		}
		n.required = p
	}
	return nil
}

func (r *Resolver) link() error {
	for _, key := range r.decl {
		n := r.nodes[key]
		if n.visible == nil {
			continue
		}
		seen := make(map[dependency]struct{})
		for _, ref := range n.visible.References() {
			dep, ok, err := r.resolveRef(n, ref)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			n.deps = append(n.deps, dep)
		}
	}
	return nil
}

// resolveRef maps an expression identifier to the node it reads. Extras are
// not part of the graph.
func (r *Resolver) resolveRef(owner *node, ref string) (dependency, bool, error) {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, extrasScope) {
		return dependency{}, false, nil
	}

	if strings.HasPrefix(ref, itemScope) {
		if owner.kind != nodeItemField {
			return dependency{}, false, &ReferenceError{Field: owner.key, Reference: ref}
		}
		if key, ok := r.longestMatch(model.JoinPath(owner.group, "*"), strings.Split(ref[len(itemScope):], ".")); ok {
			return dependency{key: key, index: -1}, true, nil
		}
		return dependency{}, false, &ReferenceError{Field: owner.key, Reference: ref}
	}

	segments := strings.Split(ref, ".")
	if g, ok := r.nodes[segments[0]]; ok && g.kind == nodeGroup {
		if len(segments) >= 3 {
			if idx, err := strconv.Atoi(segments[1]); err == nil && idx >= 0 {
				if key, ok := r.longestMatch(model.JoinPath(g.key, "*"), segments[2:]); ok {
					return dependency{key: key, index: idx}, true, nil
				}
			}
		}
		return dependency{key: g.key, index: -1}, true, nil
	}

	if key, ok := r.longestMatch("", segments); ok {
		return dependency{key: key, index: -1}, true, nil
	}
	return dependency{}, false, &ReferenceError{Field: owner.key, Reference: ref}
}

func (r *Resolver) longestMatch(prefix string, segments []string) (string, bool) {
	for i := len(segments); i > 0; i-- {
		candidate := model.JoinPath(prefix, strings.Join(segments[:i], "."))
		if n, ok := r.nodes[candidate]; ok && n.kind != nodeGroup {
			return candidate, true
		}
	}
	return "", false
}

func (r *Resolver) sort() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(r.nodes))
	var stack []string

	var visit func(key string) error
	visit = func(key string) error {
		color[key] = grey
		stack = append(stack, key)
		n := r.nodes[key]
		next := make([]string, 0, len(n.deps)+1)
		if n.parent != "" {
			next = append(next, n.parent)
		}
		for _, dep := range n.deps {
			next = append(next, dep.key)
		}
		for _, dep := range next {
			switch color[dep] {
			case grey:
				start := 0
				for i, k := range stack {
					if k == dep {
						start = i
						break
					}
				}
				path := append(append([]string(nil), stack[start:]...), dep)
				return &CycleError{Path: path}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[key] = black
		r.order = append(r.order, key)
		return nil
	}

	for _, key := range r.decl {
		if color[key] == white {
			if err := visit(key); err != nil {
				return err
			}
		}
	}
	return nil
}

// VisibleFields evaluates the schema against values. Calling it twice with
// identical values yields identical sets.
func (r *Resolver) VisibleFields(values map[string]any) Set {
	return r.Resolve(Context{Values: values})
}

// Resolve evaluates visibility with extras available to expressions. A field
// is visible when its parent and every field its predicate reads are
// visible, and the predicate itself holds.
func (r *Resolver) Resolve(ctx Context) Set {
	if r == nil {
		return Set{}
	}
	visible := make(Set, len(r.nodes))
	for _, key := range r.order {
		n := r.nodes[key]
		if n.kind != nodeItemField {
			if r.check(n, -1, ctx, visible) {
				visible[n.key] = struct{}{}
			}
			continue
		}
		items := groupItems(ctx.Values, n.group)
		for idx := range items {
			if r.check(n, idx, ctx, visible) {
				visible[r.concrete(n, idx)] = struct{}{}
			}
		}
	}
	return visible
}

func (r *Resolver) check(n *node, idx int, ctx Context, visible Set) bool {
	if n.parent != "" && !visible.Has(r.concrete(r.nodes[n.parent], idx)) {
		return false
	}
	for _, dep := range n.deps {
		target := r.nodes[dep.key]
		at := idx
		if dep.index >= 0 {
			at = dep.index
		}
		if !visible.Has(r.concrete(target, at)) {
			return false
		}
	}
	if n.visible == nil {
		return true
	}
	ok, err := n.visible.Eval(r.scoped(n, idx, ctx))
	return err == nil && ok
}

// Required reports whether the field at path is currently required: its
// requiredWhen predicate when present, its static flag otherwise. It does not
// consider visibility; callers intersect with the visible set.
func (r *Resolver) Required(path string, ctx Context) bool {
	n, idx := r.lookup(path)
	if n == nil {
		return false
	}
	if n.required == nil {
		return n.static
	}
	ok, err := n.required.Eval(r.scoped(n, idx, ctx))
	return err == nil && ok
}

// Dependencies returns the node keys read by the field's visibleWhen
// predicate, including its structural parent.
func (r *Resolver) Dependencies(key string) []string {
	n, _ := r.lookup(key)
	if n == nil {
		return nil
	}
	var out []string
	if n.parent != "" {
		out = append(out, n.parent)
	}
	for _, dep := range n.deps {
		out = append(out, dep.key)
	}
	return out
}

func (r *Resolver) lookup(path string) (*node, int) {
	if n, ok := r.nodes[path]; ok {
		return n, -1
	}
	segments := strings.Split(path, ".")
	if len(segments) < 3 {
		return nil, -1
	}
	idx, err := strconv.Atoi(segments[1])
	if err != nil {
		return nil, -1
	}
	template := model.JoinPath(segments[0], "*", strings.Join(segments[2:], "."))
	if n, ok := r.nodes[template]; ok {
		return n, idx
	}
	return nil, -1
}

func (r *Resolver) concrete(n *node, idx int) string {
	if n.kind != nodeItemField {
		return n.key
	}
	return model.ItemPath(n.group, idx, n.itemKey)
}

func (r *Resolver) scoped(n *node, idx int, ctx Context) Context {
	if n.kind != nodeItemField || idx < 0 {
		return ctx
	}
	items := groupItems(ctx.Values, n.group)
	if idx >= len(items) {
		return ctx
	}
	values := make(map[string]any, len(ctx.Values)+1)
	for k, v := range ctx.Values {
		values[k] = v
	}
	values[itemKey] = items[idx]
	return Context{Values: values, Extras: ctx.Extras}
}

func groupItems(values map[string]any, group string) []any {
	switch items := values[group].(type) {
	case []any:
		return items
	case []map[string]any:
		out := make([]any, len(items))
		for i := range items {
			out[i] = items[i]
		}
		return out
	default:
		return nil
	}
}
