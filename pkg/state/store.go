// Package state holds the mutable record of one wizard session: field values
// addressed by dotted path, the current step, per-field errors and the
// repeating groups.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Store is the single source of truth for a form session. Edits never fail on
// content; only malformed paths and cardinality violations are rejected.
type Store struct {
	mu       sync.RWMutex
	form     model.Form
	defaults map[string]any
	values   map[string]any
	dirty    map[string]struct{}
	errors   map[string]string
	step     int
}

// New creates a store seeded with the schema defaults.
func New(form model.Form) *Store {
	s := &Store{
		form:     form,
		defaults: Defaults(form),
	}
	s.resetLocked()
	return s
}

// Defaults builds the initial value tree of form: every declared default and,
// per repeating group, max(initial, min) default items.
func Defaults(form model.Form) map[string]any {
	values := make(map[string]any)
	seedFields(values, form.Fields)
	for _, group := range form.Groups {
		count := group.Initial
		if group.Min > count {
			count = group.Min
		}
		items := make([]any, 0, count)
		for i := 0; i < count; i++ {
			items = append(items, DefaultItem(group))
		}
		values[group.Name] = items
	}
	return values
}

// DefaultItem returns a structurally default record for group.
func DefaultItem(group model.Group) map[string]any {
	item := make(map[string]any)
	seedFields(item, group.Fields)
	return item
}

func seedFields(target map[string]any, fields []model.Field) {
	for _, field := range fields {
		if field.Type == model.FieldTypeObject || len(field.Fields) > 0 {
			child := make(map[string]any)
			seedFields(child, field.Fields)
			if len(child) > 0 {
				target[field.Key] = child
			}
			continue
		}
		if field.Default != nil {
			_ = setPath(target, splitKey(field.Key), deepCopy(field.Default))
		}
	}
}

func splitKey(key string) []string {
	segments, err := splitPath(key)
	if err != nil {
		return []string{key}
	}
	return segments
}

// Form returns the schema the store was built for.
func (s *Store) Form() model.Form {
	return s.form
}

// GetValue returns the value at path, falling back to the field's schema
// default when nothing has been written.
func (s *Store) GetValue(path string) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := model.LookupSegments(s.values, segments); ok {
		return deepCopy(value), true
	}
	if field, ok := s.form.Field(path); ok && field.Default != nil {
		return deepCopy(field.Default), true
	}
	return nil, false
}

// SetValue writes value at path and marks it dirty. Partially typed or
// otherwise invalid content is accepted as-is.
func (s *Store) SetValue(path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, ok := s.form.Group(path); ok {
		return fmt.Errorf("%w: %q is a repeating group; use AppendItem or RemoveItem", ErrInvalidPath, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := setPath(s.values, segments, deepCopy(value)); err != nil {
		return err
	}
	s.dirty[path] = struct{}{}
	return nil
}

// Dirty reports whether path was edited since the last reset.
func (s *Store) Dirty(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dirty[path]
	return ok
}

// DirtyPaths lists the edited paths sorted.
func (s *Store) DirtyPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.dirty))
	for path := range s.dirty {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// AppendItem appends a record to group and returns its index. A nil item
// appends the group's default record; a non-nil item is merged over it.
func (s *Store) AppendItem(groupName string, item map[string]any) (int, error) {
	group, ok := s.form.Group(groupName)
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownGroup, groupName)
	}
	record := DefaultItem(group)
	for k, v := range item {
		record[k] = deepCopy(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, _ := s.values[groupName].([]any)
	if group.Max > 0 && len(items) >= group.Max {
		return -1, &CardinalityError{Group: groupName, Size: len(items), Limit: group.Max, err: ErrMaximumCardinality}
	}
	items = append(items, record)
	s.values[groupName] = items
	s.dirty[groupName] = struct{}{}
	return len(items) - 1, nil
}

// RemoveItem removes the record at index and shifts later items down. At
// the group's minimum it returns a *CardinalityError matching
// ErrMinimumCardinality and leaves the store unchanged.
func (s *Store) RemoveItem(groupName string, index int) error {
	group, ok := s.form.Group(groupName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, groupName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, _ := s.values[groupName].([]any)
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %s.%d", ErrIndexOutOfRange, groupName, index)
	}
	if len(items) <= group.Min {
		return &CardinalityError{Group: groupName, Size: len(items), Limit: group.Min, err: ErrMinimumCardinality}
	}

	next := make([]any, 0, len(items)-1)
	next = append(next, items[:index]...)
	next = append(next, items[index+1:]...)
	s.values[groupName] = next

	dirty := make(map[string]struct{}, len(s.dirty))
	for key := range s.dirty {
		if mapped, keep := reindexKey(key, groupName, index); keep {
			dirty[mapped] = struct{}{}
		}
	}
	dirty[groupName] = struct{}{}
	s.dirty = dirty

	errs := make(map[string]string, len(s.errors))
	for key, msg := range s.errors {
		if mapped, keep := reindexKey(key, groupName, index); keep {
			errs[mapped] = msg
		}
	}
	s.errors = errs
	return nil
}

// Items returns a copy of the records in group.
func (s *Store) Items(groupName string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, _ := s.values[groupName].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		record, _ := deepCopy(item).(map[string]any)
		if record == nil {
			record = make(map[string]any)
		}
		out = append(out, record)
	}
	return out
}

// Len returns the number of records in group.
func (s *Store) Len(groupName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, _ := s.values[groupName].([]any)
	return len(items)
}

// CurrentStep returns the zero-based step index.
func (s *Store) CurrentStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// MoveTo sets the current step. The navigator is the only caller expected
// to move between steps.
func (s *Store) MoveTo(step int) error {
	if step < 0 || step >= s.form.StepCount() {
		return fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, step, s.form.StepCount())
	}
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
	return nil
}

// Errors returns a copy of the current field errors.
func (s *Store) Errors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Error returns the message recorded for path.
func (s *Store) Error(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors[path]
}

// SetErrors replaces the error map.
func (s *Store) SetErrors(errs map[string]string) {
	next := make(map[string]string, len(errs))
	for k, v := range errs {
		next[k] = v
	}
	s.mu.Lock()
	s.errors = next
	s.mu.Unlock()
}

// ClearErrors drops every recorded error.
func (s *Store) ClearErrors() {
	s.SetErrors(nil)
}

// Snapshot returns a deep copy of the value tree.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMap(s.values)
}

// Reset restores the schema defaults, clears dirty paths and errors and
// returns to the first step.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.values = cloneMap(s.defaults)
	s.dirty = make(map[string]struct{})
	s.errors = make(map[string]string)
	s.step = 0
}
