// Package tui fills any quote-request form from a terminal by driving a
// wizard session through a PromptDriver.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/state"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

const (
	navNext = "Next"
	navBack = "Back"
)

type groupAction int

const (
	groupDone groupAction = iota
	groupAdd
	groupRemove
)

// Renderer walks a wizard step by step. It keeps no state of its own; every
// answer goes straight into the wizard's store.
type Renderer struct {
	driver PromptDriver
	theme  Theme
	logger *zap.Logger
}

// New constructs a TUI renderer with defaults (survey driver, default
// theme).
func New(options ...Option) *Renderer {
	r := &Renderer{
		theme:  DefaultTheme,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	return r
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// Run prompts every visible field of the active step, then asks the wizard
// to advance, until the form is submitted. Blocked steps are prompted again
// with their errors shown; failed submissions can be retried without
// re-entering data.
func (r *Renderer) Run(ctx context.Context, w *wizard.Wizard) (wizard.Outcome, error) {
	if ctx == nil {
		return wizard.Outcome{}, errors.New("tui: context is required")
	}
	if w == nil {
		return wizard.Outcome{}, errors.New("tui: wizard is required")
	}
	form := w.Form()
	if form.Title != "" {
		if err := r.info(ctx, form.Title); err != nil {
			return wizard.Outcome{}, err
		}
	}

	retry := false
	for {
		if err := ctx.Err(); err != nil {
			return wizard.Outcome{}, err
		}
		if !retry {
			if err := r.promptStep(ctx, w); err != nil {
				return wizard.Outcome{}, err
			}
			if w.CurrentStep() > 0 {
				back, err := r.askBack(ctx)
				if err != nil {
					return wizard.Outcome{}, err
				}
				if back {
					if err := w.RequestRetreat(); err != nil {
						return wizard.Outcome{}, err
					}
					continue
				}
			}
		}
		retry = false

		out := w.RequestAdvance(ctx)
		r.logger.Debug("advance requested", zap.String("form", form.ID), zap.Stringer("outcome", out.Kind), zap.Int("step", out.Step))
		switch out.Kind {
		case wizard.Advanced:
			continue
		case wizard.Blocked:
			if err := r.reportErrors(ctx, out.Errors); err != nil {
				return out, err
			}
		case wizard.Submitted:
			return out, r.info(ctx, out.Confirmation)
		case wizard.SubmitFailed:
			if err := r.error(ctx, out.Message); err != nil {
				return out, err
			}
			again, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Try submitting again?", Default: true})
			if err != nil {
				return out, err
			}
			if !again {
				return out, ErrGaveUp
			}
			retry = true
		case wizard.SubmitPending:
			return out, wizard.ErrSubmitting
		}
	}
}

func (r *Renderer) promptStep(ctx context.Context, w *wizard.Wizard) error {
	step := w.Step()
	title := step.Title
	if title == "" {
		title = step.ID
	}
	header := fmt.Sprintf("%s Step %d of %d: %s", r.theme.StepPrefix, w.CurrentStep()+1, w.Form().StepCount(), title)
	if err := r.info(ctx, strings.TrimSpace(header)); err != nil {
		return err
	}
	if step.Description != "" {
		if err := r.info(ctx, step.Description); err != nil {
			return err
		}
	}

	form := w.Form()
	for _, key := range step.Fields {
		// Earlier answers on this step can reveal or hide later keys.
		if !w.Visible().Has(key) {
			continue
		}
		if group, ok := form.Group(key); ok {
			if err := r.promptGroup(ctx, w, group); err != nil {
				return err
			}
			continue
		}
		field, ok := form.Field(key)
		if !ok {
			continue
		}
		if err := r.promptField(ctx, w, field, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) askBack(ctx context.Context) (bool, error) {
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      "Continue?",
		Options:      []string{navNext, navBack},
		DefaultIndex: 0,
	})
	if err != nil {
		return false, err
	}
	return idx == 1, nil
}

func (r *Renderer) promptGroup(ctx context.Context, w *wizard.Wizard, group model.Group) error {
	label := group.Label
	if label == "" {
		label = group.Name
	}
	noun := group.ItemLabel
	if noun == "" {
		noun = "item"
	}

	for idx := 0; idx < w.Store().Len(group.Name); idx++ {
		if err := r.promptItem(ctx, w, group, label, noun, idx); err != nil {
			return err
		}
	}

	for {
		size := w.Store().Len(group.Name)
		options := []string{"Continue"}
		actions := []groupAction{groupDone}
		if group.Max == 0 || size < group.Max {
			verb := "Add another"
			if size == 0 {
				verb = "Add a"
			}
			options = append(options, fmt.Sprintf("%s %s", verb, strings.ToLower(noun)))
			actions = append(actions, groupAdd)
		}
		if size > 0 {
			options = append(options, fmt.Sprintf("Remove a %s", strings.ToLower(noun)))
			actions = append(actions, groupRemove)
		}

		choice, err := r.driver.Select(ctx, SelectConfig{Message: label + ":", Options: options})
		if err != nil {
			return err
		}
		if choice < 0 || choice >= len(actions) {
			return fmt.Errorf("tui: invalid choice %d for %s", choice, group.Name)
		}

		switch actions[choice] {
		case groupDone:
			return nil
		case groupAdd:
			idx, err := w.AppendItem(group.Name)
			if err != nil {
				if err := r.error(ctx, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := r.promptItem(ctx, w, group, label, noun, idx); err != nil {
				return err
			}
		case groupRemove:
			if err := r.removeItem(ctx, w, group, noun, size); err != nil {
				return err
			}
		}
	}
}

// removeItem asks which item to drop and explains a refusal at the group's
// minimum instead of failing the session.
func (r *Renderer) removeItem(ctx context.Context, w *wizard.Wizard, group model.Group, noun string, size int) error {
	idx := 0
	if size > 1 {
		options := make([]string, size)
		for i := range options {
			options[i] = fmt.Sprintf("%s %d", noun, i+1)
		}
		choice, err := r.driver.Select(ctx, SelectConfig{Message: fmt.Sprintf("Remove which %s?", strings.ToLower(noun)), Options: options})
		if err != nil {
			return err
		}
		if choice < 0 || choice >= size {
			return fmt.Errorf("tui: invalid item %d for %s", choice, group.Name)
		}
		idx = choice
	}

	err := w.RemoveItem(group.Name, idx)
	var cardinality *state.CardinalityError
	switch {
	case err == nil:
		r.logger.Debug("group item removed", zap.String("group", group.Name), zap.Int("index", idx))
		return nil
	case errors.As(err, &cardinality) && errors.Is(err, state.ErrMinimumCardinality):
		return r.error(ctx, fmt.Sprintf("Cannot remove: at least %d %s required.", cardinality.Limit, plural(strings.ToLower(noun), cardinality.Limit)))
	default:
		return r.error(ctx, err.Error())
	}
}

func plural(noun string, n int) string {
	if n == 1 || strings.HasSuffix(noun, "s") {
		return noun
	}
	return noun + "s"
}

func (r *Renderer) promptItem(ctx context.Context, w *wizard.Wizard, group model.Group, label, noun string, idx int) error {
	if err := r.info(ctx, fmt.Sprintf("%s: %s %d", label, noun, idx+1)); err != nil {
		return err
	}
	for _, field := range group.Fields {
		path := model.ItemPath(group.Name, idx, field.Key)
		if !w.Visible().Has(path) {
			continue
		}
		if err := r.promptField(ctx, w, field, path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) promptField(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	if len(field.Fields) > 0 {
		for _, child := range field.Fields {
			childPath := model.JoinPath(path, child.Key)
			if !w.Visible().Has(childPath) {
				continue
			}
			if err := r.promptField(ctx, w, child, childPath); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		var err error
		switch field.Type {
		case model.FieldTypeSynthetic:
			return nil
		case model.FieldTypeBoolean:
			err = r.promptBoolean(ctx, w, field, path)
		case model.FieldTypeEnum:
			err = r.promptEnum(ctx, w, field, path)
		case model.FieldTypeMulti:
			err = r.promptMulti(ctx, w, field, path)
		case model.FieldTypeNumber:
			err = r.promptNumber(ctx, w, field, path)
		case model.FieldTypeFile:
			err = r.promptFile(ctx, w, field, path)
		default:
			err = r.promptString(ctx, w, field, path)
		}
		if err != nil {
			return err
		}
		msg := w.ValidateField(path)
		if msg == "" {
			return nil
		}
		if err := r.error(ctx, fmt.Sprintf("%s: %s", displayLabel(field), msg)); err != nil {
			return err
		}
	}
}

func (r *Renderer) promptString(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	label := r.label(w, field, path)
	current := stringValue(w, path)

	var (
		response string
		err      error
	)
	if field.Hints["input"] == "textarea" {
		response, err = r.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: current, Help: field.Help})
	} else {
		response, err = r.driver.Input(ctx, InputConfig{Message: label, Default: current, Help: field.Help})
	}
	if err != nil {
		return err
	}
	return w.SetValue(path, strings.TrimSpace(response))
}

func (r *Renderer) promptNumber(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	response, err := r.driver.Input(ctx, InputConfig{Message: r.label(w, field, path), Default: stringValue(w, path), Help: field.Help})
	if err != nil {
		return err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return w.SetValue(path, nil)
	}
	if n, ok := model.ToNumber(response); ok {
		return w.SetValue(path, n)
	}
	// Unparsable input is stored as typed; validation reports it.
	return w.SetValue(path, response)
}

func (r *Renderer) promptBoolean(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	current, _ := w.GetValue(path)
	resp, err := r.driver.Confirm(ctx, ConfirmConfig{Message: r.label(w, field, path), Default: model.Truthy(current), Help: field.Help})
	if err != nil {
		return err
	}
	return w.SetValue(path, resp)
}

func (r *Renderer) promptEnum(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	options := optionLabels(field.Options)
	current := stringValue(w, path)
	defaultIdx := 0
	for i, opt := range field.Options {
		if opt.Value == current {
			defaultIdx = i
		}
	}
	idx, err := r.driver.Select(ctx, SelectConfig{Message: r.label(w, field, path), Options: options, DefaultIndex: defaultIdx, Help: field.Help})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(field.Options) {
		return w.SetValue(path, nil)
	}
	return w.SetValue(path, field.Options[idx].Value)
}

func (r *Renderer) promptMulti(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	selected := make(map[string]struct{})
	if current, ok := w.GetValue(path); ok {
		for _, v := range toStrings(current) {
			selected[v] = struct{}{}
		}
	}
	var defaults []int
	for i, opt := range field.Options {
		if _, ok := selected[opt.Value]; ok {
			defaults = append(defaults, i)
		}
	}
	indices, err := r.driver.MultiSelect(ctx, SelectConfig{Message: r.label(w, field, path), Options: optionLabels(field.Options), Defaults: defaults, Help: field.Help})
	if err != nil {
		return err
	}
	values := make([]any, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(field.Options) {
			values = append(values, field.Options[idx].Value)
		}
	}
	return w.SetValue(path, values)
}

func (r *Renderer) promptFile(ctx context.Context, w *wizard.Wizard, field model.Field, path string) error {
	help := field.Help
	if r.theme.SkipFileLabel != "" {
		help = strings.TrimSpace(help + " (" + r.theme.SkipFileLabel + ")")
	}
	response, err := r.driver.Input(ctx, InputConfig{Message: r.label(w, field, path), Help: help})
	if err != nil {
		return err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return w.SetValue(path, nil)
	}
	return w.SetValue(path, model.FileRef{Name: filepath.Base(response), Path: response})
}

func (r *Renderer) reportErrors(ctx context.Context, errs map[string]string) error {
	paths := make([]string, 0, len(errs))
	for path := range errs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := r.error(ctx, fmt.Sprintf("%s: %s", path, errs[path])); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) label(w *wizard.Wizard, field model.Field, path string) string {
	label := displayLabel(field)
	if w.Required(path) {
		label += r.theme.RequiredMark
	}
	return label
}

func (r *Renderer) info(ctx context.Context, msg string) error {
	if strings.TrimSpace(msg) == "" {
		return nil
	}
	return r.driver.Info(ctx, strings.TrimSpace(r.theme.InfoPrefix+" "+msg))
}

func (r *Renderer) error(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, strings.TrimSpace(r.theme.ErrorPrefix+" "+msg))
}

func displayLabel(field model.Field) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Key
}

func optionLabels(options []model.Option) []string {
	out := make([]string, len(options))
	for i, opt := range options {
		out[i] = opt.Label
		if out[i] == "" {
			out[i] = opt.Value
		}
	}
	return out
}

func stringValue(w *wizard.Wizard, path string) string {
	v, ok := w.GetValue(path)
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func toStrings(value any) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, v := range typed {
			out = append(out, fmt.Sprint(v))
		}
		return out
	default:
		return nil
	}
}
