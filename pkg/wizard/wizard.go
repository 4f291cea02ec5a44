// Package wizard drives one session of a quote-request form: it gates forward
// navigation on step validation, allows backward navigation, and submits the
// assembled payload from the final step at most once per request.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/confirmation"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/payload"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/state"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

var (
	ErrNoDefinition = errors.New("wizard: definition is required")
	ErrNoSubmitter  = errors.New("wizard: no submitter configured")
	ErrFirstStep    = errors.New("wizard: already at the first step")
	ErrSubmitting   = errors.New("wizard: submission in flight")
)

// Submitter delivers a payload to the sink. *submission.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, p *payload.Payload) (*submission.Result, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, p *payload.Payload) (*submission.Result, error)

// Submit calls fn.
func (fn SubmitterFunc) Submit(ctx context.Context, p *payload.Payload) (*submission.Result, error) {
	return fn(ctx, p)
}

// Option customises a Wizard.
type Option func(*Wizard)

// WithSubmitter sets the sink client used from the final step.
func WithSubmitter(s Submitter) Option {
	return func(w *Wizard) {
		w.submitter = s
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Wizard) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithListener registers listeners notified of navigation and submission
// events.
func WithListener(listeners ...Listener) Option {
	return func(w *Wizard) {
		for _, l := range listeners {
			if l != nil {
				w.listeners = append(w.listeners, l)
			}
		}
	}
}

// WithExtras exposes host context (landing channel, campaign) to
// expressions under the extras. prefix.
func WithExtras(extras map[string]any) Option {
	return func(w *Wizard) {
		for k, v := range extras {
			if w.extras == nil {
				w.extras = make(map[string]any, len(extras))
			}
			w.extras[k] = v
		}
	}
}

// WithPayloadOptions forwards options to the payload assembler.
func WithPayloadOptions(opts ...payload.Option) Option {
	return func(w *Wizard) {
		w.payloadOpts = append(w.payloadOpts, opts...)
	}
}

// WithConfirmation replaces the renderer built from the form's confirmation
// template.
func WithConfirmation(r *confirmation.Renderer) Option {
	return func(w *Wizard) {
		w.confirm = r
	}
}

// Wizard is one form session. Navigation calls are serialised; the store
// may be edited at any time.
type Wizard struct {
	def         *schema.Definition
	store       *state.Store
	assembler   *payload.Assembler
	submitter   Submitter
	confirm     *confirmation.Renderer
	logger      *zap.Logger
	listeners   []Listener
	extras      map[string]any
	payloadOpts []payload.Option

	mu      sync.Mutex
	phase   Phase
	pending bool
	last    *submission.Result
}

// New starts a session for def with defaults seeded and the first step
// active.
func New(def *schema.Definition, opts ...Option) (*Wizard, error) {
	if def == nil || def.Resolver == nil || def.Validator == nil {
		return nil, ErrNoDefinition
	}
	w := &Wizard{
		def:    def,
		store:  state.New(def.Form),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.assembler = payload.New(def.Form, def.Resolver, w.payloadOpts...)
	if w.confirm == nil {
		r, err := confirmation.New(def.Form.Confirmation)
		if err != nil {
			return nil, fmt.Errorf("wizard: form %s: %w", def.Form.ID, err)
		}
		w.confirm = r
	}
	w.logger = w.logger.With(zap.String("form", def.Form.ID))
	return w, nil
}

// Definition returns the compiled form.
func (w *Wizard) Definition() *schema.Definition { return w.def }

// Form returns the form schema.
func (w *Wizard) Form() model.Form { return w.def.Form }

// Store exposes the form state.
func (w *Wizard) Store() *state.Store { return w.store }

// Phase returns the navigator phase.
func (w *Wizard) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Pending reports whether a submission is in flight.
func (w *Wizard) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// LastResult returns the result of the most recent successful submission.
func (w *Wizard) LastResult() *submission.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// CurrentStep returns the zero-based step index.
func (w *Wizard) CurrentStep() int { return w.store.CurrentStep() }

// Step returns the active step definition.
func (w *Wizard) Step() model.Step { return w.def.Form.Steps[w.store.CurrentStep()] }

// IsLastStep reports whether advancing will submit.
func (w *Wizard) IsLastStep() bool {
	return w.store.CurrentStep() == w.def.Form.StepCount()-1
}

// SetValue writes a value. Content is never rejected here.
func (w *Wizard) SetValue(path string, value any) error {
	return w.store.SetValue(path, value)
}

// GetValue reads a value or its default.
func (w *Wizard) GetValue(path string) (any, bool) {
	return w.store.GetValue(path)
}

// AppendItem adds a default record to a repeating group.
func (w *Wizard) AppendItem(group string) (int, error) {
	return w.store.AppendItem(group, nil)
}

// RemoveItem removes a record from a repeating group.
func (w *Wizard) RemoveItem(group string, index int) error {
	return w.store.RemoveItem(group, index)
}

// Context returns the evaluation context of the current values.
func (w *Wizard) Context() visibility.Context {
	return visibility.Context{Values: w.store.Snapshot(), Extras: w.extras}
}

// Visible returns the currently visible field paths.
func (w *Wizard) Visible() visibility.Set {
	return w.def.Resolver.Resolve(w.Context())
}

// StepKeys lists the active step's keys that are currently visible, in
// render order.
func (w *Wizard) StepKeys() []string {
	visible := w.Visible()
	step := w.Step()
	out := make([]string, 0, len(step.Fields))
	for _, key := range step.Fields {
		if visible.Has(key) {
			out = append(out, key)
		}
	}
	return out
}

// Required reports whether the field at path must be answered now.
func (w *Wizard) Required(path string) bool {
	ctx := w.Context()
	if !w.def.Resolver.Resolve(ctx).Has(path) {
		return false
	}
	return w.def.Resolver.Required(path, ctx)
}

// ValidateField checks one field against the current values and returns its
// message, or "" when it passes or is hidden. It does not touch the store's
// errors.
func (w *Wizard) ValidateField(path string) string {
	if issue := w.def.Validator.Field(path, w.Context(), nil); issue != nil {
		return issue.Message
	}
	return ""
}

// RequestAdvance validates the active step. On success it moves forward or,
// from the last step, submits. While a submission is in flight every call
// returns SubmitPending without side effects.
func (w *Wizard) RequestAdvance(ctx context.Context) Outcome {
	w.mu.Lock()
	if w.pending {
		step := w.store.CurrentStep()
		w.mu.Unlock()
		w.logger.Debug("advance ignored while submitting", zap.Int("step", step))
		return Outcome{Kind: SubmitPending, Step: step}
	}

	step := w.store.CurrentStep()
	events := w.enter(nil, PhaseValidating, step)
	values := w.store.Snapshot()
	result := w.def.Validator.ValidateStep(w.def.Form.Steps[step], visibility.Context{Values: values, Extras: w.extras})

	if !result.Valid {
		errs := result.Errors()
		w.store.SetErrors(errs)
		events = w.enter(events, PhaseBlocked, step)
		events = append(events, Event{Kind: EventBlocked, Step: step, Errors: errs})
		events = w.enter(events, PhaseIdle, step)
		w.mu.Unlock()
		w.logger.Debug("step blocked", zap.Int("step", step), zap.Int("errors", len(errs)))
		w.emit(events)
		return Outcome{Kind: Blocked, Step: step, Errors: errs}
	}

	w.store.ClearErrors()
	events = w.enter(events, PhaseAdvancing, step)
	if step+1 < w.def.Form.StepCount() {
		if err := w.store.MoveTo(step + 1); err != nil {
			events = w.enter(events, PhaseIdle, step)
			w.mu.Unlock()
			w.emit(events)
			return Outcome{Kind: Blocked, Step: step, Err: err}
		}
		events = append(events, Event{Kind: EventStepChanged, Step: step + 1})
		events = w.enter(events, PhaseIdle, step+1)
		w.mu.Unlock()
		w.logger.Debug("step advanced", zap.Int("step", step+1))
		w.emit(events)
		return Outcome{Kind: Advanced, Step: step + 1}
	}

	p := w.assembler.Assemble(values, w.extras)
	w.pending = true
	events = append(events, Event{Kind: EventSubmitting, Step: step})
	w.mu.Unlock()
	w.emit(events)
	return w.submit(ctx, step, p)
}

func (w *Wizard) submit(ctx context.Context, step int, p *payload.Payload) Outcome {
	var (
		res *submission.Result
		err error
	)
	if w.submitter == nil {
		err = ErrNoSubmitter
	} else {
		res, err = w.submitter.Submit(ctx, p)
	}

	w.mu.Lock()
	w.pending = false
	if err != nil {
		msg := submission.UserMessage(err)
		events := []Event{{Kind: EventSubmitFailed, Step: step, Message: msg, Err: err}}
		events = w.enter(events, PhaseIdle, step)
		w.mu.Unlock()
		w.logger.Warn("submission failed", zap.Error(err))
		w.emit(events)
		return Outcome{Kind: SubmitFailed, Step: step, Message: msg, Err: err}
	}

	text := w.render(res)
	w.last = res
	w.store.Reset()
	events := []Event{{Kind: EventSubmitted, Step: 0, Result: res, Message: text}}
	events = w.enter(events, PhaseIdle, 0)
	w.mu.Unlock()
	w.logger.Info("submission accepted", zap.String("reference", res.Reference()))
	w.emit(events)
	return Outcome{Kind: Submitted, Step: 0, Result: res, Confirmation: text}
}

// RequestRetreat moves one step back without touching values or errors.
func (w *Wizard) RequestRetreat() error {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return ErrSubmitting
	}
	step := w.store.CurrentStep()
	if step == 0 {
		w.mu.Unlock()
		return ErrFirstStep
	}
	if err := w.store.MoveTo(step - 1); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	w.emit([]Event{{Kind: EventStepChanged, Step: step - 1}})
	return nil
}

// StartOver discards every answer and returns to the first step, as the
// "submit another" action does.
func (w *Wizard) StartOver() error {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return ErrSubmitting
	}
	w.store.Reset()
	w.last = nil
	w.phase = PhaseIdle
	w.mu.Unlock()
	w.emit([]Event{{Kind: EventReset, Step: 0}})
	return nil
}

func (w *Wizard) render(res *submission.Result) string {
	text, err := w.confirm.Render(confirmation.Data{
		Form:      w.def.Form.ID,
		Title:     w.def.Form.Title,
		Name:      res.Name,
		Email:     res.Email,
		Reference: res.Reference(),
		ID:        res.ID,
		Status:    res.Status,
	})
	if err != nil {
		w.logger.Warn("confirmation render failed", zap.Error(err))
		return ""
	}
	return text
}

// enter records a phase transition. Callers hold w.mu.
func (w *Wizard) enter(events []Event, phase Phase, step int) []Event {
	w.phase = phase
	return append(events, Event{Kind: EventPhaseChanged, Phase: phase, Step: step})
}

func (w *Wizard) emit(events []Event) {
	if len(w.listeners) == 0 {
		return
	}
	for _, ev := range events {
		ev.Form = w.def.Form.ID
		for _, l := range w.listeners {
			l(ev)
		}
	}
}
