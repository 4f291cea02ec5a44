package wizard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/payload"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/state"
	"github.com/goliatone/go-formwizard/pkg/submission"
)

const emailPattern = `^[^@]+@[^@]+\.[^@]+$`

func mustDefinition(t *testing.T, form model.Form) *schema.Definition {
	t.Helper()
	def, err := schema.Compile(form, "test")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return def
}

func mustWizard(t *testing.T, form model.Form, opts ...Option) *Wizard {
	t.Helper()
	w, err := New(mustDefinition(t, form), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

// twoStepForm requires a pattern-checked email on step one.
func twoStepForm() model.Form {
	return model.Form{
		ID:       "quick",
		Title:    "quick quote",
		Endpoint: "/api/quotes/quick",
		Fields: []model.Field{
			{Key: "email", Type: model.FieldTypeText, Required: true, Validations: []model.ValidationRule{
				{Kind: model.ValidationRulePattern, Params: map[string]string{"pattern": emailPattern}},
			}},
			{Key: "notes", Type: model.FieldTypeText},
		},
		Steps: []model.Step{
			{ID: "contact", Fields: []string{"email"}},
			{ID: "details", Fields: []string{"notes"}},
		},
	}
}

// claimsForm hides a required description unless the applicant had claims.
func claimsForm() model.Form {
	return model.Form{
		ID:       "claims",
		Endpoint: "/api/quotes/claims",
		Fields: []model.Field{
			{Key: "name", Type: model.FieldTypeText, Required: true},
			{Key: "hasClaims", Type: model.FieldTypeEnum, Default: "no", Options: []model.Option{{Value: "yes"}, {Value: "no"}}},
			{Key: "claimsDescription", Type: model.FieldTypeText, Required: true, VisibleWhen: `hasClaims == "yes"`},
			{Key: "email", Type: model.FieldTypeEmail, Required: true},
		},
		Steps: []model.Step{
			{ID: "history", Fields: []string{"name", "hasClaims", "claimsDescription"}},
			{ID: "contact", Fields: []string{"email"}},
		},
		Confirmation: "Thanks {{ name }}, reference {{ reference }}.",
	}
}

func TestAdvanceBlockedByEmailPattern(t *testing.T) {
	t.Parallel()

	w := mustWizard(t, twoStepForm())
	ctx := context.Background()

	_ = w.SetValue("email", "not-an-email")
	out := w.RequestAdvance(ctx)
	if out.Kind != Blocked {
		t.Fatalf("expected Blocked, got %s", out.Kind)
	}
	if out.Errors["email"] == "" || w.Store().Error("email") == "" {
		t.Fatalf("expected errors.email, got %v / %v", out.Errors, w.Store().Errors())
	}
	if w.CurrentStep() != 0 || w.Phase() != PhaseIdle {
		t.Fatalf("step %d phase %s after block", w.CurrentStep(), w.Phase())
	}

	_ = w.SetValue("email", "a@b.com")
	out = w.RequestAdvance(ctx)
	if out.Kind != Advanced || out.Step != 1 || w.CurrentStep() != 1 {
		t.Fatalf("expected advance to step 1, got %+v", out)
	}
	if len(w.Store().Errors()) != 0 {
		t.Fatalf("errors not cleared: %v", w.Store().Errors())
	}
}

func TestConditionalRequiredFollowsVisibility(t *testing.T) {
	t.Parallel()

	w := mustWizard(t, claimsForm())
	ctx := context.Background()
	_ = w.SetValue("name", "Ada")

	if out := w.RequestAdvance(ctx); out.Kind != Advanced {
		t.Fatalf("hidden required field must not block, got %+v", out)
	}
	if err := w.RequestRetreat(); err != nil {
		t.Fatalf("RequestRetreat: %v", err)
	}

	_ = w.SetValue("hasClaims", "yes")
	out := w.RequestAdvance(ctx)
	if out.Kind != Blocked {
		t.Fatalf("expected Blocked once visible, got %+v", out)
	}
	if diff := cmp.Diff([]string{"claimsDescription"}, keys(out.Errors)); diff != "" {
		t.Fatalf("error keys mismatch (-want +got):\n%s", diff)
	}

	_ = w.SetValue("claimsDescription", "hail damage to one vehicle")
	if out := w.RequestAdvance(ctx); out.Kind != Advanced {
		t.Fatalf("expected advance, got %+v", out)
	}
}

// A required field whose predicate is false never blocks, whatever its value.
func TestHiddenRequiredFieldNeverBlocks(t *testing.T) {
	t.Parallel()

	for _, value := range []any{nil, "", "   ", []any{}} {
		w := mustWizard(t, claimsForm())
		_ = w.SetValue("name", "Ada")
		_ = w.SetValue("hasClaims", "no")
		_ = w.SetValue("claimsDescription", value)
		if out := w.RequestAdvance(context.Background()); out.Kind != Advanced {
			t.Fatalf("value %#v: expected Advanced, got %+v", value, out)
		}
	}
}

func TestRetreatRules(t *testing.T) {
	t.Parallel()

	w := mustWizard(t, twoStepForm())
	if err := w.RequestRetreat(); !errors.Is(err, ErrFirstStep) {
		t.Fatalf("expected ErrFirstStep, got %v", err)
	}

	_ = w.SetValue("email", "a@b.com")
	w.RequestAdvance(context.Background())
	w.Store().SetErrors(map[string]string{"notes": "kept"})

	if err := w.RequestRetreat(); err != nil {
		t.Fatalf("RequestRetreat: %v", err)
	}
	if w.CurrentStep() != 0 {
		t.Fatalf("step = %d", w.CurrentStep())
	}
	if w.Store().Error("notes") != "kept" {
		t.Fatalf("retreat must not touch errors")
	}
	if v, _ := w.GetValue("email"); v != "a@b.com" {
		t.Fatalf("retreat must not touch values, email = %v", v)
	}
}

func TestStepIndexMonotonicAndResettable(t *testing.T) {
	t.Parallel()

	form := claimsForm()
	w := mustWizard(t, form)
	ctx := context.Background()

	steps := []int{w.CurrentStep()}
	w.RequestAdvance(ctx) // blocked: name missing
	steps = append(steps, w.CurrentStep())
	_ = w.SetValue("name", "Ada")
	w.RequestAdvance(ctx)
	steps = append(steps, w.CurrentStep())
	w.RequestAdvance(ctx) // blocked: email missing
	steps = append(steps, w.CurrentStep())
	_ = w.RequestRetreat()
	steps = append(steps, w.CurrentStep())

	if diff := cmp.Diff([]int{0, 0, 1, 1, 0}, steps); diff != "" {
		t.Fatalf("step trace mismatch (-want +got):\n%s", diff)
	}

	_ = w.SetValue("hasClaims", "yes")
	if err := w.StartOver(); err != nil {
		t.Fatalf("StartOver: %v", err)
	}
	if w.CurrentStep() != 0 {
		t.Fatalf("step after reset = %d", w.CurrentStep())
	}
	if diff := cmp.Diff(state.Defaults(form), w.Store().Snapshot()); diff != "" {
		t.Fatalf("values after reset differ from defaults (-want +got):\n%s", diff)
	}
}

type blockingSubmitter struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(ctx context.Context, p *payload.Payload) (*submission.Result, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return &submission.Result{Form: p.Form, ReferenceNumber: "QR-1", Name: p.Name}, nil
}

func TestDoubleSubmitGuard(t *testing.T) {
	t.Parallel()

	form := model.Form{
		ID:       "single",
		Endpoint: "/api/quotes/single",
		Fields:   []model.Field{{Key: "name", Type: model.FieldTypeText, Required: true}},
		Steps:    []model.Step{{ID: "only", Fields: []string{"name"}}},
	}
	sub := &blockingSubmitter{started: make(chan struct{}, 1), release: make(chan struct{})}
	w := mustWizard(t, form, WithSubmitter(sub))
	_ = w.SetValue("name", "Ada")
	ctx := context.Background()

	done := make(chan Outcome, 1)
	go func() { done <- w.RequestAdvance(ctx) }()
	<-sub.started

	if !w.Pending() || w.Phase() != PhaseAdvancing {
		t.Fatalf("expected pending advancing wizard, phase %s", w.Phase())
	}
	for i := 0; i < 3; i++ {
		if out := w.RequestAdvance(ctx); out.Kind != SubmitPending {
			t.Fatalf("repeat click %d: expected SubmitPending, got %s", i, out.Kind)
		}
	}
	if err := w.StartOver(); !errors.Is(err, ErrSubmitting) {
		t.Fatalf("expected ErrSubmitting, got %v", err)
	}

	close(sub.release)
	first := <-done
	if first.Kind != Submitted || first.Result.ReferenceNumber != "QR-1" {
		t.Fatalf("expected Submitted, got %+v", first)
	}
	if n := sub.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one outbound request, got %d", n)
	}
	if w.Pending() || w.Phase() != PhaseIdle {
		t.Fatalf("wizard still pending after resolution")
	}
}

func TestFailedSubmitKeepsStateForRetry(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		healthy bool
		posts   int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		posts++
		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message": "db down"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": "q-7", "referenceNumber": "QR-2002", "status": "pending"}`)
	}))
	defer srv.Close()

	client, err := submission.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	form := claimsForm()
	w := mustWizard(t, form, WithSubmitter(client))
	ctx := context.Background()

	_ = w.SetValue("name", "Ada")
	if out := w.RequestAdvance(ctx); out.Kind != Advanced {
		t.Fatalf("expected Advanced, got %+v", out)
	}
	_ = w.SetValue("email", "ada@example.com")
	before := w.Store().Snapshot()

	out := w.RequestAdvance(ctx)
	if out.Kind != SubmitFailed || out.Message != "db down" {
		t.Fatalf("expected SubmitFailed with sink message, got %+v", out)
	}
	if !errors.Is(out.Err, submission.ErrRejected) {
		t.Fatalf("expected rejected error, got %v", out.Err)
	}
	if diff := cmp.Diff(before, w.Store().Snapshot()); diff != "" {
		t.Fatalf("values changed after failure (-before +after):\n%s", diff)
	}
	if w.CurrentStep() != 1 {
		t.Fatalf("step = %d after failure", w.CurrentStep())
	}

	mu.Lock()
	healthy = true
	mu.Unlock()

	out = w.RequestAdvance(ctx)
	if out.Kind != Submitted {
		t.Fatalf("expected Submitted on retry, got %+v", out)
	}
	if out.Result.ReferenceNumber != "QR-2002" || out.Result.Name != "Ada" {
		t.Fatalf("unexpected result %+v", out.Result)
	}
	if out.Confirmation != "Thanks Ada, reference QR-2002." {
		t.Fatalf("confirmation = %q", out.Confirmation)
	}
	if diff := cmp.Diff(state.Defaults(form), w.Store().Snapshot()); diff != "" {
		t.Fatalf("store not reset after success (-want +got):\n%s", diff)
	}
	mu.Lock()
	defer mu.Unlock()
	if w.LastResult() == nil || posts != 2 {
		t.Fatalf("last result %v, posts %d", w.LastResult(), posts)
	}
}

func TestSubmitWithoutSubmitter(t *testing.T) {
	t.Parallel()

	w := mustWizard(t, twoStepForm())
	_ = w.SetValue("email", "a@b.com")
	w.RequestAdvance(context.Background())
	out := w.RequestAdvance(context.Background())
	if out.Kind != SubmitFailed || !errors.Is(out.Err, ErrNoSubmitter) {
		t.Fatalf("expected ErrNoSubmitter, got %+v", out)
	}
	if out.Message != submission.FallbackMessage {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestListenerReceivesPhases(t *testing.T) {
	t.Parallel()

	var events []Event
	w := mustWizard(t, twoStepForm(), WithListener(func(ev Event) { events = append(events, ev) }))

	w.RequestAdvance(context.Background())
	var trace []string
	for _, ev := range events {
		if ev.Form != "quick" {
			t.Fatalf("event without form id: %+v", ev)
		}
		if ev.Kind == EventPhaseChanged {
			trace = append(trace, ev.Phase.String())
			continue
		}
		trace = append(trace, string(ev.Kind))
	}
	want := []string{"validating", "blocked", "blocked", "idle"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("event trace mismatch (-want +got):\n%s", diff)
	}

	events = nil
	trace = nil
	_ = w.SetValue("email", "a@b.com")
	w.RequestAdvance(context.Background())
	for _, ev := range events {
		if ev.Kind == EventPhaseChanged {
			trace = append(trace, ev.Phase.String())
			continue
		}
		trace = append(trace, string(ev.Kind))
	}
	want = []string{"validating", "advancing", "step_changed", "idle"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Fatalf("event trace mismatch (-want +got):\n%s", diff)
	}
}

func TestStepKeysFollowVisibility(t *testing.T) {
	t.Parallel()

	w := mustWizard(t, claimsForm())
	if diff := cmp.Diff([]string{"name", "hasClaims"}, w.StepKeys()); diff != "" {
		t.Fatalf("step keys mismatch (-want +got):\n%s", diff)
	}
	if w.Required("claimsDescription") {
		t.Fatalf("hidden field reported required")
	}
	_ = w.SetValue("hasClaims", "yes")
	if diff := cmp.Diff([]string{"name", "hasClaims", "claimsDescription"}, w.StepKeys()); diff != "" {
		t.Fatalf("step keys mismatch (-want +got):\n%s", diff)
	}
	if !w.Required("claimsDescription") {
		t.Fatalf("visible required field not reported")
	}
	if msg := w.ValidateField("claimsDescription"); !strings.Contains(msg, "required") {
		t.Fatalf("ValidateField = %q", msg)
	}
}

func TestExtrasReachExpressions(t *testing.T) {
	t.Parallel()

	form := model.Form{
		ID:       "landing",
		Endpoint: "/api/quotes/landing",
		Fields: []model.Field{
			{Key: "name", Type: model.FieldTypeText},
			{Key: "heardAbout", Type: model.FieldTypeText, Required: true, VisibleWhen: `extras.channel == "landing"`},
		},
		Steps: []model.Step{{ID: "only", Fields: []string{"name", "heardAbout"}}},
	}

	plain := mustWizard(t, form)
	if plain.Visible().Has("heardAbout") {
		t.Fatalf("heardAbout visible without extras")
	}
	landing := mustWizard(t, form, WithExtras(map[string]any{"channel": "landing"}))
	if out := landing.RequestAdvance(context.Background()); out.Kind != Blocked || out.Errors["heardAbout"] == "" {
		t.Fatalf("expected heardAbout to block on landing, got %+v", out)
	}
}

func TestNewRequiresDefinition(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); !errors.Is(err, ErrNoDefinition) {
		t.Fatalf("expected ErrNoDefinition, got %v", err)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
