package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/payload"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

type stubDriver struct {
	inputs    []string
	selectIdx []int
	multiIdx  [][]int
	confirm   []bool
	textAreas []string

	inputPos   int
	selectPos  int
	multiPos   int
	confirmPos int
	textPos    int

	messages []string
	labels   []string
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.labels = append(s.labels, cfg.Message)
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.labels = append(s.labels, cfg.Message)
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.labels = append(s.labels, cfg.Message)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	s.labels = append(s.labels, cfg.Message)
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, cfg TextAreaConfig) (string, error) {
	s.labels = append(s.labels, cfg.Message)
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.messages = append(s.messages, msg)
	return nil
}

func (s *stubDriver) said(substr string) bool {
	for _, msg := range s.messages {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

type capture struct {
	payloads []*payload.Payload
	fail     int
}

func (c *capture) Submit(_ context.Context, p *payload.Payload) (*submission.Result, error) {
	c.payloads = append(c.payloads, p)
	if c.fail > 0 {
		c.fail--
		return nil, &submission.RejectedError{Status: 500, Message: "Quoting is down."}
	}
	return &submission.Result{Form: p.Form, ReferenceNumber: "QR-1", Name: p.Name}, nil
}

func venueForm() model.Form {
	return model.Form{
		ID:       "venue",
		Title:    "Venue quote",
		Endpoint: "/api/quotes/venue",
		Fields: []model.Field{
			{Key: "name", Type: model.FieldTypeText, Label: "Your name", Required: true},
			{Key: "hasClaims", Type: model.FieldTypeEnum, Default: "no", Options: []model.Option{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}}},
			{Key: "claimsDescription", Type: model.FieldTypeText, Required: true, VisibleWhen: `hasClaims == "yes"`, Hints: map[string]string{"input": "textarea"}},
			{Key: "email", Type: model.FieldTypeEmail, Label: "Email", Required: true},
			{Key: "coverages", Type: model.FieldTypeMulti, Options: []model.Option{{Value: "gl"}, {Value: "liquor"}}},
			{Key: "attendance", Type: model.FieldTypeNumber},
		},
		Groups: []model.Group{
			{Name: "locations", ItemLabel: "Location", Min: 1, Max: 2, Fields: []model.Field{
				{Key: "city", Type: model.FieldTypeText, Required: true},
			}},
		},
		Steps: []model.Step{
			{ID: "history", Title: "History", Fields: []string{"name", "hasClaims", "claimsDescription"}},
			{ID: "event", Title: "Event", Fields: []string{"email", "coverages", "attendance", "locations"}},
		},
		Payload:      model.PayloadConfig{Promote: map[string]string{"name": "name", "email": "email"}},
		Confirmation: "Thanks {{ name }}, reference {{ reference }}.",
	}
}

func newWizard(t *testing.T, form model.Form, sub wizard.Submitter) *wizard.Wizard {
	t.Helper()
	def, err := schema.Compile(form, "test")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	w, err := wizard.New(def, wizard.WithSubmitter(sub))
	if err != nil {
		t.Fatalf("wizard.New: %v", err)
	}
	return w
}

func TestRendererWalksEveryStep(t *testing.T) {
	t.Parallel()

	sub := &capture{}
	w := newWizard(t, venueForm(), sub)
	driver := &stubDriver{
		inputs:    []string{"Ada", "ada@example.com", "250", "Austin"},
		textAreas: []string{"Hail damage"},
		selectIdx: []int{0, 0, 0},
		multiIdx:  [][]int{{0, 1}},
	}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != wizard.Submitted {
		t.Fatalf("outcome = %s, want submitted", out.Kind)
	}
	if out.Confirmation != "Thanks Ada, reference QR-1." {
		t.Fatalf("confirmation = %q", out.Confirmation)
	}
	if !driver.said("Thanks Ada, reference QR-1.") {
		t.Fatalf("confirmation not printed: %v", driver.messages)
	}
	if !driver.said("Step 2 of 2: Event") {
		t.Fatalf("step header missing: %v", driver.messages)
	}
	if len(sub.payloads) != 1 {
		t.Fatalf("submissions = %d, want 1", len(sub.payloads))
	}

	values, _ := sub.payloads[0].Body[payload.PassthroughKey].(map[string]any)
	want := map[string]any{
		"name":              "Ada",
		"hasClaims":         "yes",
		"claimsDescription": "Hail damage",
		"email":             "ada@example.com",
		"coverages":         []any{"gl", "liquor"},
		"attendance":        float64(250),
		"locations":         []any{map[string]any{"city": "Austin"}},
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("payload values mismatch (-want +got):\n%s", diff)
	}
	if w.CurrentStep() != 0 {
		t.Fatalf("step after submit = %d, want 0", w.CurrentStep())
	}
}

func TestRendererMarksRequiredFields(t *testing.T) {
	t.Parallel()

	w := newWizard(t, venueForm(), &capture{})
	driver := &stubDriver{}

	_, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err == nil {
		t.Fatalf("expected scripted input to run out")
	}
	if len(driver.labels) == 0 || driver.labels[0] != "Your name *" {
		t.Fatalf("labels = %v", driver.labels)
	}
}

func TestRendererRepromptsInvalidField(t *testing.T) {
	t.Parallel()

	w := newWizard(t, venueForm(), &capture{})
	driver := &stubDriver{
		inputs:    []string{"Ada", "not-an-email", "ada@example.com", "", "Austin"},
		selectIdx: []int{1, 0, 0},
		multiIdx:  [][]int{{}},
	}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != wizard.Submitted {
		t.Fatalf("outcome = %s, want submitted", out.Kind)
	}
	if !driver.said("! Email: Enter a valid email address.") {
		t.Fatalf("field error not shown: %v", driver.messages)
	}
}

func TestRendererRepromptsBlockedStep(t *testing.T) {
	t.Parallel()

	form := model.Form{
		ID:       "mix",
		Endpoint: "/api/quotes/mix",
		Fields: []model.Field{
			{Key: "indoorPct", Type: model.FieldTypeNumber},
			{Key: "outdoorPct", Type: model.FieldTypeNumber},
			{Key: "mixTotal", Type: model.FieldTypeSynthetic, Validations: []model.ValidationRule{
				{Kind: model.ValidationRuleSum, Params: map[string]string{"fields": "indoorPct,outdoorPct", "equals": "100"}},
			}},
		},
		Steps: []model.Step{{ID: "mix", Fields: []string{"indoorPct", "outdoorPct", "mixTotal"}}},
	}
	w := newWizard(t, form, &capture{})
	// The second pass corrects only the outdoor share.
	driver := &stubDriver{inputs: []string{"60", "30", "60", "40"}}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != wizard.Submitted {
		t.Fatalf("outcome = %s, want submitted", out.Kind)
	}
	if !driver.said("! mixTotal: Must add up to 100 (currently 90).") {
		t.Fatalf("blocked errors not shown: %v", driver.messages)
	}
}

func TestRendererRetriesFailedSubmission(t *testing.T) {
	t.Parallel()

	sub := &capture{fail: 1}
	w := newWizard(t, venueForm(), sub)
	driver := &stubDriver{
		inputs:    []string{"Ada", "ada@example.com", "", "Austin"},
		selectIdx: []int{1, 0, 0},
		multiIdx:  [][]int{{}},
		confirm:   []bool{true},
	}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != wizard.Submitted {
		t.Fatalf("outcome = %s, want submitted", out.Kind)
	}
	if !driver.said("! Quoting is down.") {
		t.Fatalf("failure message not shown: %v", driver.messages)
	}
	if len(sub.payloads) != 2 {
		t.Fatalf("submissions = %d, want 2", len(sub.payloads))
	}
	if diff := cmp.Diff(sub.payloads[0].Body, sub.payloads[1].Body); diff != "" {
		t.Fatalf("retry changed the payload (-first +second):\n%s", diff)
	}
}

func TestRendererGivesUpWhenRetryDeclined(t *testing.T) {
	t.Parallel()

	sub := &capture{fail: 1}
	w := newWizard(t, venueForm(), sub)
	driver := &stubDriver{
		inputs:    []string{"Ada", "ada@example.com", "", "Austin"},
		selectIdx: []int{1, 0, 0},
		multiIdx:  [][]int{{}},
		confirm:   []bool{false},
	}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("err = %v, want ErrGaveUp", err)
	}
	if out.Kind != wizard.SubmitFailed {
		t.Fatalf("outcome = %s, want submit_failed", out.Kind)
	}
	if got, _ := w.GetValue("email"); got != "ada@example.com" {
		t.Fatalf("answers lost after failure: email = %v", got)
	}
}

func TestRendererGoesBack(t *testing.T) {
	t.Parallel()

	w := newWizard(t, venueForm(), &capture{})
	driver := &stubDriver{
		inputs:    []string{"Ada", "ada@example.com", "", "Austin", "Grace", "ada@example.com", "", "Austin"},
		selectIdx: []int{1, 0, 1, 1, 0, 0},
		multiIdx:  [][]int{{}, {}},
	}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != wizard.Submitted {
		t.Fatalf("outcome = %s, want submitted", out.Kind)
	}
	if out.Result.Name != "Grace" {
		t.Fatalf("name = %q, want the revised answer", out.Result.Name)
	}
}

func TestRendererRemovesGroupItems(t *testing.T) {
	t.Parallel()

	sub := &capture{}
	w := newWizard(t, venueForm(), sub)
	driver := &stubDriver{
		inputs: []string{"Ada", "ada@example.com", "", "Austin", "Dallas"},
		// hasClaims=no; remove the only location (refused); add one; remove
		// location 1; continue; next.
		selectIdx: []int{1, 2, 1, 1, 0, 0, 0},
		multiIdx:  [][]int{{}},
	}

	out, err := New(WithPromptDriver(driver)).Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Kind != wizard.Submitted {
		t.Fatalf("outcome = %s, want submitted", out.Kind)
	}
	if !driver.said("! Cannot remove: at least 1 location required.") {
		t.Fatalf("minimum cardinality not explained: %v", driver.messages)
	}

	values, _ := sub.payloads[0].Body[payload.PassthroughKey].(map[string]any)
	want := []any{map[string]any{"city": "Dallas"}}
	if diff := cmp.Diff(want, values["locations"]); diff != "" {
		t.Fatalf("locations mismatch (-want +got):\n%s", diff)
	}
}
