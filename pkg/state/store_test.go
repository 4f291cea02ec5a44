package state

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
)

func fleetForm() model.Form {
	return model.Form{
		ID: "fleet",
		Fields: []model.Field{
			{Key: "businessName", Type: model.FieldTypeText},
			{Key: "yearsInBusiness", Type: model.FieldTypeNumber, Default: 1},
			{Key: "contact", Type: model.FieldTypeObject, Fields: []model.Field{
				{Key: "name", Type: model.FieldTypeText},
				{Key: "state", Type: model.FieldTypeText, Default: "CA"},
			}},
		},
		Groups: []model.Group{
			{
				Name:    "vehicles",
				Min:     1,
				Max:     4,
				Initial: 1,
				Fields: []model.Field{
					{Key: "vin", Type: model.FieldTypeText},
					{Key: "seats", Type: model.FieldTypeNumber, Default: 15},
				},
			},
			{
				Name: "drivers",
				Fields: []model.Field{
					{Key: "name", Type: model.FieldTypeText},
				},
			},
		},
		Steps: []model.Step{
			{ID: "business", Fields: []string{"businessName"}},
			{ID: "vehicles", Fields: []string{"vehicles"}},
			{ID: "drivers", Fields: []string{"drivers"}},
		},
	}
}

func TestNewSeedsDefaults(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())

	want := map[string]any{
		"yearsInBusiness": 1,
		"contact":         map[string]any{"state": "CA"},
		"vehicles":        []any{map[string]any{"seats": 15}},
		"drivers":         []any{},
	}
	if diff := cmp.Diff(want, store.Snapshot()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	if store.CurrentStep() != 0 {
		t.Fatalf("expected step 0, got %d", store.CurrentStep())
	}
}

func TestSetAndGetValue(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())

	if err := store.SetValue("contact.name", "Ada"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := store.SetValue("vehicles.0.vin", "1HGCM82633A004352"); err != nil {
		t.Fatalf("SetValue item: %v", err)
	}
	// Invalid content is accepted.
	if err := store.SetValue("businessName", "not-an-email@"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if got, _ := store.GetValue("contact.name"); got != "Ada" {
		t.Fatalf("contact.name = %v", got)
	}
	if got, _ := store.GetValue("vehicles.0.vin"); got != "1HGCM82633A004352" {
		t.Fatalf("vehicles.0.vin = %v", got)
	}
	if !store.Dirty("contact.name") || !store.Dirty("businessName") {
		t.Fatalf("expected edited paths to be dirty")
	}
	if store.Dirty("yearsInBusiness") {
		t.Fatalf("untouched field should not be dirty")
	}
}

func TestGetValueFallsBackToDefault(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	if err := store.SetValue("contact", map[string]any{"name": "Ada"}); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if got, ok := store.GetValue("contact.state"); !ok || got != "CA" {
		t.Fatalf("GetValue(contact.state) = %v, %v", got, ok)
	}
	if _, ok := store.GetValue("businessName"); ok {
		t.Fatalf("businessName has no value or default")
	}
}

func TestSetValueRejectsMalformedPaths(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	for _, path := range []string{"", "contact..name", "."} {
		if err := store.SetValue(path, "x"); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("SetValue(%q) expected ErrInvalidPath, got %v", path, err)
		}
	}
	if err := store.SetValue("vehicles.5.vin", "x"); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if store.Len("vehicles") != 1 {
		t.Fatalf("out of range write must not grow the group")
	}

	before := store.Snapshot()
	tests := []struct {
		path string
		want error
	}{
		{path: "vehicles.vin", want: ErrInvalidPath},
		{path: "vehicles", want: ErrInvalidPath},
		{path: "drivers.0.name", want: ErrIndexOutOfRange},
		{path: "contact.extra.0", want: ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		if err := store.SetValue(tt.path, "x"); !errors.Is(err, tt.want) {
			t.Fatalf("SetValue(%q) expected %v, got %v", tt.path, tt.want, err)
		}
	}
	if store.Len("vehicles") != 1 {
		t.Fatalf("rejected writes changed the group: %d items", store.Len("vehicles"))
	}
	if diff := cmp.Diff(before, store.Snapshot()); diff != "" {
		t.Fatalf("rejected writes left partial state (-before +after):\n%s", diff)
	}
	if store.Dirty("vehicles.vin") {
		t.Fatalf("rejected write marked dirty")
	}
}

func TestRepeatingGroupCardinality(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	if store.Len("vehicles") != 1 {
		t.Fatalf("expected one default vehicle")
	}

	for i := 0; i < 2; i++ {
		idx, err := store.AppendItem("vehicles", nil)
		if err != nil {
			t.Fatalf("AppendItem: %v", err)
		}
		if idx != i+1 {
			t.Fatalf("AppendItem index = %d, want %d", idx, i+1)
		}
	}
	if store.Len("vehicles") != 3 {
		t.Fatalf("expected 3 vehicles, got %d", store.Len("vehicles"))
	}

	if err := store.RemoveItem("vehicles", 2); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := store.RemoveItem("vehicles", 0); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	before := store.Snapshot()
	err := store.RemoveItem("vehicles", 0)
	if !errors.Is(err, ErrMinimumCardinality) {
		t.Fatalf("expected ErrMinimumCardinality, got %v", err)
	}
	var cardinality *CardinalityError
	if !errors.As(err, &cardinality) || cardinality.Limit != 1 || cardinality.Group != "vehicles" {
		t.Fatalf("unexpected cardinality error %#v", err)
	}
	if diff := cmp.Diff(before, store.Snapshot()); diff != "" {
		t.Fatalf("rejected removal changed state (-before +after):\n%s", diff)
	}
}

func TestAppendItemRespectsMaximum(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	for store.Len("vehicles") < 4 {
		if _, err := store.AppendItem("vehicles", nil); err != nil {
			t.Fatalf("AppendItem: %v", err)
		}
	}
	if _, err := store.AppendItem("vehicles", nil); !errors.Is(err, ErrMaximumCardinality) {
		t.Fatalf("expected ErrMaximumCardinality, got %v", err)
	}
	if _, err := store.AppendItem("trailers", nil); !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}
}

func TestAppendItemMergesOverDefaults(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	idx, err := store.AppendItem("vehicles", map[string]any{"vin": "JH4KA8270MC000000"})
	if err != nil {
		t.Fatalf("AppendItem: %v", err)
	}
	want := map[string]any{"vin": "JH4KA8270MC000000", "seats": 15}
	if diff := cmp.Diff(want, store.Items("vehicles")[idx]); diff != "" {
		t.Fatalf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveItemReindexes(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	_, _ = store.AppendItem("vehicles", nil)
	_, _ = store.AppendItem("vehicles", nil)
	_ = store.SetValue("vehicles.0.vin", "A")
	_ = store.SetValue("vehicles.1.vin", "B")
	_ = store.SetValue("vehicles.2.vin", "C")
	store.SetErrors(map[string]string{"vehicles.2.vin": "invalid VIN", "vehicles.1.vin": "invalid VIN"})

	if err := store.RemoveItem("vehicles", 1); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	if got, _ := store.GetValue("vehicles.1.vin"); got != "C" {
		t.Fatalf("vehicles.1.vin = %v, want C", got)
	}
	if diff := cmp.Diff(map[string]string{"vehicles.1.vin": "invalid VIN"}, store.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"vehicles", "vehicles.0.vin", "vehicles.1.vin"}, store.DirtyPaths()); diff != "" {
		t.Fatalf("dirty mismatch (-want +got):\n%s", diff)
	}
	if err := store.RemoveItem("vehicles", 7); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	initial := store.Snapshot()

	_ = store.SetValue("businessName", "Metro Shuttle")
	_ = store.SetValue("contact.state", "NV")
	_, _ = store.AppendItem("vehicles", nil)
	_, _ = store.AppendItem("drivers", map[string]any{"name": "Lin"})
	_ = store.MoveTo(2)
	store.SetErrors(map[string]string{"businessName": "required"})

	store.Reset()

	if store.CurrentStep() != 0 {
		t.Fatalf("expected step 0 after reset, got %d", store.CurrentStep())
	}
	if diff := cmp.Diff(initial, store.Snapshot()); diff != "" {
		t.Fatalf("values after reset differ from defaults (-want +got):\n%s", diff)
	}
	if len(store.Errors()) != 0 || len(store.DirtyPaths()) != 0 {
		t.Fatalf("reset must clear errors and dirty paths")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	snapshot := store.Snapshot()
	snapshot["contact"].(map[string]any)["state"] = "TX"
	snapshot["vehicles"].([]any)[0].(map[string]any)["seats"] = 99

	if got, _ := store.GetValue("contact.state"); got != "CA" {
		t.Fatalf("snapshot mutation leaked into store: %v", got)
	}
	if got, _ := store.GetValue("vehicles.0.seats"); got != 15 {
		t.Fatalf("snapshot mutation leaked into store: %v", got)
	}
}

func TestMoveToBounds(t *testing.T) {
	t.Parallel()

	store := New(fleetForm())
	if err := store.MoveTo(3); !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("expected ErrStepOutOfRange, got %v", err)
	}
	if err := store.MoveTo(-1); !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("expected ErrStepOutOfRange, got %v", err)
	}
	if err := store.MoveTo(2); err != nil || store.CurrentStep() != 2 {
		t.Fatalf("MoveTo(2) = %v, step %d", err, store.CurrentStep())
	}
}
