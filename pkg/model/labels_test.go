package model

import "testing"

func TestDefaultLabeler(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                  "",
		"hasClaims":         "Has claims",
		"annual_revenue":    "Annual revenue",
		"vehicle-count":     "Vehicle count",
		"lossRuns5Years":    "Loss runs 5 years",
		"contact.firstName": "First name",
		"vehicles.2.vin":    "VIN",
		"dotNumber":         "DOT number",
		"tnc_platforms":     "TNC platforms",
		"vehicles.0":        "Vehicles",
	}
	for input, want := range cases {
		if got := DefaultLabeler(input); got != want {
			t.Errorf("DefaultLabeler(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLabelDecoratorFillsMissingLabels(t *testing.T) {
	t.Parallel()

	form := Form{
		Fields: []Field{
			{Key: "contact", Type: FieldTypeObject, Fields: []Field{{Key: "firstName", Type: FieldTypeText}}},
			{Key: "email", Type: FieldTypeEmail, Label: "Work email"},
		},
		Groups: []Group{{Name: "vehicles", Fields: []Field{{Key: "modelYear", Type: FieldTypeNumber}}}},
		Steps:  []Step{{ID: "company_info", Fields: []string{"email"}}},
	}

	if err := LabelDecorator().Decorate(&form); err != nil {
		t.Fatalf("decorate: %v", err)
	}

	if got := form.Fields[0].Fields[0].Label; got != "First name" {
		t.Fatalf("nested label = %q", got)
	}
	if got := form.Fields[1].Label; got != "Work email" {
		t.Fatalf("explicit label overwritten: %q", got)
	}
	if got := form.Groups[0].Label; got != "Vehicles" {
		t.Fatalf("group label = %q", got)
	}
	if got := form.Groups[0].Fields[0].Label; got != "Model year" {
		t.Fatalf("group field label = %q", got)
	}
	if got := form.Steps[0].Title; got != "Company info" {
		t.Fatalf("step title = %q", got)
	}
}

func TestFormFieldLookup(t *testing.T) {
	t.Parallel()

	form := Form{
		Fields: []Field{
			{Key: "contact", Type: FieldTypeObject, Fields: []Field{{Key: "email", Type: FieldTypeEmail}}},
			{Key: "hasClaims", Type: FieldTypeEnum},
		},
		Groups: []Group{{Name: "vehicles", Fields: []Field{{Key: "vin", Type: FieldTypeText}}}},
	}

	tests := []struct {
		key  string
		want FieldType
		ok   bool
	}{
		{key: "contact.email", want: FieldTypeEmail, ok: true},
		{key: "hasClaims", want: FieldTypeEnum, ok: true},
		{key: "vehicles.3.vin", want: FieldTypeText, ok: true},
		{key: "vehicles.vin", ok: false},
		{key: "missing", ok: false},
	}
	for _, tt := range tests {
		field, ok := form.Field(tt.key)
		if ok != tt.ok {
			t.Fatalf("Field(%q) ok = %v, want %v", tt.key, ok, tt.ok)
		}
		if ok && field.Type != tt.want {
			t.Fatalf("Field(%q) type = %q, want %q", tt.key, field.Type, tt.want)
		}
	}
}
