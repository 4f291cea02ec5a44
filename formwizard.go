// Package formwizard is the top-level entry point: it loads quote-request
// form schemas and builds wizard sessions that submit to a sink.
package formwizard

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Form aliases model.Form for callers that only import the root package.
type Form = model.Form

// Registry aliases schema.Registry.
type Registry = schema.Registry

// Wizard aliases wizard.Wizard.
type Wizard = wizard.Wizard

// Outcome aliases wizard.Outcome.
type Outcome = wizard.Outcome

// ErrUnknownForm is returned when a registry has no form with the given id.
var ErrUnknownForm = errors.New("formwizard: unknown form")

// LoadForms returns the bundled forms, or the forms stored under dir when
// dir is not empty.
func LoadForms(dir string, opts ...schema.Option) (*Registry, error) {
	if dir == "" {
		return schema.LoadFS(schema.EmbeddedFS(), opts...)
	}
	return schema.LoadDir(dir, opts...)
}

// NewWizard starts a session for form id that submits to the sink at
// sinkURL. Options are applied after the submitter, so WithSubmitter
// replaces the HTTP client.
func NewWizard(registry *Registry, id, sinkURL string, opts ...wizard.Option) (*Wizard, error) {
	if registry == nil {
		return nil, errors.New("formwizard: registry is required")
	}
	def, ok := registry.Definition(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownForm, id)
	}
	client, err := submission.NewClient(sinkURL)
	if err != nil {
		return nil, err
	}
	return wizard.New(def, append([]wizard.Option{wizard.WithSubmitter(client)}, opts...)...)
}
