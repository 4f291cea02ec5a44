package schema

import (
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/visibility"
	"github.com/goliatone/go-formwizard/pkg/visibility/expr"
)

// Definition is a checked form together with its compiled visibility graph
// and field validators. It is immutable and shared by every wizard session of
// the form.
type Definition struct {
	Form      model.Form
	Source    string
	Resolver  *visibility.Resolver
	Validator *validation.Validator
}

// Compile normalises and checks form and builds its resolver and validator.
// Every failure is an *AuthoringError matching ErrSchemaAuthoring.
func Compile(form model.Form, src string, decorators ...model.Decorator) (*Definition, error) {
	form = Normalize(form)
	for _, decorator := range decorators {
		if decorator == nil {
			continue
		}
		if err := decorator.Decorate(&form); err != nil {
			return nil, &AuthoringError{FormID: form.ID, Source: src, Detail: "decorate", Err: err}
		}
	}
	if err := Check(form, src); err != nil {
		return nil, err
	}

	resolver, err := visibility.NewResolver(form, expr.Compiler())
	if err != nil {
		return nil, &AuthoringError{FormID: form.ID, Source: src, Detail: "visibility", Err: err}
	}
	validator, err := validation.New(form, resolver)
	if err != nil {
		return nil, &AuthoringError{FormID: form.ID, Source: src, Detail: "validation", Err: err}
	}
	return &Definition{Form: form, Source: src, Resolver: resolver, Validator: validator}, nil
}

// MustCompile panics on authoring errors.
func MustCompile(form model.Form, decorators ...model.Decorator) *Definition {
	def, err := Compile(form, "", decorators...)
	if err != nil {
		panic(err)
	}
	return def
}
