package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaAuthoring marks defects in a form document: duplicate keys,
// dangling references, cyclic visibility rules and the like. They are
// build-time defects, never user-recoverable.
var ErrSchemaAuthoring = errors.New("schema: authoring error")

// AuthoringError locates an authoring defect.
type AuthoringError struct {
	FormID string
	Source string
	Detail string
	Err    error
}

func (e *AuthoringError) Error() string {
	var b strings.Builder
	b.WriteString("schema: ")
	if e.FormID != "" {
		fmt.Fprintf(&b, "form %q", e.FormID)
	} else {
		b.WriteString("form")
	}
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	b.WriteString(": ")
	b.WriteString(e.Detail)
	if e.Err != nil {
		if e.Detail != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthoringError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSchemaAuthoring}
	}
	return []error{ErrSchemaAuthoring, e.Err}
}

type issues struct {
	formID string
	source string
	errs   []error
}

func (i *issues) add(format string, args ...any) {
	i.errs = append(i.errs, &AuthoringError{FormID: i.formID, Source: i.source, Detail: fmt.Sprintf(format, args...)})
}

func (i *issues) wrap(err error, format string, args ...any) {
	i.errs = append(i.errs, &AuthoringError{FormID: i.formID, Source: i.source, Detail: fmt.Sprintf(format, args...), Err: err})
}

func (i *issues) err() error {
	return errors.Join(i.errs...)
}
