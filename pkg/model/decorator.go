package model

// Decorator enriches a form after it has been parsed and before it is
// validated, for example to derive labels or inject metadata.
type Decorator interface {
	Decorate(*Form) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*Form) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(form *Form) error {
	return fn(form)
}

// LabelDecorator fills missing field, group and step labels using
// DefaultLabeler.
func LabelDecorator() Decorator {
	return DecoratorFunc(func(form *Form) error {
		if form == nil {
			return nil
		}
		labelFields(form.Fields)
		for i := range form.Groups {
			if form.Groups[i].Label == "" {
				form.Groups[i].Label = DefaultLabeler(form.Groups[i].Name)
			}
			labelFields(form.Groups[i].Fields)
		}
		for i := range form.Steps {
			if form.Steps[i].Title == "" {
				form.Steps[i].Title = DefaultLabeler(form.Steps[i].ID)
			}
		}
		return nil
	})
}

func labelFields(fields []Field) {
	for i := range fields {
		if fields[i].Label == "" {
			fields[i].Label = DefaultLabeler(fields[i].Key)
		}
		labelFields(fields[i].Fields)
	}
}
