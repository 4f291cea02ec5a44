package visibility

// Context provides inputs to a Predicate. Values holds the current form
// values while Extras lets callers inject ambient data such as the entry
// channel or feature flags, addressed with the `extras.` prefix.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// Predicate is a compiled condition that also reports the identifiers it
// reads, which the Resolver uses to build the dependency graph.
type Predicate interface {
	Eval(ctx Context) (bool, error)
	References() []string
}

// CompileFunc turns a rule string into a Predicate.
type CompileFunc func(rule string) (Predicate, error)
