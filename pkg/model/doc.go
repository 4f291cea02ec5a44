// Package model defines the declarative form schema consumed by the wizard
// engine. A Form is pure data: fields keyed by dotted paths, repeating groups
// of structurally identical items, an ordered step partition, and the payload
// contract expected by the submission sink. Fields carry validation rules as
// canonical kinds (pattern, minLength/maxLength, min/max, enum, sum) with
// string parameters so documents stay deterministic across YAML and JSON.
// Conditional behaviour is expressed with `visibleWhen` and `requiredWhen`
// expressions evaluated by pkg/visibility/expr; a field that is not visible is
// never required. Loaders live in pkg/schema and return the types defined here.
package model
