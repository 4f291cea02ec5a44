package sink

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var contractDocument []byte

// RequestSchema names the component every submission body must satisfy.
const RequestSchema = "QuoteRequest"

// Contract validates submission bodies against the sink's OpenAPI document.
type Contract struct {
	doc     *openapi3.T
	request *openapi3.Schema
}

// LoadContract parses and validates the embedded OpenAPI document.
func LoadContract(ctx context.Context) (*Contract, error) {
	return ParseContract(ctx, contractDocument)
}

// ParseContract parses raw as an OpenAPI document carrying RequestSchema.
func ParseContract(ctx context.Context, raw []byte) (*Contract, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("sink contract: load document: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("sink contract: validate: %w", err)
	}
	if doc.Components == nil {
		return nil, errors.New("sink contract: document has no components")
	}
	ref, ok := doc.Components.Schemas[RequestSchema]
	if !ok || ref == nil || ref.Value == nil {
		return nil, fmt.Errorf("sink contract: schema %q missing", RequestSchema)
	}
	return &Contract{doc: doc, request: ref.Value}, nil
}

// Document returns the parsed OpenAPI document.
func (c *Contract) Document() *openapi3.T {
	return c.doc
}

// ValidateRequest checks a decoded JSON body. The returned error reads well
// enough to show to the submitting user.
func (c *Contract) ValidateRequest(body map[string]any) error {
	if body == nil {
		return errors.New("request body is empty")
	}
	if err := c.request.VisitJSON(body); err != nil {
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			if field := schemaErr.JSONPointer(); len(field) > 0 {
				return fmt.Errorf("%s: %s", strings.Join(field, "."), schemaErr.Reason)
			}
			return errors.New(schemaErr.Reason)
		}
		return err
	}
	return nil
}
