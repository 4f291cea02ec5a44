package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Document wraps a raw form document and its origin.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument constructs a Document wrapper while validating the inputs.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Document{}, fmt.Errorf("schema: document %s is empty", src.Location())
	}
	return Document{source: src, raw: append([]byte(nil), raw...)}, nil
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source {
	return d.source
}

// Location returns the string identifier for the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Decode parses the document into a form. JSON files are decoded as JSON,
// everything else as YAML (a superset of JSON).
func (d Document) Decode() (model.Form, error) {
	var form model.Form
	if strings.EqualFold(filepath.Ext(d.Location()), ".json") {
		if err := json.Unmarshal(d.raw, &form); err != nil {
			return model.Form{}, fmt.Errorf("schema: parse %s: %w", d.Location(), err)
		}
		return form, nil
	}
	if err := yaml.Unmarshal(d.raw, &form); err != nil {
		return model.Form{}, fmt.Errorf("schema: parse %s: %w", d.Location(), err)
	}
	return form, nil
}
