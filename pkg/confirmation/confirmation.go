// Package confirmation renders the message shown once a quote request has
// been accepted by the sink.
package confirmation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// DefaultTemplate is used by forms without a confirmation template.
const DefaultTemplate = `Thanks{% if name %} {{ name|trim }}{% endif %}! We received your {{ title|default:"quote request" }}.` +
	`{% if reference %} Your reference number is {{ reference }}.{% endif %}`

// Data is the context exposed to confirmation templates as name, email,
// reference, id, status, form and title.
type Data struct {
	Form      string
	Title     string
	Name      string
	Email     string
	Reference string
	ID        string
	Status    string
}

func (d Data) context() pongo2.Context {
	return pongo2.Context{
		"form":      d.Form,
		"title":     d.Title,
		"name":      d.Name,
		"email":     d.Email,
		"reference": d.Reference,
		"id":        d.ID,
		"status":    d.Status,
	}
}

// Option configures a Renderer.
type Option func(*config)

type config struct {
	globals map[string]any
}

// WithGlobalData exposes extra values to every template, for example the
// agency phone number.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		for key, value := range data {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if cfg.globals == nil {
				cfg.globals = make(map[string]any, len(data))
			}
			cfg.globals[key] = value
		}
	}
}

var filtersOnce sync.Once

// Renderer holds one compiled confirmation template. It is safe for
// concurrent use.
type Renderer struct {
	tpl *pongo2.Template
}

// New compiles source, or DefaultTemplate when source is blank.
func New(source string, opts ...Option) (*Renderer, error) {
	cfg := &config{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	registerDefaultFilters()

	if strings.TrimSpace(source) == "" {
		source = DefaultTemplate
	}
	set := pongo2.NewSet("formwizard", pongo2.DefaultLoader)
	if len(cfg.globals) > 0 {
		if set.Globals == nil {
			set.Globals = make(pongo2.Context)
		}
		set.Globals.Update(pongo2.Context(cfg.globals))
	}
	// Confirmations are plain text; markup escaping would mangle names.
	tpl, err := set.FromString("{% autoescape off %}" + source + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("confirmation: parse template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Check reports whether source is a valid template.
func Check(source string) error {
	_, err := New(source)
	return err
}

// Render executes the template. Surrounding whitespace is trimmed and runs of
// blank lines collapse to one line break.
func (r *Renderer) Render(data Data) (string, error) {
	if r == nil || r.tpl == nil {
		return "", errors.New("confirmation: renderer is nil")
	}
	var buf bytes.Buffer
	if err := r.tpl.ExecuteWriter(data.context(), &buf); err != nil {
		return "", fmt.Errorf("confirmation: execute template: %w", err)
	}
	return tidy(buf.String()), nil
}

func tidy(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(line))
	}
	return strings.Join(out, "\n")
}

func registerDefaultFilters() {
	filtersOnce.Do(func() {
		if !pongo2.FilterExists("trim") {
			_ = pongo2.RegisterFilter("trim", filterTrim)
		}
	})
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}
