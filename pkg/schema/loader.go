package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Registry holds the compiled definitions of a set of forms keyed by id.
type Registry struct {
	definitions map[string]*Definition
}

// Option configures loading.
type Option func(*loadConfig)

type loadConfig struct {
	decorators []model.Decorator
	logger     *zap.Logger
}

// WithDecorators runs decorators on every form before it is checked.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(cfg *loadConfig) {
		cfg.decorators = append(cfg.decorators, decorators...)
	}
}

// WithLogger reports loaded forms at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *loadConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

func newLoadConfig(opts []Option) loadConfig {
	cfg := loadConfig{
		decorators: []model.Decorator{model.LabelDecorator()},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// LoadFS walks fsys and compiles every .yaml, .yml and .json file as one
// form. All authoring errors across all files are reported together.
func LoadFS(fsys fs.FS, opts ...Option) (*Registry, error) {
	cfg := newLoadConfig(opts)
	registry := &Registry{definitions: make(map[string]*Definition)}
	if fsys == nil {
		return registry, nil
	}

	var errs []error
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isFormFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		doc, err := NewDocument(SourceFromFS(path), data)
		if err != nil {
			errs = append(errs, &AuthoringError{Source: path, Err: err})
			return nil
		}
		if err := registry.add(doc, cfg); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return registry, nil
}

// LoadDir loads the forms stored under dir on disk.
func LoadDir(dir string, opts ...Option) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema: forms dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema: forms dir %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), opts...)
}

// Parse compiles a single document.
func Parse(data []byte, location string, opts ...Option) (*Definition, error) {
	cfg := newLoadConfig(opts)
	doc, err := NewDocument(SourceInline(location), data)
	if err != nil {
		return nil, &AuthoringError{Source: location, Err: err}
	}
	return compileDocument(doc, cfg)
}

// MustLoadFS panics on authoring errors. Form documents are build-time
// artefacts, so a defect should stop the program before any user sees it.
func MustLoadFS(fsys fs.FS, opts ...Option) *Registry {
	registry, err := LoadFS(fsys, opts...)
	if err != nil {
		panic(err)
	}
	return registry
}

func (r *Registry) add(doc Document, cfg loadConfig) error {
	def, err := compileDocument(doc, cfg)
	if err != nil {
		return err
	}
	if existing, dup := r.definitions[def.Form.ID]; dup {
		return &AuthoringError{
			FormID: def.Form.ID,
			Source: doc.Location(),
			Detail: fmt.Sprintf("duplicate form id (also defined in %s)", existing.Source),
		}
	}
	r.definitions[def.Form.ID] = def
	cfg.logger.Debug("form loaded",
		zap.String("form", def.Form.ID),
		zap.String("source", doc.Location()),
		zap.Int("steps", def.Form.StepCount()),
	)
	return nil
}

func compileDocument(doc Document, cfg loadConfig) (*Definition, error) {
	form, err := doc.Decode()
	if err != nil {
		return nil, &AuthoringError{Source: doc.Location(), Err: err}
	}
	return Compile(form, doc.Location(), cfg.decorators...)
}

// Definition returns the compiled form with the supplied id.
func (r *Registry) Definition(id string) (*Definition, bool) {
	if r == nil {
		return nil, false
	}
	def, ok := r.definitions[id]
	return def, ok
}

// Form returns the form with the supplied id.
func (r *Registry) Form(id string) (model.Form, bool) {
	def, ok := r.Definition(id)
	if !ok {
		return model.Form{}, false
	}
	return def.Form, true
}

// IDs lists the registered form ids sorted.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.definitions))
	for id := range r.definitions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of registered forms.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.definitions)
}

func isFormFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
