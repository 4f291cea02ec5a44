package tui

import "go.uber.org/zap"

// Theme captures optional formatting hints the driver can apply when printing
// messages. Keep minimal to avoid coupling renderer logic to ANSI specifics.
type Theme struct {
	StepPrefix    string
	InfoPrefix    string
	ErrorPrefix   string
	RequiredMark  string
	SkipFileLabel string
}

// DefaultTheme is used when no theme is supplied.
var DefaultTheme = Theme{
	StepPrefix:    "==",
	InfoPrefix:    "",
	ErrorPrefix:   "!",
	RequiredMark:  " *",
	SkipFileLabel: "leave blank to skip",
}

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
