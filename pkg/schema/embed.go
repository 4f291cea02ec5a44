package schema

import (
	"embed"
	"io/fs"
	"sync"
)

//go:embed forms/*.yaml
var embeddedForms embed.FS

var (
	embeddedOnce     sync.Once
	embeddedRegistry *Registry
)

// EmbeddedFS returns the bundled quote-request forms.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedForms, "forms")
	if err != nil {
		panic(err)
	}
	return sub
}

// Embedded returns the registry of bundled forms, compiled once. It panics if
// any bundled form has an authoring error.
func Embedded() *Registry {
	embeddedOnce.Do(func() {
		embeddedRegistry = MustLoadFS(EmbeddedFS())
	})
	return embeddedRegistry
}
