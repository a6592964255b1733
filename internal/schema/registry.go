// Package schema reflects JSON schemas for configuration documents and
// validates decoded documents against them before they are bound to structs.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// Provider builds and returns a schema for a registered key.
type Provider func() *jsonschema.Schema

// Registry maps document names to schema providers and caches the built
// schemas.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	cache     map[string]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{
		providers: map[string]Provider{},
		cache:     map[string]*jsonschema.Schema{},
	}
}

// Register installs or replaces the provider under the provided key.
func (r *Registry) Register(name string, provider Provider) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("schema name is required for registration")
	}
	if provider == nil {
		return fmt.Errorf("schema provider is required")
	}

	r.mu.Lock()
	r.providers[name] = provider
	delete(r.cache, name)
	r.mu.Unlock()
	return nil
}

// RegisterType registers the reflected schema of value under name.
func (r *Registry) RegisterType(name string, value any) error {
	return r.Register(name, func() *jsonschema.Schema {
		return Reflect(value)
	})
}

// Resolve finds the schema provider for name and returns its cached schema.
func (r *Registry) Resolve(name string) (*jsonschema.Schema, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("schema name is required for lookup")
	}

	r.mu.RLock()
	if s, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	provider, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	s := provider()
	r.mu.Lock()
	r.cache[name] = s
	r.mu.Unlock()
	return s, nil
}

// ClearCache drops built schemas; providers run again on the next Resolve.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	r.cache = map[string]*jsonschema.Schema{}
	r.mu.Unlock()
}

// Reflect builds a closed schema for value: nested structs are inlined and
// unknown properties are rejected. Fields tagged `jsonschema:"required"` are
// required.
func Reflect(value any) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := reflector.Reflect(value)
	if s.Version == "" {
		s.Version = jsonschema.Version
	}
	return s
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
