package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dropDatabas3/authority/internal/apperr"
)

// Factory construye una instancia de provider.
type Factory func() (Provider, error)

// Registry mapea nombre -> factory. Las instancias se cachean por nombre.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		cache:     make(map[string]Provider),
	}
}

// Register agrega o reemplaza un provider. Puede llamarse en runtime.
func (r *Registry) Register(name string, f Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.cache, name)
}

// Create devuelve el provider registrado bajo name. Si no existe falla con
// ValidationError listando los soportados.
func (r *Registry) Create(name string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	if p, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[key]; ok {
		return p, nil
	}
	f, ok := r.factories[key]
	if !ok {
		supported := r.namesLocked()
		return nil, apperr.Validation(fmt.Sprintf("unsupported provider %q, supported: %s", name, strings.Join(supported, ", "))).
			WithDetail("supported", supported)
	}
	p, err := f()
	if err != nil {
		return nil, fmt.Errorf("providers: create %s: %w", key, err)
	}
	r.cache[key] = p
	return p, nil
}

// Names lista los providers registrados, ordenados.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
