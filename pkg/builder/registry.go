package builder

import (
	"fmt"
	"maps"
	"slices"
)

// Provider names of the Doctrine mapping compiler passes.
const (
	ProviderDoctrineORM        = "DoctrineOrmMappingsPass"
	ProviderDoctrineMongoDBODM = "DoctrineMongoDBMappingsPass"
	ProviderDoctrinePHPCRODM   = "DoctrinePhpcrMappingsPass"
)

// Provider is the backend specific component producing mapping compiler
// passes. It exposes one factory method per supported mapping format.
type Provider struct {
	Driver    DriverKind
	Name      string
	Available bool

	methods map[string]ArgumentsFunc
}

// NewProvider returns an available provider exposing the factory methods of
// the given formats.
func NewProvider(driver DriverKind, name string, formats ...MappingFormat) *Provider {
	p := &Provider{Driver: driver, Name: name, Available: true}
	for _, f := range formats {
		if fn, ok := argumentBuilders[f]; ok {
			p.WithMethod(MethodName(f), fn)
		}
	}
	return p
}

// WithMethod adds a factory method to the provider.
func (p *Provider) WithMethod(name string, fn ArgumentsFunc) *Provider {
	if p.methods == nil {
		p.methods = make(map[string]ArgumentsFunc)
	}
	p.methods[name] = fn
	return p
}

// Method returns the factory method with the given name.
func (p *Provider) Method(name string) (ArgumentsFunc, bool) {
	fn, ok := p.methods[name]
	return fn, ok
}

// Methods returns the sorted names of the factory methods.
func (p *Provider) Methods() []string {
	return slices.Sorted(maps.Keys(p.methods))
}

func (p *Provider) withAvailability(available bool) *Provider {
	cpy := *p
	cpy.Available = available
	return &cpy
}

// Registry looks up the provider responsible for a driver kind.
type Registry interface {
	ProviderFor(kind DriverKind) (*Provider, error)
}

// DriverRegistry is a fixed table from driver kind to provider. It is
// read-only once constructed; the With* methods return modified copies.
type DriverRegistry struct {
	providers map[DriverKind]*Provider
}

// NewDriverRegistry returns a registry holding the given providers. Registering
// two providers for the same driver is a programming error and panics.
func NewDriverRegistry(providers ...*Provider) *DriverRegistry {
	r := &DriverRegistry{providers: make(map[DriverKind]*Provider, len(providers))}
	for _, p := range providers {
		if _, exists := r.providers[p.Driver]; exists {
			panic(fmt.Sprintf("provider for driver %q already registered", p.Driver))
		}
		r.providers[p.Driver] = p
	}
	return r
}

// DefaultDriverRegistry returns the registry of the Doctrine mapping passes,
// all of them available.
func DefaultDriverRegistry() *DriverRegistry {
	all := MappingFormats()
	return NewDriverRegistry(
		NewProvider(DriverDoctrineORM, ProviderDoctrineORM, all...),
		NewProvider(DriverDoctrineMongoDBODM, ProviderDoctrineMongoDBODM, all...),
		NewProvider(DriverDoctrinePHPCRODM, ProviderDoctrinePHPCRODM, all...),
	)
}

// ProviderFor returns the provider registered for kind, or an
// *UnknownDriverError.
func (r *DriverRegistry) ProviderFor(kind DriverKind) (*Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, &UnknownDriverError{Driver: kind}
	}
	return p, nil
}

// Drivers returns the registered driver kinds, sorted.
func (r *DriverRegistry) Drivers() []DriverKind {
	return slices.Sorted(maps.Keys(r.providers))
}

// WithUnavailable returns a copy of the registry where the providers of the
// given kinds are marked unavailable. Unknown kinds are ignored.
func (r *DriverRegistry) WithUnavailable(kinds ...DriverKind) *DriverRegistry {
	return r.remap(func(p *Provider) bool { return p.Available && !slices.Contains(kinds, p.Driver) })
}

// WithInstalled returns a copy of the registry where only the providers of the
// given kinds stay available.
func (r *DriverRegistry) WithInstalled(kinds ...DriverKind) *DriverRegistry {
	return r.remap(func(p *Provider) bool { return p.Available && slices.Contains(kinds, p.Driver) })
}

func (r *DriverRegistry) remap(available func(*Provider) bool) *DriverRegistry {
	cpy := &DriverRegistry{providers: make(map[DriverKind]*Provider, len(r.providers))}
	for kind, p := range r.providers {
		cpy.providers[kind] = p.withAvailability(available(p))
	}
	return cpy
}
