package builder

// Builder resolves the compiler passes of resource bundles.
type Builder struct {
	registry Registry
	factory  CompilerPassFactory
}

// New returns a Builder using the default driver registry.
func New() *Builder {
	return &Builder{registry: DefaultDriverRegistry()}
}

func (b *Builder) WithRegistry(r Registry) *Builder {
	if r == nil {
		return b
	}
	b.registry = r
	return b
}

// Resolve returns the compiler passes of the module, one per available
// supported driver, in declared driver order. A module without model namespace
// yields no passes. The first *UnknownDriverError or *InvalidMappingFormatError
// aborts the resolution and no passes are returned.
func (b *Builder) Resolve(d ModuleDescriptor) ([]CompilerPassSpec, error) {
	if d.ModelNamespace == nil {
		return nil, nil
	}

	prefix := d.Prefix()
	mc := ModuleContext{
		ConfigFilesPath:        d.ConfigFilesPath(),
		ModelNamespace:         *d.ModelNamespace,
		ObjectManagerParameter: ObjectManagerParameter(prefix),
	}

	specs := make([]CompilerPassSpec, 0, len(d.SupportedDrivers))
	for _, kind := range d.SupportedDrivers {
		provider, err := b.registry.ProviderFor(kind)
		if err != nil {
			return nil, err
		}

		mc.PassID = PassID(prefix, kind)
		spec, ok, err := b.factory.Build(provider, d.MappingFormat, mc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		specs = append(specs, spec)
	}

	return specs, nil
}
