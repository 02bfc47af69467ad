// Package builder resolves the mapping compiler passes of resource bundles.
//
// A resource bundle declares a model namespace, a mapping format and the
// persistence drivers it supports. The builder turns that declaration into
// compiler pass registrations for the container build, one per available
// driver, without the caller needing any driver specific knowledge.
//
// # Basic Usage
//
//	import "github.com/bundlekit/passctl/pkg/builder"
//
//	ns := "Sylius\\Component\\Attribute\\Model"
//	desc := builder.ModuleDescriptor{
//	    Identity:         "Sylius\\Bundle\\AttributeBundle\\SyliusAttributeBundle",
//	    ModelNamespace:   &ns,
//	    MappingFormat:    builder.MappingXML,
//	    SupportedDrivers: []builder.DriverKind{builder.DriverDoctrineORM},
//	    Path:             "/app/vendor/sylius/attribute-bundle",
//	}
//
//	passes, err := builder.New().Resolve(desc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The single pass above is
//
//	Provider:  "DoctrineOrmMappingsPass"
//	Method:    "createXmlMappingDriver"
//	Arguments: [
//	    {"/app/vendor/sylius/attribute-bundle/Resources/config/doctrine/model": "Sylius\\Component\\Attribute\\Model"},
//	    ["sylius_attribute.object_manager"],
//	    "sylius_attribute.driver.doctrine/orm",
//	]
//	ID:        "sylius_attribute.driver.doctrine/orm"
//
// # Naming
//
// The prefix of a bundle is its short type name without the "Bundle" suffix in
// snake case (see Prefix). The object manager parameter is
// "{prefix}.object_manager" and every pass is identified by
// "{prefix}.driver.{driver}".
//
// # Mapping Formats
//
// The factory method of a provider is "create{Format}MappingDriver". XML and
// YAML mappings take a map from mapping directory to namespace; annotation
// mappings take the namespace and the directory as one element lists:
//
//	xml, yml:   [ {path: namespace}, [manager], id ]
//	annotation: [ [namespace], [path], [manager], id ]
//
// # Optional Drivers
//
// A bundle may declare drivers whose integration is not installed. Such
// providers are marked unavailable in the registry and skipped silently:
//
//	reg := builder.DefaultDriverRegistry().WithInstalled(builder.DriverDoctrineORM)
//	passes, err := builder.New().WithRegistry(reg).Resolve(desc)
//
// Unknown drivers (*UnknownDriverError) and formats the provider has no factory
// method for (*InvalidMappingFormatError) abort the resolution of the module;
// no passes are returned in that case.
//
// # Thread Safety
//
// Resolve does not modify the Builder or the registry. The registry must not be
// changed while resolutions are running; the With* methods return copies.
package builder
