package builder

import (
	"errors"
	"fmt"
	"strings"
)

// DriverKind identifies a persistence backend family.
type DriverKind string

const (
	// DriverDoctrineORM is the relational ORM driver.
	DriverDoctrineORM DriverKind = "doctrine/orm"

	// DriverDoctrineMongoDBODM is the document store driver.
	DriverDoctrineMongoDBODM DriverKind = "doctrine/mongodb-odm"

	// DriverDoctrinePHPCRODM is the content repository driver.
	DriverDoctrinePHPCRODM DriverKind = "doctrine/phpcr-odm"
)

// DriverKinds returns the closed set of driver kinds in canonical order.
func DriverKinds() []DriverKind {
	return []DriverKind{DriverDoctrineORM, DriverDoctrineMongoDBODM, DriverDoctrinePHPCRODM}
}

func (k DriverKind) String() string {
	return string(k)
}

// MappingFormat identifies how mapping metadata is authored.
type MappingFormat string

const (
	MappingXML        MappingFormat = "xml"
	MappingYAML       MappingFormat = "yml"
	MappingAnnotation MappingFormat = "annotation"
)

// MappingFormats returns the closed set of mapping formats.
func MappingFormats() []MappingFormat {
	return []MappingFormat{MappingXML, MappingYAML, MappingAnnotation}
}

// ParseMappingFormat normalizes s and returns the matching format. Anything
// outside the closed set is rejected here, before resolution starts.
func ParseMappingFormat(s string) (MappingFormat, error) {
	f := MappingFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case MappingXML, MappingYAML, MappingAnnotation:
		return f, nil
	}
	return "", fmt.Errorf("the mapping format %q is invalid, must be \"xml\", \"yml\" or \"annotation\"", s)
}

func (f MappingFormat) String() string {
	return string(f)
}

// DefaultMappingDirectory is the directory below Resources/config/doctrine
// holding the mapping files unless a module overrides it.
const DefaultMappingDirectory = "model"

// ErrDuplicateDriver is returned by ModuleDescriptor.Validate when a driver
// kind is declared more than once.
var ErrDuplicateDriver = errors.New("duplicate driver")

// ModuleDescriptor describes one resource bundle. It is built once per module
// and must not be modified after it has been handed to a Builder.
type ModuleDescriptor struct {
	// Identity is the bundle type name, optionally namespace qualified
	// (e.g. "Sylius\\Bundle\\AttributeBundle\\SyliusAttributeBundle").
	// It must end with the "Bundle" suffix.
	Identity string

	// ModelNamespace is the namespace of the mapped model classes. nil means
	// the bundle has no persistence mapping and resolution is skipped.
	ModelNamespace *string

	// MappingFormat is the authoring format of the mapping metadata.
	MappingFormat MappingFormat

	// SupportedDrivers lists the drivers the bundle supports. Order is
	// significant: it is the registration order of the compiler passes.
	SupportedDrivers []DriverKind

	// Path is the bundle root directory.
	Path string

	// MappingDirectory is the subdirectory of Resources/config/doctrine holding
	// the mapping files. Empty means DefaultMappingDirectory.
	MappingDirectory string
}

// Validate checks the invariants that configuration parsing must guarantee.
func (d ModuleDescriptor) Validate() error {
	if d.Identity == "" {
		return errors.New("module identity is required")
	}

	seen := make(map[DriverKind]struct{}, len(d.SupportedDrivers))
	for _, kind := range d.SupportedDrivers {
		if _, ok := seen[kind]; ok {
			return fmt.Errorf("%w %q in module %q", ErrDuplicateDriver, kind, d.Identity)
		}
		seen[kind] = struct{}{}
	}

	return nil
}

// Prefix returns the naming prefix derived from the identity.
func (d ModuleDescriptor) Prefix() string {
	return Prefix(d.Identity)
}

// ConfigFilesPath returns the directory holding the mapping files.
func (d ModuleDescriptor) ConfigFilesPath() string {
	dir := d.MappingDirectory
	if dir == "" {
		dir = DefaultMappingDirectory
	}
	return fmt.Sprintf("%s/Resources/config/doctrine/%s", d.Path, strings.ToLower(dir))
}

// ObjectManagerParameter returns the container parameter naming the object
// manager of the bundle.
func (d ModuleDescriptor) ObjectManagerParameter() string {
	return ObjectManagerParameter(d.Prefix())
}

// PassID returns the compiler pass identifier for the given driver.
func (d ModuleDescriptor) PassID(kind DriverKind) string {
	return PassID(d.Prefix(), kind)
}

// ObjectManagerParameter returns "{prefix}.object_manager".
func ObjectManagerParameter(prefix string) string {
	return prefix + ".object_manager"
}

// PassID returns "{prefix}.driver.{kind}".
func PassID(prefix string, kind DriverKind) string {
	return fmt.Sprintf("%s.driver.%s", prefix, kind)
}

// ModuleContext carries the values of a module that end up in compiler pass
// arguments.
type ModuleContext struct {
	ConfigFilesPath        string
	ModelNamespace         string
	ObjectManagerParameter string
	PassID                 string
}

// CompilerPassSpec is a resolved compiler pass registration. It is owned by
// the container build step once appended to the build sequence.
type CompilerPassSpec struct {
	Driver    DriverKind `json:"driver"`
	Provider  string     `json:"provider"`
	Method    string     `json:"method"`
	Arguments []any      `json:"arguments"`
	ID        string     `json:"id"`
}
