package config

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/bundlekit/passctl/pkg/builder"
)

// Internal configuration data structures for passctl.

// Metadata contains metadata about the configuration file itself.
type Metadata struct {
	GeneratedBy string `json:"generated_by,omitempty"`
	GeneratedAt string `json:"generated_at,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Root is the top-level configuration structure used by passctl.
type Root struct {
	Metadata Metadata           `json:"metadata,omitzero"`
	Modules  map[string]*Module `json:"modules,omitempty"`
	// InstalledDrivers lists the driver integrations installed in this build.
	// If unset, all drivers are installed.
	InstalledDrivers []string           `json:"installed_drivers,omitempty"`
	Outputs          map[string]*Output `json:"outputs,omitempty"`
	Policy           *Policy            `json:"policy,omitempty"`
	Revision         string             `json:"revision,omitempty"`
	Secrets          map[string]*Secret `json:"secrets,omitempty"` // Schema validation overrides Secret to object type.
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for the Root struct.
// Map keys become the names of the modules, outputs and secrets, and secret
// references get bound to the secrets they name.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

func (r *Root) unmarshal() error {
	for name := range r.Secrets {
		r.Secrets[name] = cmp.Or(r.Secrets[name], &Secret{})
		r.Secrets[name].Name = name
	}

	for name := range r.Modules {
		r.Modules[name] = cmp.Or(r.Modules[name], &Module{})
		r.Modules[name].Name = name
		if err := r.Modules[name].validate(); err != nil {
			return fmt.Errorf("module %q: %w", name, err)
		}
	}

	if err := r.validateInstalledDrivers(); err != nil {
		return err
	}

	for name := range r.Outputs {
		r.Outputs[name] = cmp.Or(r.Outputs[name], &Output{})
		r.Outputs[name].Name = name
		for _, ref := range r.Outputs[name].ObjectStorage.credentials() {
			ref.value = r.Secrets[ref.Name]
		}
		if err := r.Outputs[name].validate(); err != nil {
			return fmt.Errorf("output %q: %w", name, err)
		}
	}

	return nil
}

func (r *Root) SortedModules() iter.Seq2[int, *Module] {
	return iterator(r.Modules)
}

func (r *Root) SortedOutputs() iter.Seq2[int, *Output] {
	return iterator(r.Outputs)
}

// Registry returns the driver registry of this build: the default registry
// with only the installed drivers available.
func (r *Root) Registry() *builder.DriverRegistry {
	reg := builder.DefaultDriverRegistry()
	if r.InstalledDrivers == nil {
		return reg
	}

	kinds := make([]builder.DriverKind, len(r.InstalledDrivers))
	for i, d := range r.InstalledDrivers {
		kinds[i] = builder.DriverKind(d)
	}
	return reg.WithInstalled(kinds...)
}

func iterator[V any](m map[string]V) func(func(int, V) bool) {
	names := slices.Sorted(maps.Keys(m))

	return func(yield func(int, V) bool) {
		for i, name := range names {
			if !yield(i, m[name]) {
				return
			}
		}
	}
}

// validateInstalledDrivers rejects installed drivers the registry has no
// provider for.
func (r *Root) validateInstalledDrivers() error {
	known := builder.DefaultDriverRegistry().Drivers()
	for _, d := range r.InstalledDrivers {
		if !slices.Contains(known, builder.DriverKind(d)) {
			return fmt.Errorf("installed driver %q: %w", d, &builder.UnknownDriverError{Driver: builder.DriverKind(d)})
		}
	}
	return nil
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	return rootSchema.Validate(config)
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}

// Module declares the persistence mapping of one resource bundle.
type Module struct {
	Name string `json:"-"`
	// Identity is the bundle type name. Defaults to the module name.
	Identity string `json:"identity,omitempty"`
	// ModelNamespace is the namespace of the mapped models. Modules without
	// one have no mapping and produce no compiler passes.
	ModelNamespace   *string   `json:"model_namespace,omitempty"`
	MappingFormat    string    `json:"mapping_format,omitempty" pattern:"^(?i:xml|yml|annotation)$"`
	Drivers          []string  `json:"drivers,omitempty" uniqueItems:"true"`
	Path             string    `json:"path,omitempty"`
	MappingDirectory string    `json:"mapping_directory,omitempty"`
	Labels           Labels    `json:"labels,omitempty"`
	Disabled         bool      `json:"disabled,omitempty"`
	_                struct{} `additionalProperties:"false"`
}

// Descriptor returns the module descriptor handed to the builder.
func (m *Module) Descriptor() (builder.ModuleDescriptor, error) {
	format := builder.MappingXML
	if m.MappingFormat != "" {
		var err error
		if format, err = builder.ParseMappingFormat(m.MappingFormat); err != nil {
			return builder.ModuleDescriptor{}, err
		}
	}

	drivers := make([]builder.DriverKind, len(m.Drivers))
	for i, d := range m.Drivers {
		drivers[i] = builder.DriverKind(d)
	}

	d := builder.ModuleDescriptor{
		Identity:         cmp.Or(m.Identity, m.Name),
		ModelNamespace:   m.ModelNamespace,
		MappingFormat:    format,
		SupportedDrivers: drivers,
		Path:             m.Path,
		MappingDirectory: m.MappingDirectory,
	}

	return d, d.Validate()
}

func (m *Module) validate() error {
	_, err := m.Descriptor()
	return err
}

type Labels map[string]string

// Output is a destination the container build plan is published to.
type Output struct {
	Name          string        `json:"-"`
	Format        string        `json:"format,omitempty" enum:"yaml,json"`
	ObjectStorage ObjectStorage `json:"object_storage" required:"true"`

	_ struct{} `additionalProperties:"false"`
}

func (o *Output) validate() error {
	if o.ObjectStorage == (ObjectStorage{}) {
		return errors.New("object storage is required")
	}
	return o.ObjectStorage.validate()
}

// Policy configures the Rego checks run against the build plan before it is
// published. Every result of Query is a violation.
type Policy struct {
	Paths []string `json:"paths"`
	Query string    `json:"query,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

const DefaultPolicyQuery = "data.passctl.deny"

func (p *Policy) PolicyQuery() string {
	return cmp.Or(p.Query, DefaultPolicyQuery)
}

// Files reads the policy modules.
func (p *Policy) Files() (map[string]string, error) {
	m := make(map[string]string, len(p.Paths))
	for _, path := range p.Paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
		}
		m[path] = string(data)
	}
	return m, nil
}

type ObjectStorage struct {
	AmazonS3          *AmazonS3          `json:"aws,omitempty"`
	GCPCloudStorage   *GCPCloudStorage   `json:"gcp,omitempty"`
	AzureBlobStorage  *AzureBlobStorage  `json:"azure,omitempty"`
	FileSystemStorage *FileSystemStorage `json:"filesystem,omitempty"`
}

func (o *ObjectStorage) validate() error {
	if err := o.AmazonS3.validate(); err != nil {
		return err
	}
	if err := o.GCPCloudStorage.validate(); err != nil {
		return err
	}
	if err := o.AzureBlobStorage.validate(); err != nil {
		return err
	}
	return o.FileSystemStorage.validate()
}

func (o *ObjectStorage) credentials() []*SecretRef {
	var refs []*SecretRef
	if o.AmazonS3 != nil && o.AmazonS3.Credentials != nil {
		refs = append(refs, o.AmazonS3.Credentials)
	}
	if o.GCPCloudStorage != nil && o.GCPCloudStorage.Credentials != nil {
		refs = append(refs, o.GCPCloudStorage.Credentials)
	}
	if o.AzureBlobStorage != nil && o.AzureBlobStorage.Credentials != nil {
		refs = append(refs, o.AzureBlobStorage.Credentials)
	}
	return refs
}

// AmazonS3 defines the configuration for an Amazon S3-compatible object storage.
type AmazonS3 struct {
	Bucket      string     `json:"bucket"`
	Key         string     `json:"key"`
	Region      string     `json:"region,omitempty"`
	Credentials *SecretRef `json:"credentials,omitempty"` // If nil, use default credentials chain.
	URL         string     `json:"url,omitempty"`         // for test purposes
}

// GCPCloudStorage defines the configuration for a Google Cloud Storage bucket.
type GCPCloudStorage struct {
	Project     string     `json:"project"`
	Bucket      string     `json:"bucket"`
	Object      string     `json:"object"`
	Credentials *SecretRef `json:"credentials,omitempty"` // If nil, use application default credentials.
}

// AzureBlobStorage defines the configuration for an Azure Blob Storage container.
type AzureBlobStorage struct {
	AccountURL  string     `json:"account_url"`
	Container   string     `json:"container"`
	Path        string     `json:"path"`
	Credentials *SecretRef `json:"credentials,omitempty"` // If nil, use the default Azure credential chain.
}

// FileSystemStorage writes the plan to a local file. "-" is standard output.
type FileSystemStorage struct {
	Path string `json:"path"`
}

func (a *AmazonS3) validate() error {
	if a == nil {
		return nil
	}

	if a.Bucket == "" {
		return errors.New("amazon s3 bucket is required")
	}

	if a.Key == "" {
		return errors.New("amazon s3 key is required")
	}

	if a.Region == "" && a.URL == "" {
		return errors.New("amazon s3 region is required")
	}

	return nil
}

func (g *GCPCloudStorage) validate() error {
	if g == nil {
		return nil
	}

	if g.Project == "" {
		return errors.New("gcp cloud storage project is required")
	}

	if g.Bucket == "" {
		return errors.New("gcp cloud storage bucket is required")
	}

	if g.Object == "" {
		return errors.New("gcp cloud storage object is required")
	}

	return nil
}

func (a *AzureBlobStorage) validate() error {
	if a == nil {
		return nil
	}

	if a.AccountURL == "" {
		return errors.New("azure blob storage account URL is required")
	}

	if a.Container == "" {
		return errors.New("azure blob storage container is required")
	}

	if a.Path == "" {
		return errors.New("azure blob storage path is required")
	}

	return nil
}

func (f *FileSystemStorage) validate() error {
	if f == nil {
		return nil
	}

	if f.Path == "" {
		return errors.New("filesystem storage path is required")
	}

	return nil
}

type SecretRef struct {
	Name  string `json:"-"`
	value *Secret
}

// Resolve retrieves the secret value from the secret store. If the secret is not found, an error is returned.
func (s *SecretRef) Resolve(ctx context.Context) (any, error) {
	if s.value == nil {
		return nil, fmt.Errorf("secret %q not found", s.Name)
	}

	return s.value.Typed(ctx)
}

func (s *SecretRef) MarshalYAML() (any, error) {
	if s.Name == "" {
		return nil, nil
	}
	return s.Name, nil
}

func (s *SecretRef) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}

	return json.Marshal(v)
}

func (s *SecretRef) UnmarshalYAML(bs []byte) error {
	if err := yaml.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("expected scalar node: %w", err)
	}
	return nil
}

func (s *SecretRef) UnmarshalJSON(bs []byte) error {
	if err := json.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("failed to unmarshal SecretRef: %w", err)
	}

	return nil
}
