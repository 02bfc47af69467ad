package config_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/bundlekit/passctl/internal/config"
	"github.com/bundlekit/passctl/pkg/builder"
)

func TestParseSecretResolve(t *testing.T) {

	result, err := config.Parse([]byte(`{
		outputs: {
			plans: {
				object_storage: {
					aws: {
						bucket: plans,
						key: passes.yaml,
						region: eu-west-1,
						credentials: secret1
					}
				}
			}
		},
		secrets: {
			secret1: {
				type: aws_auth,
				access_key_id: AKIA,
				secret_access_key: '${PASSCTL_SECRET_KEY}'
			}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("PASSCTL_SECRET_KEY", "s3cr3t")

	value, err := result.Outputs["plans"].ObjectStorage.AmazonS3.Credentials.Resolve(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	exp := config.SecretAWS{
		AccessKeyID:     "AKIA",
		SecretAccessKey: "s3cr3t",
	}

	if !reflect.DeepEqual(value, exp) {
		t.Fatalf("expected: %v\n\ngot: %v", exp, value)
	}
}

func TestSecretRefNotFound(t *testing.T) {
	result, err := config.Parse([]byte(`{
		outputs: {
			plans: {object_storage: {gcp: {project: p, bucket: b, object: o, credentials: missing}}}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	_, err = result.Outputs["plans"].ObjectStorage.GCPCloudStorage.Credentials.Resolve(t.Context())
	if err == nil || err.Error() != `secret "missing" not found` {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestModuleDefaults(t *testing.T) {

	cfg, err := config.Parse([]byte(`
modules:
  SyliusAttributeBundle:
    model_namespace: Sylius\Component\Attribute\Model
    drivers: [doctrine/orm, doctrine/phpcr-odm]
    path: /app/vendor/sylius/attribute-bundle
  product:
    identity: Sylius\Bundle\ProductBundle\SyliusProductBundle
    model_namespace: Sylius\Component\Product\Model
    mapping_format: YML
    mapping_directory: Entity
    drivers: [doctrine/orm]
  SyliusCoreBundle:
`))
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, m := range cfg.SortedModules() {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"SyliusAttributeBundle", "SyliusCoreBundle", "product"}, names); diff != "" {
		t.Fatalf("unexpected module order (-want,+got):\n%s", diff)
	}

	ns := `Sylius\Component\Attribute\Model`
	exp := builder.ModuleDescriptor{
		Identity:         "SyliusAttributeBundle",
		ModelNamespace:   &ns,
		MappingFormat:    builder.MappingXML,
		SupportedDrivers: []builder.DriverKind{builder.DriverDoctrineORM, builder.DriverDoctrinePHPCRODM},
		Path:             "/app/vendor/sylius/attribute-bundle",
	}

	d, err := cfg.Modules["SyliusAttributeBundle"].Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(exp, d); diff != "" {
		t.Fatalf("unexpected descriptor (-want,+got):\n%s", diff)
	}

	d, err = cfg.Modules["product"].Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	if d.MappingFormat != builder.MappingYAML || d.Prefix() != "sylius_product" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}

	d, err = cfg.Modules["SyliusCoreBundle"].Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	if d.ModelNamespace != nil || len(d.SupportedDrivers) != 0 {
		t.Fatalf("expected empty descriptor, got %+v", d)
	}
}

func TestParseInvalidModules(t *testing.T) {
	cases := []struct {
		note   string
		config string
		exp    string
	}{
		{
			note:   "unsupported mapping format",
			config: `{modules: {a: {mapping_format: php}}}`,
			exp:    "/modules/a/mapping_format",
		},
		{
			note:   "duplicate drivers",
			config: `{modules: {a: {drivers: [doctrine/orm, doctrine/orm]}}}`,
			exp:    "/modules/a/drivers",
		},
		{
			note:   "unknown field",
			config: `{modules: {a: {format: xml}}}`,
			exp:    "format",
		},
		{
			note:   "output without storage",
			config: `{outputs: {a: {format: yaml}}}`,
			exp:    "object_storage",
		},
		{
			note:   "invalid output format",
			config: `{outputs: {a: {format: toml, object_storage: {filesystem: {path: out}}}}}`,
			exp:    "/outputs/a/format",
		},
		{
			note:   "unknown installed driver",
			config: `{installed_drivers: [doctrine/orm, doctrine/dbal]}`,
			exp:    `installed driver "doctrine/dbal": unknown driver "doctrine/dbal"`,
		},
		{
			note:   "s3 output without region",
			config: `{outputs: {a: {object_storage: {aws: {bucket: b, key: k}}}}}`,
			exp:    "amazon s3 region is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.config))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.exp) {
				t.Fatalf("expected error containing %q, got: %v", tc.exp, err)
			}
		})
	}
}

func TestValidateYAML(t *testing.T) {
	{ // Empty modules are kept for documentation.
		cfg := []byte(`
modules:
  empty-module:
`)
		if _, err := config.Parse(cfg); err != nil {
			t.Fatal(err)
		}
	}
	{
		cfg := []byte(`
outputs:
  empty-output:
secrets:
  empty-secret:
`)
		_, err := config.Parse(cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		exp := []string{
			`- at '/outputs/empty-output': got null, want object`,
			`- at '/secrets/empty-secret': got null, want object`,
		}
		for _, line := range exp {
			if !strings.Contains(err.Error(), line) {
				t.Errorf("expected error with line %q", line)
			}
		}
		if t.Failed() {
			t.Logf("error: %q", err.Error())
		}
	}
}

func TestModuleMarshallingRoundtrip(t *testing.T) {

	cfg, err := config.Parse([]byte(`{
		revision: '$BUILD_ID',
		installed_drivers: [doctrine/orm],
		modules: {
			SyliusProductBundle: {
				model_namespace: 'Sylius\Component\Product\Model',
				mapping_format: annotation,
				drivers: [doctrine/orm, doctrine/mongodb-odm],
				path: /srv/product,
				labels: {team: catalog}
			}
		},
		outputs: {
			local: {format: json, object_storage: {filesystem: {path: plan.json}}}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	bs, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg2, err := config.Parse(bs)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(cfg.Modules, cfg2.Modules, cmpopts.IgnoreUnexported(config.Module{})); diff != "" {
		t.Fatalf("unexpected modules (-want,+got):\n%s", diff)
	}

	if diff := cmp.Diff(cfg.InstalledDrivers, cfg2.InstalledDrivers); diff != "" {
		t.Fatalf("unexpected installed drivers (-want,+got):\n%s", diff)
	}

	if cfg2.Revision != "$BUILD_ID" {
		t.Fatalf("unexpected revision %q", cfg2.Revision)
	}
}

func TestRegistryInstalledDrivers(t *testing.T) {
	for _, tc := range []struct {
		note      string
		config    string
		available map[builder.DriverKind]bool
	}{
		{
			note:   "all installed by default",
			config: `{}`,
			available: map[builder.DriverKind]bool{
				builder.DriverDoctrineORM:        true,
				builder.DriverDoctrineMongoDBODM: true,
				builder.DriverDoctrinePHPCRODM:   true,
			},
		},
		{
			note:   "orm only",
			config: `{installed_drivers: [doctrine/orm]}`,
			available: map[builder.DriverKind]bool{
				builder.DriverDoctrineORM:        true,
				builder.DriverDoctrineMongoDBODM: false,
				builder.DriverDoctrinePHPCRODM:   false,
			},
		},
		{
			note:   "none installed",
			config: `{installed_drivers: []}`,
			available: map[builder.DriverKind]bool{
				builder.DriverDoctrineORM:        false,
				builder.DriverDoctrineMongoDBODM: false,
				builder.DriverDoctrinePHPCRODM:   false,
			},
		},
	} {
		t.Run(tc.note, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tc.config))
			if err != nil {
				t.Fatal(err)
			}

			reg := cfg.Registry()
			for kind, exp := range tc.available {
				p, err := reg.ProviderFor(kind)
				if err != nil {
					t.Fatal(err)
				}
				if p.Available != exp {
					t.Errorf("%v: expected available=%v", kind, exp)
				}
			}
		})
	}
}

func TestSortedIteratesKeyOrder(t *testing.T) {
	// Hand-built roots carry no injected names and may hold nil entries.
	root := config.Root{
		Modules: map[string]*config.Module{
			"b": {Identity: "BBundle"},
			"a": nil,
			"c": {Identity: "CBundle"},
		},
		Outputs: map[string]*config.Output{
			"z": {},
			"y": nil,
		},
	}

	var modules []string
	for _, m := range root.SortedModules() {
		if m == nil {
			modules = append(modules, "<nil>")
			continue
		}
		modules = append(modules, m.Identity)
	}
	if diff := cmp.Diff([]string{"<nil>", "BBundle", "CBundle"}, modules); diff != "" {
		t.Fatalf("unexpected module order (-want,+got):\n%s", diff)
	}

	var outputs int
	for i := range root.SortedOutputs() {
		if i != outputs {
			t.Fatalf("expected index %d, got %d", outputs, i)
		}
		outputs++
	}
	if outputs != 2 {
		t.Fatalf("expected 2 outputs, got %d", outputs)
	}
}

func TestPolicyDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`{policy: {paths: [a.rego]}}`))
	if err != nil {
		t.Fatal(err)
	}

	if q := cfg.Policy.PolicyQuery(); q != config.DefaultPolicyQuery {
		t.Fatalf("unexpected query %q", q)
	}

	if diff := cmp.Diff([]string{"a.rego"}, cfg.Policy.Paths); diff != "" {
		t.Fatalf("unexpected paths (-want,+got):\n%s", diff)
	}

	if _, err := cfg.Policy.Files(); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}
