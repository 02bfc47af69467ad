package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bundlekit/passctl/internal/container"
)

const testConfig = `
installed_drivers: [doctrine/orm]
modules:
  SyliusAttributeBundle:
    model_namespace: Sylius\Component\Attribute\Model
    drivers: [doctrine/orm, doctrine/mongodb-odm]
    path: /app/attribute
`

func writeConfig(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// resetFlags restores the flag defaults between executions of the shared
// root command.
func resetFlags(c *cobra.Command) {
	for _, sub := range c.Commands() {
		sub.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCommand)
	var stdout bytes.Buffer
	RootCommand.SetOut(&stdout)
	RootCommand.SetErr(&bytes.Buffer{})
	RootCommand.SetArgs(args)
	err := RootCommand.ExecuteContext(t.Context())
	return stdout.String(), err
}

func TestResolveCommand(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"config.yaml": testConfig,
		"patch.yaml":  `[{op: add, path: /modules/SyliusAttributeBundle/mapping_format, value: yml}]`,
	})

	out, err := execute(t, "resolve", "-c", filepath.Join(dir, "config.yaml"), "--patch", filepath.Join(dir, "patch.yaml"), "-o", "json")
	if err != nil {
		t.Fatal(err)
	}

	var plan container.Plan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}

	if len(plan.Passes) != 1 {
		t.Fatalf("expected one pass, got %d", len(plan.Passes))
	}
	if got := plan.Passes[0].Pass.Method; got != "createYmlMappingDriver" {
		t.Fatalf("expected patched mapping format, got method %q", got)
	}
}

func TestPrintPlanTable(t *testing.T) {
	c := container.New()
	dir := writeConfig(t, map[string]string{"config.yaml": testConfig})

	out, err := execute(t, "resolve", "-c", filepath.Join(dir, "config.yaml"), "-o", "table")
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []string{"sylius_attribute.driver.doctrine/orm", "DoctrineOrmMappingsPass", "1 compiler pass(es)"} {
		if !strings.Contains(out, s) {
			t.Errorf("expected %q in:\n%s", s, out)
		}
	}

	var buf bytes.Buffer
	if err := printPlan(&buf, c.Plan(), outputTable); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "0 compiler pass(es)") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestBuildCommandFailsOnUnknownDriver(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"config.yaml": testConfig + `  Broken:
    model_namespace: Broken\Model
    drivers: [propel]
`,
	})
	plan := filepath.Join(dir, "plan.yaml")
	metricsFile := filepath.Join(dir, "metrics.txt")

	_, err := execute(t, "build", "-c", filepath.Join(dir, "config.yaml"), "--metrics-file", metricsFile, "--modules", "*")
	if err == nil || !strings.Contains(err.Error(), `unknown driver "propel"`) {
		t.Fatalf("expected unknown driver error, got %v", err)
	}

	if _, err := os.Stat(plan); !os.IsNotExist(err) {
		t.Fatal("expected no plan to be written")
	}

	bs, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bs), `passctl_module_resolve_failed_total{error_type="unknown_driver",module="Broken"}`) {
		t.Fatalf("unexpected metrics:\n%s", bs)
	}
}
