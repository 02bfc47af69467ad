package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestMerge(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a/modules.yaml": `
modules:
  sylius_attribute:
    model_namespace: Sylius\Component\Attribute\Model
    drivers: [doctrine/orm]
`,
		"b/outputs.yml": `
modules:
  sylius_product:
    model_namespace: Sylius\Component\Product\Model
outputs:
  local:
    object_storage:
      filesystem:
        path: plan.yaml
`,
		"b/README.md": "not a config file",
	})

	bs, err := Merge([]string{root}, true)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse(bs)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(cfg.Modules))
	}
	if cfg.Outputs["local"] == nil {
		t.Fatal("expected local output")
	}
}

func TestMergeConflict(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"1.yaml": "modules: {a: {mapping_format: xml}}",
		"2.yaml": "modules: {a: {mapping_format: yml}}",
	})

	_, err := Merge([]string{root}, true)
	if err == nil || !strings.Contains(err.Error(), "/modules/a/mapping_format") {
		t.Fatalf("expected conflict error, got %v", err)
	}

	bs, err := Merge([]string{root}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bs), "mapping_format: yml") {
		t.Fatalf("expected last document to win, got:\n%s", bs)
	}
}
