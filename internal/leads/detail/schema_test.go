package detail

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry([]string{"notes", "companyName"}, map[string][]string{
		"mortgage": {"propertyValue", "interestPeriod"},
	})
}

func TestFilter_KeepsCommonAndSourceFields(t *testing.T) {
	got := testRegistry().Filter("mortgage", map[string]any{
		"notes":         "bel na 17:00",
		"propertyValue": 450000,
		"unknown":       "dropped",
	})
	want := map[string]any{
		"notes":         "bel na 17:00",
		"propertyValue": 450000,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilter_UnknownSourceFallsBackToCommon(t *testing.T) {
	got := testRegistry().Filter("never-configured", map[string]any{
		"companyName":   "Acme BV",
		"propertyValue": 450000,
	})
	want := map[string]any{"companyName": "Acme BV"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilter_EmptyPayload(t *testing.T) {
	got := testRegistry().Filter("mortgage", nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", got)
	}
}

func TestFilter_SourceFieldNotSharedAcrossSources(t *testing.T) {
	r := NewRegistry(nil, map[string][]string{
		"mortgage":  {"propertyValue"},
		"insurance": {"coverageType"},
	})
	got := r.Filter("insurance", map[string]any{"propertyValue": 450000})
	if len(got) != 0 {
		t.Fatalf("expected field of another source dropped, got %v", got)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Filter("anything", map[string]any{
		"notes":   "kept",
		"dropped": true,
	})
	if _, ok := got["notes"]; !ok {
		t.Fatalf("expected default common field kept, got %v", got)
	}
	if _, ok := got["dropped"]; ok {
		t.Fatalf("expected unknown field dropped, got %v", got)
	}
}

func TestLoad_ParsesYAMLSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	content := []byte(`common:
  - notes
sources:
  mortgage:
    - propertyValue
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Filter("mortgage", map[string]any{
		"notes":         "x",
		"propertyValue": 1,
		"companyName":   "not in this schema",
	})
	want := map[string]any{"notes": "x", "propertyValue": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	if err := os.WriteFile(path, []byte("common: [unclosed"), 0o644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
