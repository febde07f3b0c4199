package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config string `help:"Config file path"`

	StringField string   `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField   bool     `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int      `toml:"test.int_field" env:"INT_FIELD"`
	FloatField  float64  `toml:"test.float_field" env:"FLOAT_FIELD"`
	SliceField  []string `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 29.97
slice_field = ["item1", "item2", "item3"]

[nested]
value = "nested value"
`)

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("StringField = %q, want %q", config.StringField, "hello world")
	}
	if !config.BoolField {
		t.Errorf("BoolField = %v, want true", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("IntField = %d, want 42", config.IntField)
	}
	if config.FloatField != 29.97 {
		t.Errorf("FloatField = %v, want 29.97", config.FloatField)
	}
	if want := []string{"item1", "item2", "item3"}; !reflect.DeepEqual(config.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, want)
	}
	if config.NestedString != "nested value" {
		t.Errorf("NestedString = %q, want %q", config.NestedString, "nested value")
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("YUVCAM_STRING_FIELD", "env string")
	t.Setenv("YUVCAM_BOOL_FIELD", "true")
	t.Setenv("YUVCAM_INT_FIELD", "123")
	t.Setenv("YUVCAM_FLOAT_FIELD", "0.5")
	t.Setenv("YUVCAM_SLICE_FIELD", " a , b ,c")
	t.Setenv("YUVCAM_NESTED_VALUE", "env nested")

	config := &TestConfig{}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" || !config.BoolField || config.IntField != 123 || config.FloatField != 0.5 {
		t.Errorf("scalar fields = %+v", config)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(config.SliceField, want) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, want)
	}
	if config.NestedString != "env nested" {
		t.Errorf("NestedString = %q, want %q", config.NestedString, "env nested")
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
`)
	t.Setenv("YUVCAM_STRING_FIELD", "env override")
	t.Setenv("YUVCAM_BOOL_FIELD", "false")

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env override" {
		t.Errorf("StringField = %q, want env override", config.StringField)
	}
	if config.BoolField {
		t.Error("BoolField should be false from the environment")
	}
	if config.IntField != 100 {
		t.Errorf("IntField = %d, want 100 from TOML", config.IntField)
	}
}

func TestLoadConfigExplicitFlagWins(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "toml value"
int_field = 7
`)
	t.Setenv("YUVCAM_STRING_FIELD", "env value")

	config := &TestConfig{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&config.StringField, "string-field", "", "")
	cmd.Flags().IntVar(&config.IntField, "int-field", 0, "")
	if err := cmd.Flags().Parse([]string{"--string-field", "flag value"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(config, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.StringField != "flag value" {
		t.Errorf("StringField = %q, want the explicit flag value", config.StringField)
	}
	if config.IntField != 7 {
		t.Errorf("IntField = %d, want 7 since the flag was not set", config.IntField)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"capture": map[string]any{
			"device": map[string]any{
				"path": "/dev/video0",
			},
			"buffers": int64(4),
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"capture.buffers", int64(4)},
		{"capture.device.path", "/dev/video0"},
		{"nonexistent", nil},
		{"capture.nonexistent", nil},
		{"root.child", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := getNestedValue(data, tt.path); got != tt.expected {
				t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestSetFieldValueIgnoresMismatchedTypes(t *testing.T) {
	type target struct {
		Name  string
		Count int
	}
	s := &target{Name: "keep", Count: 3}
	v := reflect.ValueOf(s).Elem()

	setFieldValue(v.FieldByName("Name"), int64(5))
	setFieldValue(v.FieldByName("Count"), "five")
	setFieldValueFromString(v.FieldByName("Count"), "not a number")

	if s.Name != "keep" || s.Count != 3 {
		t.Errorf("mismatched values were assigned: %+v", s)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":               "port",
		"LoggingLevel":       "logging-level",
		"CaptureWaitTimeout": "capture-wait-timeout",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &TestConfig{Config: filepath.Join(t.TempDir(), "nonexistent.toml")}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[test\ninvalid toml syntax\n")
	if err := LoadConfig(&TestConfig{Config: path}, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadLoggingModuleLevels(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
capture = "debug"

[logging.modules]
api = "error"
`)

	cfg := LoadLoggingConfig(path)

	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("level/format = %q/%q, want warn/json", cfg.Level, cfg.Format)
	}
	want := map[string]string{"capture": "debug", "api": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.toml")} {
		cfg := LoadLoggingConfig(path)
		if cfg.Level != "info" || cfg.Format != "text" || len(cfg.Modules) != 0 {
			t.Errorf("LoadLoggingConfig(%q) = %+v, want info/text defaults", path, cfg)
		}
	}
}

func TestLoadReloadable(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		wantFrameSize int
		wantLevel     string
	}{
		{"frame size set", "[capture]\nframe_size = 2\n[logging]\nlevel = \"debug\"\n", 2, "debug"},
		{"frame size unset", "[logging]\nlevel = \"error\"\n", -1, "error"},
		{"empty file", "", -1, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := LoadReloadable(writeConfig(t, tt.content))
			if err != nil {
				t.Fatalf("LoadReloadable() error = %v", err)
			}
			if r.FrameSize != tt.wantFrameSize {
				t.Errorf("FrameSize = %d, want %d", r.FrameSize, tt.wantFrameSize)
			}
			if r.Logging.Level != tt.wantLevel {
				t.Errorf("Logging.Level = %q, want %q", r.Logging.Level, tt.wantLevel)
			}
		})
	}

	if _, err := LoadReloadable(writeConfig(t, "[capture\n")); err == nil {
		t.Error("LoadReloadable() should report parse errors")
	}
}
