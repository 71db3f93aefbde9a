package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their defaults.
func newFlagBinder(defaults Config) *fakeBinder {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	return &fakeBinder{fs: fs}
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Paths.OutDir != "." {
		t.Errorf("Paths.OutDir = %q; want %q", cfg.Paths.OutDir, ".")
	}

	if cfg.Paths.TokensFile != "tokens.txt" {
		t.Errorf("Paths.TokensFile = %q; want %q", cfg.Paths.TokensFile, "tokens.txt")
	}

	if cfg.Export.Language != "KR" {
		t.Errorf("Export.Language = %q; want %q", cfg.Export.Language, "KR")
	}

	if cfg.Export.Variant != VariantDefault {
		t.Errorf("Export.Variant = %q; want %q", cfg.Export.Variant, VariantDefault)
	}

	if cfg.Export.Opset != 13 {
		t.Errorf("Export.Opset = %d; want 13", cfg.Export.Opset)
	}

	if cfg.Export.SeqLen != 60 {
		t.Errorf("Export.SeqLen = %d; want 60", cfg.Export.SeqLen)
	}

	if cfg.Export.BatchSize != 1 {
		t.Errorf("Export.BatchSize = %d; want 1", cfg.Export.BatchSize)
	}

	if cfg.Metadata.ModelType != "melo-vits" {
		t.Errorf("Metadata.ModelType = %q; want %q", cfg.Metadata.ModelType, "melo-vits")
	}

	if cfg.Metadata.Version != 2 {
		t.Errorf("Metadata.Version = %d; want 2", cfg.Metadata.Version)
	}

	if !cfg.Metadata.Jieba {
		t.Error("Metadata.Jieba = false; want true")
	}

	if cfg.Runtime.ORTAPIVersion != 23 {
		t.Errorf("Runtime.ORTAPIVersion = %d; want 23", cfg.Runtime.ORTAPIVersion)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}
}

// --- NormalizeVariant ---

func TestNormalizeVariant(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"default canonical", "default", VariantDefault, false},
		{"ja-bert canonical", "ja-bert", VariantJaBert, false},
		{"base alias", "base", VariantDefault, false},
		{"underscore alias", "ja_bert", VariantJaBert, false},
		{"mixed case", "JA-BERT", VariantJaBert, false},
		{"padded", "  default  ", VariantDefault, false},
		{"empty defaults", "", VariantDefault, false},
		{"whitespace defaults", "   ", VariantDefault, false},
		{"invalid value", "bert2", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVariant(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeVariant(%q) = %q, nil; want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizeVariant(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeVariant(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"paths-out-dir", "."},
		{"paths-tokens-file", "tokens.txt"},
		{"language", "KR"},
		{"variant", "default"},
		{"opset", "13"},
		{"seq-len", "60"},
		{"metadata-version", "2"},
		{"metadata-jieba", "true"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestFlagKeysMatchRegisteredFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flagKeys entry %q -> --%s has no registered flag", fk.key, fk.flag)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	cfg, err := Load(LoadOptions{
		Cmd:      binder,
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Export.Language != defaults.Export.Language {
		t.Errorf("Export.Language = %q; want %q", cfg.Export.Language, defaults.Export.Language)
	}

	if cfg.Export.Opset != defaults.Export.Opset {
		t.Errorf("Export.Opset = %d; want %d", cfg.Export.Opset, defaults.Export.Opset)
	}

	if cfg.Metadata.URL != defaults.Metadata.URL {
		t.Errorf("Metadata.URL = %q; want %q", cfg.Metadata.URL, defaults.Metadata.URL)
	}

	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, defaults.LogLevel)
	}
}

func TestLoad_NilCmdUsesDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Export.SeqLen != 60 {
		t.Errorf("Export.SeqLen = %d; want 60", cfg.Export.SeqLen)
	}

	if cfg.Paths.TokensFile != "tokens.txt" {
		t.Errorf("Paths.TokensFile = %q; want %q", cfg.Paths.TokensFile, "tokens.txt")
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	err := fs.Parse([]string{
		"--language=EN",
		"--variant=ja_bert",
		"--seq-len=32",
		"--log-level=debug",
		"--metadata-jieba=false",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{
		Cmd:      &fakeBinder{fs: fs},
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Export.Language != "EN" {
		t.Errorf("Export.Language = %q; want %q", cfg.Export.Language, "EN")
	}

	if cfg.Export.Variant != VariantJaBert {
		t.Errorf("Export.Variant = %q; want %q", cfg.Export.Variant, VariantJaBert)
	}

	if cfg.Export.SeqLen != 32 {
		t.Errorf("Export.SeqLen = %d; want 32", cfg.Export.SeqLen)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}

	if cfg.Metadata.Jieba {
		t.Error("Metadata.Jieba = true; want false")
	}
}

func TestLoad_ORTLibAlias(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse([]string{"--ort-lib=/opt/ort/libonnxruntime.so"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: &fakeBinder{fs: fs}, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Runtime.ORTLibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("Runtime.ORTLibraryPath = %q; want %q", cfg.Runtime.ORTLibraryPath, "/opt/ort/libonnxruntime.so")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MELOEXPORT_LOG_LEVEL", "warn")
	t.Setenv("MELOEXPORT_EXPORT_LANGUAGE", "JP")
	t.Setenv("ORT_LIBRARY_PATH", "/env/libonnxruntime.so")

	cfg, err := Load(LoadOptions{
		Defaults: DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Export.Language != "JP" {
		t.Errorf("Export.Language = %q; want %q", cfg.Export.Language, "JP")
	}

	if cfg.Runtime.ORTLibraryPath != "/env/libonnxruntime.so" {
		t.Errorf("Runtime.ORTLibraryPath = %q; want %q", cfg.Runtime.ORTLibraryPath, "/env/libonnxruntime.so")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "meloexport.yaml")

	content := `
log_level: error
export:
  language: ES
  variant: ja-bert
  opset: 17
metadata:
  license: Apache-2.0
`

	err := os.WriteFile(cfgFile, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Export.Language != "ES" {
		t.Errorf("Export.Language = %q; want %q", cfg.Export.Language, "ES")
	}

	if cfg.Export.Variant != VariantJaBert {
		t.Errorf("Export.Variant = %q; want %q", cfg.Export.Variant, VariantJaBert)
	}

	if cfg.Export.Opset != 17 {
		t.Errorf("Export.Opset = %d; want 17", cfg.Export.Opset)
	}

	if cfg.Metadata.License != "Apache-2.0" {
		t.Errorf("Metadata.License = %q; want %q", cfg.Metadata.License, "Apache-2.0")
	}

	// Untouched keys keep their defaults.
	if cfg.Export.SeqLen != 60 {
		t.Errorf("Export.SeqLen = %d; want 60", cfg.Export.SeqLen)
	}
}

func TestLoad_FlagBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "meloexport.yaml")

	if err := os.WriteFile(cfgFile, []byte("export:\n  language: ES\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	if err := binder.fs.Parse([]string{"--language=FR"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(LoadOptions{Cmd: binder, ConfigFile: cfgFile, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Export.Language != "FR" {
		t.Errorf("Export.Language = %q; want %q", cfg.Export.Language, "FR")
	}
}

func TestLoad_InvalidVariant(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(defaults)

	if err := binder.fs.Parse([]string{"--variant=unknown"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	_, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err == nil {
		t.Error("Load() = nil; want error for unknown variant")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bad.yaml")

	err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/meloexport.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
