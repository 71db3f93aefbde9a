package doctor_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/go-melo-export/internal/doctor"
)

var errNotFound = errors.New("not found")

func okVersion(v string) doctor.VersionFunc {
	return func() (string, error) { return v, nil }
}

func hasFailureContaining(failures []string, sub string) bool {
	for _, f := range failures {
		if strings.Contains(f, sub) {
			return true
		}
	}
	return false
}

func TestRun_AllChecksPass(t *testing.T) {
	cfg := doctor.Config{
		PythonVersion: okVersion("3.10.12"),
		Tooling:       func() error { return nil },
		Runtime:       okVersion("/usr/lib/libonnxruntime.so (1.20.1)"),
		Files:         []doctor.File{{Label: "export helper", Path: "doctor.go"}},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}
	for _, want := range []string{"python tooling", "onnx runtime", "export helper"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_PythonVersionRange(t *testing.T) {
	tests := []struct {
		ver  string
		fail bool
	}{
		{"3.8.18", true},
		{"3.9.0", false},
		{"3.11.9", false},
		{"3.12.1", false},
		{"3.13.0", true},
		{"2.7.18", true},
		{"garbage", true},
	}
	for _, tt := range tests {
		t.Run(tt.ver, func(t *testing.T) {
			var out strings.Builder
			result := doctor.Run(doctor.Config{PythonVersion: okVersion(tt.ver)}, &out)
			if result.Failed() != tt.fail {
				t.Fatalf("Failed() = %v, want %v (%v)", result.Failed(), tt.fail, result.Failures())
			}
		})
	}
}

func TestRun_ToolingMissingFails(t *testing.T) {
	cfg := doctor.Config{
		PythonVersion: okVersion("3.10.0"),
		Tooling:       func() error { return errors.New("No module named 'melo'") },
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "python tooling") {
		t.Fatalf("expected tooling failure, got %v", result.Failures())
	}
}

func TestRun_ToolingSkippedWhenVersionFails(t *testing.T) {
	called := false
	cfg := doctor.Config{
		PythonVersion: func() (string, error) { return "", errNotFound },
		Tooling:       func() error { called = true; return nil },
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !result.Failed() || called {
		t.Fatalf("failed=%v tooling called=%v", result.Failed(), called)
	}
}

func TestRun_RuntimeMissingFails(t *testing.T) {
	cfg := doctor.Config{
		SkipPython: true,
		Runtime:    func() (string, error) { return "", errNotFound },
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "onnx runtime") {
		t.Fatalf("expected runtime failure, got %v", result.Failures())
	}
	if !strings.Contains(out.String(), doctor.FailMark) || !strings.Contains(out.String(), "python: skipped") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestRun_Files(t *testing.T) {
	cfg := doctor.Config{
		SkipPython: true,
		Files: []doctor.File{
			{Label: "hparams", Path: "/nonexistent/config.json"},
			{Label: "languages file", Path: ""},
		},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	failures := result.Failures()
	if len(failures) != 1 || !hasFailureContaining(failures, "hparams") {
		t.Fatalf("failures = %v", failures)
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	r.AddFailure("verify: boom")
	if !r.Failed() || r.Failures()[0] != "verify: boom" {
		t.Fatalf("result = %v", r.Failures())
	}
}
