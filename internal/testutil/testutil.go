// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireONNXRuntime(t)
//	    artifact := testutil.RequireArtifact(t)
//	    ...
//	}
package testutil

import (
	"io"
	"os"
	"os/exec"
	"testing"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the MELOEXPORT_ORT_LIB env var, then the
// ORT_LIBRARY_PATH env var, then common system library paths.
func RequireONNXRuntime(tb testing.TB) {
	tb.Helper()

	for _, env := range []string{"MELOEXPORT_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set MELOEXPORT_ORT_LIB or ORT_LIBRARY_PATH")
}

// RequireMeloPython skips the test unless the interpreter named by
// MELOEXPORT_PYTHON (default python3) can import melo, torch and onnx. It
// returns the interpreter.
func RequireMeloPython(tb testing.TB) string {
	tb.Helper()

	py := os.Getenv("MELOEXPORT_PYTHON")
	if py == "" {
		py = "python3"
	}
	if _, err := exec.LookPath(py); err != nil {
		tb.Skipf("python interpreter %q not available", py)
		return ""
	}

	check := exec.Command(py, "-c", "import melo, torch, onnx")
	check.Stdout = io.Discard
	check.Stderr = io.Discard
	if err := check.Run(); err != nil {
		tb.Skipf("python %q cannot import melo, torch, onnx; set MELOEXPORT_PYTHON to override", py)
		return ""
	}
	return py
}

// RequireArtifact skips the test unless MELOEXPORT_TEST_ARTIFACT names an
// existing exported model, and returns its path.
func RequireArtifact(tb testing.TB) string {
	tb.Helper()

	p := os.Getenv("MELOEXPORT_TEST_ARTIFACT")
	if p == "" {
		tb.Skipf("set MELOEXPORT_TEST_ARTIFACT to an exported model to run this test")
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		tb.Skipf("artifact %q not available: %v", p, err)
		return ""
	}
	return p
}
