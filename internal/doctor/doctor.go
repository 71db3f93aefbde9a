// Package doctor provides environment preflight checks for meloexport.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// PythonVersion returns the helper interpreter's version (e.g. "3.10.12").
	PythonVersion VersionFunc
	// Tooling reports whether the interpreter can import melo, torch and onnx.
	Tooling func() error
	// SkipPython skips both Python checks (stamp, inspect and verify need no Python).
	SkipPython bool
	// Runtime returns the detected ONNX Runtime library, used by verify.
	Runtime VersionFunc
	// Files are paths that must exist, keyed by what they are.
	Files []File
}

// File is one configured path to check on disk.
type File struct {
	Label string
	Path  string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Python -------------------------------------------------------------
	if cfg.SkipPython {
		fmt.Fprintf(w, "%s python: skipped\n", PassMark)
	} else {
		checkPython(cfg, w, &res)
	}

	// ---- ONNX Runtime -------------------------------------------------------
	if cfg.Runtime != nil {
		lib, err := cfg.Runtime()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s\n", PassMark, lib)
		}
	}

	// ---- files --------------------------------------------------------------
	for _, f := range cfg.Files {
		if f.Path == "" {
			continue
		}
		if _, err := os.Stat(f.Path); err != nil {
			res.fail(fmt.Sprintf("%s %q: %v", f.Label, f.Path, err))
			fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, f.Label, f.Path)
		} else {
			fmt.Fprintf(w, "%s %s: %s\n", PassMark, f.Label, f.Path)
		}
	}

	return res
}

func checkPython(cfg Config, w io.Writer, res *Result) {
	pyVer, err := cfg.PythonVersion()
	if err != nil {
		res.fail(fmt.Sprintf("python version: %v", err))
		fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
		return
	}
	if pyErr := checkPythonVersion(pyVer); pyErr != nil {
		res.fail(fmt.Sprintf("python version: %v", pyErr))
		fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
		return
	}
	fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)

	if cfg.Tooling == nil {
		return
	}
	if err := cfg.Tooling(); err != nil {
		res.fail(fmt.Sprintf("python tooling: %v", err))
		fmt.Fprintf(w, "%s python tooling: %v\n", FailMark, err)
		return
	}
	fmt.Fprintf(w, "%s python tooling: melo, torch, onnx\n", PassMark)
}

// checkPythonVersion returns an error if ver is outside [3.9, 3.13), the
// range MeloTTS and its torch pin install on.
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 9 {
		return fmt.Errorf("requires Python >=3.9, got 3.%d", minor)
	}
	if minor >= 13 {
		return fmt.Errorf("requires Python <3.13, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
