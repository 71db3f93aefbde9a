package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/example/go-melo-export/internal/config"
)

type RuntimeInfo struct {
	LibraryPath string
	Version     string
	APIVersion  uint32
}

var ErrRuntimeNotFound = errors.New("unable to detect ONNX Runtime library path")

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// runtimeCandidates are probed in order when neither config nor env name a library.
var runtimeCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
}

// DetectRuntime resolves the ORT shared library from config, then
// MELOEXPORT_ORT_LIB and ORT_LIBRARY_PATH, then common install locations.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := cfg.ORTLibraryPath
	for _, env := range []string{"MELOEXPORT_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if path != "" {
			break
		}
		path = os.Getenv(env)
	}

	if path == "" {
		for _, c := range runtimeCandidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, ErrRuntimeNotFound
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	version := cfg.ORTVersion
	if version == "" {
		version = os.Getenv("ORT_VERSION")
	}
	if version == "" {
		version = inferVersionFromPath(path)
	}
	if version == "" {
		version = "unknown"
	}

	api := uint32(cfg.ORTAPIVersion)
	if api == 0 {
		api = 23
	}

	return RuntimeInfo{LibraryPath: path, Version: version, APIVersion: api}, nil
}

// RunnerConfig converts detected runtime info into runner settings.
func (i RuntimeInfo) RunnerConfig() RunnerConfig {
	return RunnerConfig{LibraryPath: i.LibraryPath, APIVersion: i.APIVersion}
}

func inferVersionFromPath(path string) string {
	name := filepath.Base(path)
	if m := versionPattern.FindStringSubmatch(name); len(m) == 2 {
		return m[1]
	}

	return ""
}
