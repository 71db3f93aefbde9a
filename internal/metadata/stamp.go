package metadata

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// Stamp replaces every metadata entry of the artifact at path with r. The
// rewritten model goes to a temp file in the same directory and is renamed
// over path, so a failure leaves either the old or the new file.
func Stamp(path string, r Record) error {
	return StampEntries(path, r.Entries())
}

func StampEntries(path string, entries []onnx.MetadataEntry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", melo.ErrArtifact, path, err)
	}

	stamped, err := onnx.ReplaceMetadata(raw, entries)
	if err != nil {
		return fmt.Errorf("%w: rewrite %s: %v", melo.ErrArtifact, path, err)
	}

	mode := os.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", melo.ErrArtifact, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(stamped); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %v", melo.ErrArtifact, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %v", melo.ErrArtifact, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod %s: %v", melo.ErrArtifact, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %v", melo.ErrArtifact, path, err)
	}

	slog.Debug("stamped metadata",
		"path", path,
		"entries", len(entries),
		"size", humanize.Bytes(uint64(len(stamped))),
	)
	return nil
}

// Read returns the artifact's metadata entries in file order.
func Read(path string) ([]onnx.MetadataEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", melo.ErrArtifact, path, err)
	}
	info, err := onnx.DecodeModel(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", melo.ErrArtifact, path, err)
	}
	return info.Metadata, nil
}

// ReadRecord reads and parses the artifact's metadata.
func ReadRecord(path string) (Record, error) {
	entries, err := Read(path)
	if err != nil {
		return Record{}, err
	}
	return Parse(entries)
}
