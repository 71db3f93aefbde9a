// Package vocab writes and reads the tokens.txt vocabulary file: one
// "<symbol> <index>" line per symbol, in the model's own symbol order.
package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-melo-export/internal/melo"
)

// Entry is one parsed vocabulary line.
type Entry struct {
	Symbol string
	ID     int
}

// Dump writes symbols in order. It never reorders, deduplicates or filters.
func Dump(w io.Writer, symbols []string) error {
	if len(symbols) == 0 {
		return fmt.Errorf("%w: symbol table is empty or absent", melo.ErrConfig)
	}

	bw := bufio.NewWriter(w)
	for i, s := range symbols {
		if _, err := fmt.Fprintf(bw, "%s %d\n", s, i); err != nil {
			return fmt.Errorf("write symbol %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush vocabulary: %w", err)
	}
	return nil
}

// WriteFile dumps symbols to path, creating parent directories as needed.
func WriteFile(path string, symbols []string) error {
	if len(symbols) == 0 {
		return fmt.Errorf("%w: symbol table is empty or absent", melo.ErrConfig)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", melo.ErrArtifact, dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", melo.ErrArtifact, path, err)
	}
	if err := Dump(f, symbols); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", melo.ErrArtifact, path, err)
	}
	return nil
}

// Parse reads a vocabulary file and checks that ids start at 0 and increase
// by one per line. The id is split off at the last space so symbols that are
// themselves a space survive.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	s := bufio.NewScanner(r)
	for line := 0; s.Scan(); line++ {
		text := s.Text()
		cut := strings.LastIndexByte(text, ' ')
		if cut < 0 {
			return nil, fmt.Errorf("line %d: missing id in %q", line+1, text)
		}
		id, err := strconv.Atoi(text[cut+1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad id: %w", line+1, err)
		}
		if id != line {
			return nil, fmt.Errorf("line %d: id %d out of sequence", line+1, id)
		}
		entries = append(entries, Entry{Symbol: text[:cut], ID: id})
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return entries, nil
}

func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
