package melo

import (
	"errors"
	"fmt"
)

// Error classes shared by every pipeline stage. Stages wrap them with %w so
// callers can branch with errors.Is.
var (
	ErrConfig   = errors.New("configuration error")
	ErrContract = errors.New("shape/contract error")
	ErrArtifact = errors.New("artifact I/O error")
)

// UnknownLanguageError reports a language key missing from the id/tone tables.
type UnknownLanguageError struct {
	Key   string
	Known []string
}

func (e *UnknownLanguageError) Error() string {
	return fmt.Sprintf("unknown language %q (known: %v)", e.Key, e.Known)
}

func (e *UnknownLanguageError) Unwrap() error {
	return ErrConfig
}
