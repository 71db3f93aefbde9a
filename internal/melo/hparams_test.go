package melo

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleConfig = `{
  "train": {"segment_size": 16384},
  "data": {"sampling_rate": 44100, "add_blank": true, "spk2id": {"KR": 0}},
  "num_tones": 16,
  "symbols": ["_", "a", "b"]
}`

func TestLoadHyperparams(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	h, err := LoadHyperparams(p)
	if err != nil {
		t.Fatalf("LoadHyperparams: %v", err)
	}
	if !reflect.DeepEqual(h.Symbols, []string{"_", "a", "b"}) {
		t.Fatalf("symbols = %v", h.Symbols)
	}
	if !h.Data.AddBlank || h.Data.SamplingRate != 44100 || h.NumSpeakers() != 1 || h.NumTones != 16 {
		t.Fatalf("unexpected hyperparameters: %+v", h)
	}
	if !h.HasSpeaker(0) || h.HasSpeaker(1) {
		t.Fatal("HasSpeaker mismatch")
	}
}

func TestHyperparamsValidate(t *testing.T) {
	valid := func() *Hyperparams {
		return &Hyperparams{
			Symbols: []string{"_", "a"},
			Data:    DataHparams{SamplingRate: 44100, Spk2ID: map[string]int{"KR": 0}},
		}
	}

	tests := []struct {
		name   string
		mutate func(h *Hyperparams)
	}{
		{"empty symbols", func(h *Hyperparams) { h.Symbols = nil }},
		{"duplicate symbol", func(h *Hyperparams) { h.Symbols = []string{"_", "a", "_"} }},
		{"zero sample rate", func(h *Hyperparams) { h.Data.SamplingRate = 0 }},
		{"no speakers", func(h *Hyperparams) { h.Data.Spk2ID = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := valid()
			tt.mutate(h)
			if err := h.Validate(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid hyperparameters rejected: %v", err)
	}
	var nilH *Hyperparams
	if err := nilH.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil hyperparameters: expected ErrConfig, got %v", err)
	}
}

func TestParseHyperparamsRejectsBadJSON(t *testing.T) {
	if _, err := ParseHyperparams([]byte("{")); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if _, err := LoadHyperparams(filepath.Join(t.TempDir(), "nope.json")); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing file: expected ErrConfig, got %v", err)
	}
}

func TestSpeakersOrderedByID(t *testing.T) {
	h := &Hyperparams{Data: DataHparams{Spk2ID: map[string]int{"EN-US": 1, "EN-BR": 2, "EN-Default": 0}}}
	if got := h.Speakers(); !reflect.DeepEqual(got, []string{"EN-Default", "EN-US", "EN-BR"}) {
		t.Fatalf("Speakers() = %v", got)
	}
}
