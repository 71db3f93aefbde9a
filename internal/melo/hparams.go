package melo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Hyperparams is the subset of a MeloTTS config.json the export needs.
type Hyperparams struct {
	Symbols      []string    `json:"symbols"`
	NumTones     int         `json:"num_tones,omitempty"`
	NumLanguages int         `json:"num_languages,omitempty"`
	Data         DataHparams `json:"data"`
}

type DataHparams struct {
	AddBlank     bool           `json:"add_blank"`
	SamplingRate int            `json:"sampling_rate"`
	Spk2ID       map[string]int `json:"spk2id"`
}

// LoadHyperparams reads and validates a MeloTTS config.json.
func LoadHyperparams(path string) (*Hyperparams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read hyperparameters: %v", ErrConfig, err)
	}
	return ParseHyperparams(raw)
}

func ParseHyperparams(raw []byte) (*Hyperparams, error) {
	var h Hyperparams
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: decode hyperparameters: %v", ErrConfig, err)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// Validate enforces what the vocabulary and metadata stages rely on. Symbols
// must be unique because their position is their token id.
func (h *Hyperparams) Validate() error {
	if h == nil || len(h.Symbols) == 0 {
		return fmt.Errorf("%w: symbol table is empty or absent", ErrConfig)
	}
	seen := make(map[string]int, len(h.Symbols))
	for i, s := range h.Symbols {
		if j, dup := seen[s]; dup {
			return fmt.Errorf("%w: symbol %q appears at index %d and %d", ErrConfig, s, j, i)
		}
		seen[s] = i
	}
	if h.Data.SamplingRate <= 0 {
		return fmt.Errorf("%w: sampling_rate must be positive, got %d", ErrConfig, h.Data.SamplingRate)
	}
	if len(h.Data.Spk2ID) == 0 {
		return fmt.Errorf("%w: spk2id is empty", ErrConfig)
	}
	return nil
}

func (h *Hyperparams) NumSpeakers() int {
	return len(h.Data.Spk2ID)
}

// Speakers returns speaker names ordered by id.
func (h *Hyperparams) Speakers() []string {
	names := make([]string, 0, len(h.Data.Spk2ID))
	for name := range h.Data.Spk2ID {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := h.Data.Spk2ID[names[i]], h.Data.Spk2ID[names[j]]
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
	return names
}

// HasSpeaker reports whether id is one of the ids in spk2id.
func (h *Hyperparams) HasSpeaker(id int) bool {
	for _, v := range h.Data.Spk2ID {
		if v == id {
			return true
		}
	}
	return false
}
