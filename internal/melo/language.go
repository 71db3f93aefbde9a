package melo

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Language is one row of the language-id and tone-start tables.
type Language struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	ID        int    `yaml:"id"`
	ToneStart int    `yaml:"tone_start"`
}

// ArtifactName is the lower-case display name used in artifact file names.
func (l Language) ArtifactName() string {
	return strings.ToLower(strings.ReplaceAll(l.Name, " ", "_"))
}

// LanguageTable maps upper-case language keys to their table rows.
type LanguageTable map[string]Language

// DefaultLanguageTable mirrors MeloTTS language_id_map and
// language_tone_start_map.
func DefaultLanguageTable() LanguageTable {
	rows := []Language{
		{Key: "ZH", Name: "Chinese", ID: 0, ToneStart: 0},
		{Key: "JP", Name: "Japanese", ID: 1, ToneStart: 6},
		{Key: "EN", Name: "English", ID: 2, ToneStart: 7},
		{Key: "ZH_MIX_EN", Name: "Chinese", ID: 3, ToneStart: 0},
		{Key: "KR", Name: "Korean", ID: 4, ToneStart: 11},
		{Key: "ES", Name: "Spanish", ID: 5, ToneStart: 12},
		{Key: "SP", Name: "Spanish", ID: 5, ToneStart: 12},
		{Key: "FR", Name: "French", ID: 6, ToneStart: 13},
	}
	t := make(LanguageTable, len(rows))
	for _, r := range rows {
		t[r.Key] = r
	}
	return t
}

type languageFile struct {
	Languages []Language `yaml:"languages"`
}

// LoadLanguageTable reads a YAML table of the form
//
//	languages:
//	  - {key: KR, name: Korean, id: 4, tone_start: 11}
//
// The file replaces the default table entirely.
func LoadLanguageTable(path string) (LanguageTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read language table: %v", ErrConfig, err)
	}

	var f languageFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse language table %s: %v", ErrConfig, path, err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("%w: language table %s has no entries", ErrConfig, path)
	}

	t := make(LanguageTable, len(f.Languages))
	for i, l := range f.Languages {
		l.Key = strings.ToUpper(strings.TrimSpace(l.Key))
		if l.Key == "" {
			return nil, fmt.Errorf("%w: language table %s: entry %d has no key", ErrConfig, path, i)
		}
		if l.Name == "" {
			return nil, fmt.Errorf("%w: language table %s: %s has no name", ErrConfig, path, l.Key)
		}
		if l.ID < 0 || l.ToneStart < 0 {
			return nil, fmt.Errorf("%w: language table %s: %s has negative id or tone_start", ErrConfig, path, l.Key)
		}
		if _, dup := t[l.Key]; dup {
			return nil, fmt.Errorf("%w: language table %s: duplicate key %s", ErrConfig, path, l.Key)
		}
		t[l.Key] = l
	}
	return t, nil
}

// Lookup resolves a language key case-insensitively.
func (t LanguageTable) Lookup(key string) (Language, error) {
	norm := strings.ToUpper(strings.TrimSpace(key))
	if l, ok := t[norm]; ok {
		return l, nil
	}
	return Language{}, &UnknownLanguageError{Key: key, Known: t.Keys()}
}

func (t LanguageTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
