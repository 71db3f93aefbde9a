// Package metadata builds, stamps and parses the key/value record a
// sherpa-onnx style loader reads from a MeloTTS artifact.
package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// LexiconStrategy tells the loader which text frontend to build.
type LexiconStrategy int

const (
	LexiconNone LexiconStrategy = iota
	// LexiconJieba selects the lexicon frontend (metadata jieba=1).
	LexiconJieba
)

// MinMeloVersion is the oldest schema version loaders accept for MeloTTS.
const MinMeloVersion = 2

// Key names in stamping order.
const (
	KeyModelType   = "model_type"
	KeyComment     = "comment"
	KeyVersion     = "version"
	KeyLanguage    = "language"
	KeyAddBlank    = "add_blank"
	KeyNSpeakers   = "n_speakers"
	KeyJieba       = "jieba"
	KeySampleRate  = "sample_rate"
	KeyBertDim     = "bert_dim"
	KeyJaBertDim   = "ja_bert_dim"
	KeySpeakerID   = "speaker_id"
	KeyLangID      = "lang_id"
	KeyToneStart   = "tone_start"
	KeyURL         = "url"
	KeyLicense     = "license"
	KeyDescription = "description"
	KeyIsMeloTTS   = "is_melo_tts"
)

var keyOrder = []string{
	KeyModelType, KeyComment, KeyVersion, KeyLanguage, KeyAddBlank,
	KeyNSpeakers, KeyJieba, KeySampleRate, KeyBertDim, KeyJaBertDim,
	KeySpeakerID, KeyLangID, KeyToneStart, KeyURL, KeyLicense,
	KeyDescription, KeyIsMeloTTS,
}

// Keys returns the record's key set in stamping order.
func Keys() []string {
	return append([]string(nil), keyOrder...)
}

// Record is the typed metadata record. Flags stay typed here and only
// become "0"/"1" strings in Entries.
type Record struct {
	ModelType   string
	Comment     string
	Version     int
	Language    string
	AddBlank    bool
	NSpeakers   int
	Lexicon     LexiconStrategy
	SampleRate  int
	BertDim     int
	JaBertDim   int
	SpeakerID   int
	LangID      int
	ToneStart   int
	URL         string
	License     string
	Description string
	IsMeloTTS   bool
}

// Build assembles the record for one export. jaBertDim is the secondary
// feature width when it is an artifact input and 0 otherwise.
func Build(lang melo.Language, hp *melo.Hyperparams, cfg config.MetadataConfig, speakerID, jaBertDim int) Record {
	comment := cfg.Comment
	if comment == "" {
		comment = "melo_" + lang.ArtifactName()
	}
	lex := LexiconNone
	if cfg.Jieba {
		lex = LexiconJieba
	}
	return Record{
		ModelType:   cfg.ModelType,
		Comment:     comment,
		Version:     cfg.Version,
		Language:    lang.Name,
		AddBlank:    hp.Data.AddBlank,
		NSpeakers:   hp.NumSpeakers(),
		Lexicon:     lex,
		SampleRate:  hp.Data.SamplingRate,
		BertDim:     melo.BertDim,
		JaBertDim:   jaBertDim,
		SpeakerID:   speakerID,
		LangID:      lang.ID,
		ToneStart:   lang.ToneStart,
		URL:         cfg.URL,
		License:     cfg.License,
		Description: cfg.Description,
		IsMeloTTS:   true,
	}
}

// Entries serializes the record in key order with string values.
func (r Record) Entries() []onnx.MetadataEntry {
	values := map[string]string{
		KeyModelType:   r.ModelType,
		KeyComment:     r.Comment,
		KeyVersion:     strconv.Itoa(r.Version),
		KeyLanguage:    r.Language,
		KeyAddBlank:    boolString(r.AddBlank),
		KeyNSpeakers:   strconv.Itoa(r.NSpeakers),
		KeyJieba:       boolString(r.Lexicon == LexiconJieba),
		KeySampleRate:  strconv.Itoa(r.SampleRate),
		KeyBertDim:     strconv.Itoa(r.BertDim),
		KeyJaBertDim:   strconv.Itoa(r.JaBertDim),
		KeySpeakerID:   strconv.Itoa(r.SpeakerID),
		KeyLangID:      strconv.Itoa(r.LangID),
		KeyToneStart:   strconv.Itoa(r.ToneStart),
		KeyURL:         r.URL,
		KeyLicense:     r.License,
		KeyDescription: r.Description,
		KeyIsMeloTTS:   boolString(r.IsMeloTTS),
	}
	out := make([]onnx.MetadataEntry, 0, len(keyOrder))
	for _, k := range keyOrder {
		out = append(out, onnx.MetadataEntry{Key: k, Value: values[k]})
	}
	return out
}

// Validate checks the fields a loader cannot do without.
func (r Record) Validate() error {
	switch {
	case r.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive", melo.ErrConfig)
	case r.NSpeakers <= 0:
		return fmt.Errorf("%w: n_speakers must be positive", melo.ErrConfig)
	case r.Language == "":
		return fmt.Errorf("%w: language is empty", melo.ErrConfig)
	case r.Comment == "":
		return fmt.Errorf("%w: comment is empty", melo.ErrConfig)
	case r.IsMeloTTS && !IsMeloComment(r.Comment):
		return fmt.Errorf("%w: comment %q must contain %q for loaders to pick the MeloTTS front end", melo.ErrConfig, r.Comment, meloMarker)
	case r.IsMeloTTS && r.Version < MinMeloVersion:
		return fmt.Errorf("%w: MeloTTS metadata version %d < %d", melo.ErrConfig, r.Version, MinMeloVersion)
	}
	return nil
}

// Parse reads entries back the way the downstream loader does: sample_rate,
// n_speakers, language and comment are required, a comment mentioning
// "melo" marks a MeloTTS model, and MeloTTS needs version >= 2.
func Parse(entries []onnx.MetadataEntry) (Record, error) {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}

	var r Record
	var err error
	for _, key := range []string{KeySampleRate, KeyNSpeakers, KeyLanguage, KeyComment} {
		if _, ok := m[key]; !ok {
			return Record{}, fmt.Errorf("%w: metadata key %q is missing", melo.ErrContract, key)
		}
	}

	r.ModelType = m[KeyModelType]
	r.Comment = m[KeyComment]
	r.Language = m[KeyLanguage]
	r.URL = m[KeyURL]
	r.License = m[KeyLicense]
	r.Description = m[KeyDescription]

	ints := []struct {
		key string
		dst *int
	}{
		{KeySampleRate, &r.SampleRate},
		{KeyNSpeakers, &r.NSpeakers},
		{KeyVersion, &r.Version},
		{KeyBertDim, &r.BertDim},
		{KeyJaBertDim, &r.JaBertDim},
		{KeySpeakerID, &r.SpeakerID},
		{KeyLangID, &r.LangID},
		{KeyToneStart, &r.ToneStart},
	}
	for _, f := range ints {
		if *f.dst, err = intValue(m, f.key); err != nil {
			return Record{}, err
		}
	}

	if r.AddBlank, err = flagValue(m, KeyAddBlank); err != nil {
		return Record{}, err
	}
	jieba, err := flagValue(m, KeyJieba)
	if err != nil {
		return Record{}, err
	}
	if jieba {
		r.Lexicon = LexiconJieba
	}
	// Loaders ignore is_melo_tts and go by the comment alone.
	r.IsMeloTTS = IsMeloComment(r.Comment)

	if r.IsMeloTTS && r.Version < MinMeloVersion {
		return Record{}, fmt.Errorf("%w: MeloTTS model metadata version %d, loaders expect >= %d", melo.ErrContract, r.Version, MinMeloVersion)
	}
	return r, nil
}

const meloMarker = "melo"

// IsMeloComment reports whether a loader treats a model with this comment as
// MeloTTS.
func IsMeloComment(comment string) bool {
	return strings.Contains(comment, meloMarker)
}

func intValue(m map[string]string, key string) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: metadata %s=%q is not an integer", melo.ErrContract, key, raw)
	}
	return v, nil
}

func flagValue(m map[string]string, key string) (bool, error) {
	v, err := intValue(m, key)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
