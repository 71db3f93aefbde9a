package metadata

import (
	"errors"
	"reflect"
	"testing"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

func koreanRecord() Record {
	hp := &melo.Hyperparams{
		Symbols: []string{"_", "a", "b"},
		Data:    melo.DataHparams{AddBlank: true, SamplingRate: 44100, Spk2ID: map[string]int{"KR": 0}},
	}
	lang := melo.Language{Key: "KR", Name: "Korean", ID: 4, ToneStart: 11}
	return Build(lang, hp, config.DefaultConfig().Metadata, 0, 0)
}

func TestBuild(t *testing.T) {
	r := koreanRecord()
	if r.Comment != "melo_korean" || r.Language != "Korean" || r.ModelType != "melo-vits" {
		t.Fatalf("unexpected identity fields %+v", r)
	}
	if r.Version != 2 || r.Lexicon != LexiconJieba || !r.IsMeloTTS {
		t.Fatalf("unexpected flags %+v", r)
	}
	if r.BertDim != 1024 || r.JaBertDim != 0 || r.LangID != 4 || r.ToneStart != 11 || r.NSpeakers != 1 {
		t.Fatalf("unexpected numeric fields %+v", r)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestEntriesOrderAndValues(t *testing.T) {
	r := koreanRecord()
	r.JaBertDim = 768
	entries := r.Entries()

	var keys []string
	got := map[string]string{}
	for _, e := range entries {
		keys = append(keys, e.Key)
		got[e.Key] = e.Value
	}
	want := []string{
		"model_type", "comment", "version", "language", "add_blank",
		"n_speakers", "jieba", "sample_rate", "bert_dim", "ja_bert_dim",
		"speaker_id", "lang_id", "tone_start", "url", "license",
		"description", "is_melo_tts",
	}
	if !reflect.DeepEqual(keys, want) || !reflect.DeepEqual(Keys(), want) {
		t.Fatalf("keys = %v", keys)
	}

	for k, v := range map[string]string{
		"version": "2", "add_blank": "1", "n_speakers": "1", "jieba": "1",
		"sample_rate": "44100", "bert_dim": "1024", "ja_bert_dim": "768",
		"speaker_id": "0", "lang_id": "4", "tone_start": "11", "is_melo_tts": "1",
	} {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	r := koreanRecord()
	got, err := Parse(r.Entries())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(got, r) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, r)
	}
}

func TestParseLoaderRules(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{
			"sample_rate": "44100", "n_speakers": "1", "language": "Korean",
			"comment": "melo_korean", "version": "2",
		}
	}
	toEntries := func(m map[string]string) []onnx.MetadataEntry {
		var out []onnx.MetadataEntry
		for k, v := range m {
			out = append(out, onnx.MetadataEntry{Key: k, Value: v})
		}
		return out
	}

	if r, err := Parse(toEntries(base())); err != nil || !r.IsMeloTTS {
		t.Fatalf("minimal record: %+v, %v", r, err)
	}

	tests := []struct {
		name   string
		mutate func(m map[string]string)
	}{
		{"missing sample_rate", func(m map[string]string) { delete(m, "sample_rate") }},
		{"missing n_speakers", func(m map[string]string) { delete(m, "n_speakers") }},
		{"missing language", func(m map[string]string) { delete(m, "language") }},
		{"missing comment", func(m map[string]string) { delete(m, "comment") }},
		{"old melo version", func(m map[string]string) { m["version"] = "1" }},
		{"no version", func(m map[string]string) { delete(m, "version") }},
		{"bad integer", func(m map[string]string) { m["lang_id"] = "four" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			if _, err := Parse(toEntries(m)); !errors.Is(err, melo.ErrContract) {
				t.Fatalf("expected ErrContract, got %v", err)
			}
		})
	}

	t.Run("non-melo comment needs no version", func(t *testing.T) {
		m := base()
		m["comment"] = "piper"
		delete(m, "version")
		r, err := Parse(toEntries(m))
		if err != nil || r.IsMeloTTS {
			t.Fatalf("got %+v, %v", r, err)
		}
	})

	t.Run("is_melo_tts flag without melo comment", func(t *testing.T) {
		m := base()
		m["comment"] = "kss_korean"
		m["is_melo_tts"] = "1"
		r, err := Parse(toEntries(m))
		if err != nil || r.IsMeloTTS {
			t.Fatalf("got %+v, %v", r, err)
		}
	})
}

func TestBuildWithNonMeloCommentFailsValidate(t *testing.T) {
	hp := &melo.Hyperparams{
		Symbols: []string{"_"},
		Data:    melo.DataHparams{SamplingRate: 44100, Spk2ID: map[string]int{"KR": 0}},
	}
	cfg := config.DefaultConfig().Metadata
	cfg.Comment = "kss_korean"
	r := Build(melo.Language{Key: "KR", Name: "Korean", ID: 4}, hp, cfg, 0, 0)
	if err := r.Validate(); !errors.Is(err, melo.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestRecordValidate(t *testing.T) {
	tests := map[string]func(r *Record){
		"sample rate": func(r *Record) { r.SampleRate = 0 },
		"speakers":    func(r *Record) { r.NSpeakers = 0 },
		"language":    func(r *Record) { r.Language = "" },
		"comment":     func(r *Record) { r.Comment = "" },
		"version":     func(r *Record) { r.Version = 1 },
		"no melo":     func(r *Record) { r.Comment = "kss_korean" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := koreanRecord()
			mutate(&r)
			if err := r.Validate(); !errors.Is(err, melo.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
