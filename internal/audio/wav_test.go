package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEncodeWAV(t *testing.T) {
	t.Run("produces valid WAV with RIFF header", func(t *testing.T) {
		data, err := EncodeWAV(make([]float32, 100), 44100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(data) < 44 {
			t.Fatalf("WAV too short: %d bytes", len(data))
		}
		if string(data[:4]) != "RIFF" {
			t.Errorf("missing RIFF header")
		}
		if string(data[8:12]) != "WAVE" {
			t.Errorf("missing WAVE identifier")
		}
	})

	t.Run("header carries requested rate", func(t *testing.T) {
		data, err := EncodeWAV(make([]float32, 10), 44100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 44100 {
			t.Errorf("sample rate = %d, want 44100", rate)
		}
		if ch := binary.LittleEndian.Uint16(data[22:24]); ch != Channels {
			t.Errorf("channels = %d, want %d", ch, Channels)
		}
		if bits := binary.LittleEndian.Uint16(data[34:36]); bits != BitDepth {
			t.Errorf("bit depth = %d, want %d", bits, BitDepth)
		}
	})

	t.Run("rejects bad rate", func(t *testing.T) {
		if _, err := EncodeWAV(nil, 0); err == nil {
			t.Fatal("expected error for zero sample rate")
		}
	})
}

func TestDecodeEncodeRoundtrip(t *testing.T) {
	original := []float32{0.0, 0.5, -0.5, 1.0, -1.0}
	encoded, err := EncodeWAV(original, 22050)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	decoded, rate, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if rate != 22050 {
		t.Fatalf("rate = %d, want 22050", rate)
	}
	if len(decoded) != len(original) {
		t.Fatalf("roundtrip: got %d samples, want %d", len(decoded), len(original))
	}

	// 16-bit quantization introduces error up to ~1/32768.
	const tolerance = 1.0 / 32768.0 * 2
	for i, want := range original {
		if got := decoded[i]; math.Abs(float64(got-want)) > tolerance {
			t.Errorf("sample[%d] = %f, want %f (tolerance %f)", i, got, want, tolerance)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	encoded, err := EncodeWAV([]float32{2.5, -3}, 16000)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, _, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if decoded[0] < 0.99 || decoded[1] > -0.99 {
		t.Fatalf("expected clamped samples, got %v", decoded)
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte(strings.Repeat("x", 64)),
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := DecodeWAV(data); !errors.Is(err, ErrInvalidWAV) {
				t.Fatalf("expected ErrInvalidWAV, got %v", err)
			}
		})
	}
}

func TestWriteWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.wav")
	if err := WriteWAVFile(path, []float32{0, 0.1, 0.2}, 44100); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	samples, rate, err := DecodeWAV(data)
	if err != nil || rate != 44100 || len(samples) != 3 {
		t.Fatalf("got %d samples at %d Hz, err %v", len(samples), rate, err)
	}
}

func TestAnalyze(t *testing.T) {
	st := Analyze([]float32{0, 0.5, -1.5, 0.5}, 4)
	if st.Samples != 4 || st.Duration != time.Second {
		t.Fatalf("unexpected size %+v", st)
	}
	if st.Peak != 1.5 || st.Clipped != 1 || !st.NonZero {
		t.Fatalf("unexpected stats %+v", st)
	}
	if want := math.Sqrt((0.25 + 2.25 + 0.25) / 4); math.Abs(st.RMS-want) > 1e-9 {
		t.Fatalf("rms = %f, want %f", st.RMS, want)
	}
	if s := Analyze(nil, 0); s.NonZero || s.RMS != 0 || s.String() == "" {
		t.Fatalf("empty stats %+v", s)
	}
}
