package audio

import (
	"fmt"
	"math"
	"time"
)

// Stats summarizes a waveform for the verify and probe reports.
type Stats struct {
	Samples  int
	Duration time.Duration
	Peak     float32
	RMS      float64
	NonZero  bool
	Clipped  int // samples outside [-1, 1]
}

func Analyze(samples []float32, sampleRate int) Stats {
	st := Stats{Samples: len(samples)}
	if sampleRate > 0 {
		st.Duration = time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))
	}
	var sum float64
	for _, s := range samples {
		a := float32(math.Abs(float64(s)))
		if a > st.Peak {
			st.Peak = a
		}
		if a > 1 {
			st.Clipped++
		}
		if s != 0 {
			st.NonZero = true
		}
		sum += float64(s) * float64(s)
	}
	if len(samples) > 0 {
		st.RMS = math.Sqrt(sum / float64(len(samples)))
	}
	return st
}

func (s Stats) String() string {
	return fmt.Sprintf("%d samples (%s), peak %.3f, rms %.4f, clipped %d",
		s.Samples, s.Duration.Round(time.Millisecond), s.Peak, s.RMS, s.Clipped)
}
