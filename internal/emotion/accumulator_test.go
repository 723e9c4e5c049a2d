package emotion

import (
	"math"
	"testing"
	"time"
)

func reading(e Type, intensity int, att Attention) Reading {
	return Reading{
		PrimaryEmotion: e,
		Intensity:      intensity,
		Attention:      att,
		Confidence:     0.9,
		Timestamp:      time.Now(),
	}
}

func TestWindowNeverExceedsCap(t *testing.T) {
	a := NewAccumulator()
	for i := 0; i < 30; i++ {
		a.Add(reading(Engaged, 5, AttentionScreen))
		if a.Len() > windowSize {
			t.Fatalf("window grew to %d after %d adds", a.Len(), i+1)
		}
	}
	if a.Len() != windowSize {
		t.Errorf("expected window at cap %d, got %d", windowSize, a.Len())
	}
}

func TestBaselineSurvivesSlide(t *testing.T) {
	a := NewAccumulator()
	a.Add(reading(Neutral, 2, AttentionScreen))
	for i := 0; i < 20; i++ {
		a.Add(reading(Engaged, 5, AttentionScreen))
	}
	if a.baseline == nil {
		t.Fatal("baseline lost")
	}
	if a.baseline.Intensity != 2 {
		t.Errorf("expected baseline intensity 2, got %d", a.baseline.Intensity)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := NewAccumulator().Summarize()

	if s.DominantEmotion != Neutral {
		t.Errorf("expected neutral dominant, got %q", s.DominantEmotion)
	}
	if s.Trend != TrendStable {
		t.Errorf("expected stable trend, got %q", s.Trend)
	}
	if s.IntensityAvg != 5.0 {
		t.Errorf("expected avg 5.0, got %v", s.IntensityAvg)
	}
	if s.AttentionScore != 0 || s.Volatility != 0 || s.ReadingCount != 0 {
		t.Errorf("expected zeroed summary, got %+v", s)
	}
}

func TestSummarizeDominantAndAttention(t *testing.T) {
	a := NewAccumulator()
	a.Add(reading(Tense, 6, AttentionScreen))
	a.Add(reading(Tense, 7, AttentionAway))
	a.Add(reading(Bored, 3, AttentionScreen))
	a.Add(reading(Tense, 6, AttentionScreen))

	s := a.Summarize()
	if s.DominantEmotion != Tense {
		t.Errorf("expected dominant tense, got %q", s.DominantEmotion)
	}
	if s.ReadingCount != 4 {
		t.Errorf("expected count 4, got %d", s.ReadingCount)
	}
	if want := 0.75; s.AttentionScore != want {
		t.Errorf("expected attention %v, got %v", want, s.AttentionScore)
	}
	if want := 5.5; s.IntensityAvg != want {
		t.Errorf("expected avg %v, got %v", want, s.IntensityAvg)
	}
}

func TestSummarizeTrend(t *testing.T) {
	cases := []struct {
		name        string
		intensities []int
		want        string
	}{
		{"rising", []int{2, 2, 2, 5, 6, 7}, TrendRising},
		{"falling", []int{8, 8, 8, 3, 3, 3}, TrendFalling},
		{"stable", []int{5, 5, 5, 5, 6, 5}, TrendStable},
		{"too few samples", []int{2, 2, 9, 9, 9}, TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAccumulator()
			for _, n := range tc.intensities {
				a.Add(reading(Neutral, n, AttentionScreen))
			}
			if got := a.Summarize().Trend; got != tc.want {
				t.Errorf("expected trend %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSummarizeVolatility(t *testing.T) {
	a := NewAccumulator()
	a.Add(reading(Neutral, 4, AttentionScreen))
	if v := a.Summarize().Volatility; v != 0 {
		t.Errorf("expected zero volatility with one reading, got %v", v)
	}

	a.Add(reading(Neutral, 8, AttentionScreen))
	// Sample stddev of {4, 8}.
	want := math.Sqrt(8)
	if v := a.Summarize().Volatility; math.Abs(v-want) > 1e-9 {
		t.Errorf("expected volatility %v, got %v", want, v)
	}
}

func TestShouldTrigger(t *testing.T) {
	t.Run("false below three readings", func(t *testing.T) {
		a := NewAccumulator()
		a.Add(reading(Engaged, 5, AttentionScreen))
		a.Add(reading(Engaged, 5, AttentionScreen))
		if a.ShouldTrigger() {
			t.Error("expected no trigger with two readings")
		}
	})

	t.Run("three matching emotions", func(t *testing.T) {
		a := NewAccumulator()
		for i := 0; i < 3; i++ {
			a.Add(reading(Amused, 5, AttentionScreen))
		}
		if !a.ShouldTrigger() {
			t.Error("expected trigger on three matching emotions")
		}
	})

	t.Run("intensity spike from baseline", func(t *testing.T) {
		a := NewAccumulator()
		a.Add(reading(Neutral, 2, AttentionScreen))
		a.Add(reading(Engaged, 3, AttentionScreen))
		a.Add(reading(Tense, 8, AttentionScreen))
		if !a.ShouldTrigger() {
			t.Error("expected trigger on intensity spike past baseline")
		}
	})

	t.Run("true once warmed up", func(t *testing.T) {
		// Mixed emotions, no spikes, full attention: only the
		// minimum-data condition fires.
		a := NewAccumulator()
		a.Add(reading(Engaged, 5, AttentionScreen))
		a.Add(reading(Bored, 5, AttentionScreen))
		a.Add(reading(Amused, 5, AttentionScreen))
		if !a.ShouldTrigger() {
			t.Error("expected trigger once three readings exist")
		}
	})
}
