package emotion

import (
	"fmt"
	"time"
)

// Type is the closed set of primary emotions the classifier may report.
type Type string

const (
	Engaged   Type = "engaged"
	Bored     Type = "bored"
	Confused  Type = "confused"
	Amused    Type = "amused"
	Tense     Type = "tense"
	Surprised Type = "surprised"
	Neutral   Type = "neutral"
)

// Valid reports whether t is one of the known emotion types.
func (t Type) Valid() bool {
	switch t {
	case Engaged, Bored, Confused, Amused, Tense, Surprised, Neutral:
		return true
	}
	return false
}

// Attention is where the viewer is looking.
type Attention string

const (
	AttentionScreen    Attention = "screen"
	AttentionAway      Attention = "away"
	AttentionUncertain Attention = "uncertain"
)

// Valid reports whether a is one of the known attention states.
func (a Attention) Valid() bool {
	switch a {
	case AttentionScreen, AttentionAway, AttentionUncertain:
		return true
	}
	return false
}

// Trend of viewer intensity across the accumulator window.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// Reading is a single classified observation of the viewer. Immutable value.
type Reading struct {
	PrimaryEmotion Type      `json:"primary_emotion"`
	Intensity      int       `json:"intensity"`
	Attention      Attention `json:"attention"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate checks the closed enums and numeric ranges of a decoded reading.
func (r Reading) Validate() error {
	if !r.PrimaryEmotion.Valid() {
		return fmt.Errorf("unknown primary emotion %q", r.PrimaryEmotion)
	}
	if r.Intensity < 1 || r.Intensity > 10 {
		return fmt.Errorf("intensity %d out of range 1-10", r.Intensity)
	}
	if !r.Attention.Valid() {
		return fmt.Errorf("unknown attention %q", r.Attention)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range 0-1", r.Confidence)
	}
	return nil
}

// NeutralReading is the hard fallback used whenever classification fails.
func NeutralReading() Reading {
	return Reading{
		PrimaryEmotion: Neutral,
		Intensity:      5,
		Attention:      AttentionUncertain,
		Confidence:     0,
		Timestamp:      time.Now(),
	}
}

// Summary is the derived statistical view of the accumulator window. It is
// recomputed on demand and never stored.
type Summary struct {
	DominantEmotion Type    `json:"dominant_emotion"`
	Trend           string  `json:"trend"`
	IntensityAvg    float64 `json:"intensity_avg"`
	AttentionScore  float64 `json:"attention_score"`
	Volatility      float64 `json:"volatility"`
	ReadingCount    int     `json:"reading_count"`
}
