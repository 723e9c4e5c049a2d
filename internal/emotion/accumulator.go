package emotion

import "math"

// windowSize caps the rolling history; older readings slide out.
const windowSize = 8

// Accumulator keeps a bounded rolling window of readings for one session.
// The first reading ever seen is pinned as the baseline for intensity-delta
// checks and survives even after the window slides past it.
//
// An accumulator belongs to exactly one session handler and is not safe for
// concurrent use.
type Accumulator struct {
	history  []Reading
	baseline *Reading
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends a reading, sliding the window if it is full.
func (a *Accumulator) Add(r Reading) {
	if a.baseline == nil {
		b := r
		a.baseline = &b
	}
	a.history = append(a.history, r)
	if len(a.history) > windowSize {
		a.history = a.history[len(a.history)-windowSize:]
	}
}

// Len returns the number of readings currently in the window.
func (a *Accumulator) Len() int {
	return len(a.history)
}

// Summarize derives the statistical summary of the current window. With no
// readings it returns a neutral default so callers never branch on emptiness.
func (a *Accumulator) Summarize() Summary {
	if len(a.history) == 0 {
		return Summary{
			DominantEmotion: Neutral,
			Trend:           TrendStable,
			IntensityAvg:    5.0,
			AttentionScore:  0.0,
			Volatility:      0.0,
			ReadingCount:    0,
		}
	}

	counts := make(map[Type]int, len(a.history))
	dominant := a.history[0].PrimaryEmotion
	for _, r := range a.history {
		counts[r.PrimaryEmotion]++
		if counts[r.PrimaryEmotion] > counts[dominant] {
			dominant = r.PrimaryEmotion
		}
	}

	var sum float64
	for _, r := range a.history {
		sum += float64(r.Intensity)
	}
	avg := sum / float64(len(a.history))

	trend := TrendStable
	if len(a.history) >= 6 {
		var firstSum, lastSum float64
		for _, r := range a.history[:3] {
			firstSum += float64(r.Intensity)
		}
		for _, r := range a.history[len(a.history)-3:] {
			lastSum += float64(r.Intensity)
		}
		switch delta := (lastSum - firstSum) / 3; {
		case delta > 1.5:
			trend = TrendRising
		case delta < -1.5:
			trend = TrendFalling
		}
	}

	onScreen := 0
	for _, r := range a.history {
		if r.Attention == AttentionScreen {
			onScreen++
		}
	}

	return Summary{
		DominantEmotion: dominant,
		Trend:           trend,
		IntensityAvg:    avg,
		AttentionScore:  float64(onScreen) / float64(len(a.history)),
		Volatility:      a.volatility(avg),
		ReadingCount:    len(a.history),
	}
}

// volatility is the sample standard deviation of intensity, 0 with fewer than
// two readings.
func (a *Accumulator) volatility(mean float64) float64 {
	n := len(a.history)
	if n < 2 {
		return 0
	}
	var ss float64
	for _, r := range a.history {
		d := float64(r.Intensity) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// ShouldTrigger reports whether enough emotional signal has accumulated to
// justify a narrative check. Conditions are evaluated in order:
//
//  1. the last three readings share a primary emotion
//  2. any of the last three readings' intensity differs from the baseline by
//     more than 4
//  3. the window's attention score is below 0.5
//  4. at least three readings exist at all
//
// Condition 4 makes the function unconditionally true once warmed up, which
// shadows 1-3. Observed behavior is preserved deliberately; see DESIGN.md.
func (a *Accumulator) ShouldTrigger() bool {
	if len(a.history) < 3 {
		return false
	}

	lastThree := a.history[len(a.history)-3:]
	same := true
	for _, r := range lastThree[1:] {
		if r.PrimaryEmotion != lastThree[0].PrimaryEmotion {
			same = false
			break
		}
	}
	if same {
		return true
	}

	if a.baseline != nil {
		for _, r := range lastThree {
			if abs(r.Intensity-a.baseline.Intensity) > 4 {
				return true
			}
		}
	}

	if a.Summarize().AttentionScore < 0.5 {
		return true
	}

	// Minimum data threshold reached.
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
