package chess

import (
	"math"
	"math/rand"
	"time"
)

const (
	minThinkDelay = 500 * time.Millisecond
	maxThinkDelay = 1500 * time.Millisecond
)

// ThinkDelay is the artificial pause before a strength-limited preset moves,
// so a beginner opponent does not answer instantly. Other presets return 0.
func ThinkDelay(p DifficultyPreset, r *rand.Rand) time.Duration {
	if !p.LimitStrength {
		return 0
	}
	span := int64(maxThinkDelay - minThinkDelay)
	return minThinkDelay + time.Duration(r.Int63n(span+1))
}

func saturatingAdd(a, b int) int {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt {
		return math.MaxInt
	}
	if sum < math.MinInt {
		return math.MinInt
	}
	return int(sum)
}
