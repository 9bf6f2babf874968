package chess

import (
	"github.com/park285/chess-arena/internal/chess/uci"
)

// Quality buckets the evaluation swing caused by one move.
type Quality string

const (
	QualityExcellent  Quality = "excellent"
	QualityGood       Quality = "good"
	QualityOK         Quality = "ok"
	QualityInaccuracy Quality = "inaccuracy"
	QualityMistake    Quality = "mistake"
	QualityBlunder    Quality = "blunder"
)

// MateScore stands in for any forced mate when comparing evaluations.
const MateScore = 10000

// MoverCentipawns converts a White-perspective evaluation into centipawns for
// the mover. Mates saturate at ±MateScore.
func MoverCentipawns(ev uci.Evaluation, moverIsWhite bool) int {
	v := ev.Value
	if ev.Kind == uci.ScoreMate {
		if v > 0 {
			v = MateScore
		} else {
			v = -MateScore
		}
	}
	if !moverIsWhite {
		v = -v
	}
	return clampScore(v)
}

func clampScore(v int) int {
	if v > MateScore {
		return MateScore
	}
	if v < -MateScore {
		return -MateScore
	}
	return v
}

// ClassifySwing buckets a centipawn swing from the mover's perspective.
func ClassifySwing(swing int) Quality {
	switch {
	case swing >= 100:
		return QualityExcellent
	case swing >= 50:
		return QualityGood
	case swing >= -50:
		return QualityOK
	case swing >= -100:
		return QualityInaccuracy
	case swing >= -300:
		return QualityMistake
	default:
		return QualityBlunder
	}
}

// Grade compares the evaluations before and after a move. Either evaluation
// missing means there is nothing to grade.
func Grade(before, after *uci.Evaluation, moverIsWhite bool) (Quality, int, bool) {
	if before == nil || after == nil {
		return "", 0, false
	}
	swing := saturatingAdd(MoverCentipawns(*after, moverIsWhite), -MoverCentipawns(*before, moverIsWhite))
	return ClassifySwing(swing), swing, true
}
