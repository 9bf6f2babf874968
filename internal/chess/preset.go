package chess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/chess-arena/internal/chess/uci"
)

const (
	defaultHashMB  = 128
	defaultThreads = 1
)

// DifficultyPreset maps a named level to engine options and search limits.
type DifficultyPreset struct {
	Name           string
	SkillLevel     int
	DepthCap       int
	MoveTimeMillis int
	Elo            int
	LimitStrength  bool
	HashMB         int
	Threads        int
	Description    string
}

var presets = map[string]DifficultyPreset{
	"easy": {
		Name:           "easy",
		SkillLevel:     1,
		DepthCap:       5,
		MoveTimeMillis: 1000,
		Elo:            800,
		LimitStrength:  true,
		HashMB:         defaultHashMB,
		Threads:        defaultThreads,
		Description:    "Beginner level - Makes occasional mistakes",
	},
	"medium": {
		Name:           "medium",
		SkillLevel:     10,
		DepthCap:       10,
		MoveTimeMillis: 2000,
		Elo:            1500,
		HashMB:         defaultHashMB,
		Threads:        defaultThreads,
		Description:    "Intermediate level - Balanced gameplay",
	},
	"hard": {
		Name:           "hard",
		SkillLevel:     20,
		DepthCap:       15,
		MoveTimeMillis: 3000,
		Elo:            2500,
		HashMB:         defaultHashMB,
		Threads:        defaultThreads,
		Description:    "Expert level - Very challenging",
	},
}

var presetOrder = []string{"easy", "medium", "hard"}

const DefaultPreset = "medium"

func GetPreset(name string) (DifficultyPreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	p, ok := presets[key]
	if !ok {
		return DifficultyPreset{}, fmt.Errorf("invalid difficulty level: %s", name)
	}
	return p, nil
}

// Presets lists every preset from weakest to strongest.
func Presets() []DifficultyPreset {
	out := make([]DifficultyPreset, 0, len(presetOrder))
	for _, name := range presetOrder {
		out = append(out, presets[name])
	}
	return out
}

func ValidatePreset(p DifficultyPreset) error {
	switch {
	case p.SkillLevel < 0 || p.SkillLevel > 20:
		return fmt.Errorf("skill level %d out of range 0-20", p.SkillLevel)
	case p.Threads <= 0:
		return fmt.Errorf("threads must be > 0: %d", p.Threads)
	case p.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", p.HashMB)
	case p.DepthCap < 0:
		return fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	case p.MoveTimeMillis < 0:
		return fmt.Errorf("move time must be >= 0: %d", p.MoveTimeMillis)
	case p.DepthCap == 0 && p.MoveTimeMillis == 0:
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	case p.LimitStrength && p.Elo <= 0:
		return fmt.Errorf("strength-limited preset %s needs an elo", p.Name)
	}
	return nil
}

// EngineOptions is the full option set for p, re-sent on every difficulty
// change.
func EngineOptions(p DifficultyPreset) []uci.Option {
	opts := []uci.Option{
		{Name: "Skill Level", Value: strconv.Itoa(p.SkillLevel)},
	}
	if p.LimitStrength {
		opts = append(opts,
			uci.Option{Name: "UCI_LimitStrength", Value: "true"},
			uci.Option{Name: "UCI_Elo", Value: strconv.Itoa(p.Elo)},
		)
	} else {
		opts = append(opts, uci.Option{Name: "UCI_LimitStrength", Value: "false"})
	}
	return append(opts,
		uci.Option{Name: "Hash", Value: strconv.Itoa(p.HashMB)},
		uci.Option{Name: "Threads", Value: strconv.Itoa(p.Threads)},
	)
}

func SearchLimits(p DifficultyPreset) uci.Limits {
	return uci.Limits{Depth: p.DepthCap, MoveTimeMillis: p.MoveTimeMillis}
}
