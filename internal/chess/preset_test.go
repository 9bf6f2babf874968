package chess

import (
	"math/rand"
	"testing"
	"time"
)

func TestPresetsTable(t *testing.T) {
	want := []struct {
		name                  string
		skill, depth, ms, elo int
		limit                 bool
	}{
		{"easy", 1, 5, 1000, 800, true},
		{"medium", 10, 10, 2000, 1500, false},
		{"hard", 20, 15, 3000, 2500, false},
	}
	got := Presets()
	if len(got) != len(want) {
		t.Fatalf("expected %d presets, got %d", len(want), len(got))
	}
	for i, w := range want {
		p := got[i]
		if p.Name != w.name || p.SkillLevel != w.skill || p.DepthCap != w.depth || p.MoveTimeMillis != w.ms || p.Elo != w.elo || p.LimitStrength != w.limit {
			t.Fatalf("preset %d: unexpected %+v", i, p)
		}
		if p.Description == "" {
			t.Fatalf("preset %s has no description", p.Name)
		}
		if err := ValidatePreset(p); err != nil {
			t.Fatalf("preset %s invalid: %v", p.Name, err)
		}
	}
}

func TestGetPresetCaseInsensitive(t *testing.T) {
	p, err := GetPreset(" Hard ")
	if err != nil || p.Name != "hard" {
		t.Fatalf("unexpected %+v %v", p, err)
	}
	if _, err := GetPreset("grandmaster"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestEngineOptions(t *testing.T) {
	easy, _ := GetPreset("easy")
	names := map[string]string{}
	for _, o := range EngineOptions(easy) {
		names[o.Name] = o.Value
	}
	if names["UCI_LimitStrength"] != "true" || names["UCI_Elo"] != "800" || names["Skill Level"] != "1" || names["Hash"] != "128" || names["Threads"] != "1" {
		t.Fatalf("unexpected easy options %v", names)
	}

	medium, _ := GetPreset("medium")
	names = map[string]string{}
	for _, o := range EngineOptions(medium) {
		names[o.Name] = o.Value
	}
	if names["UCI_LimitStrength"] != "false" {
		t.Fatalf("medium must not limit strength: %v", names)
	}
	if _, ok := names["UCI_Elo"]; ok {
		t.Fatalf("medium must not send UCI_Elo")
	}
}

func TestThinkDelay(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	easy, _ := GetPreset("easy")
	for i := 0; i < 200; i++ {
		d := ThinkDelay(easy, r)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("delay out of range: %v", d)
		}
	}
	hard, _ := GetPreset("hard")
	if d := ThinkDelay(hard, r); d != 0 {
		t.Fatalf("hard should not delay, got %v", d)
	}
}

func TestValidatePresetRejectsBadValues(t *testing.T) {
	p, _ := GetPreset("medium")
	p.SkillLevel = 21
	if err := ValidatePreset(p); err == nil {
		t.Fatalf("expected skill range error")
	}
	p, _ = GetPreset("medium")
	p.DepthCap, p.MoveTimeMillis = 0, 0
	if err := ValidatePreset(p); err == nil {
		t.Fatalf("expected missing limits error")
	}
}
