package relay

import (
	"strings"
	"testing"
	"time"
)

func sequenceCodes(codes ...string) CodeFunc {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestGenerateCodeAlphabet(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 chars, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside [A-Z0-9]", code, r)
			}
		}
	}
}

func TestRegistryRedrawsTakenCodes(t *testing.T) {
	reg := NewRegistry(newFakeClock(), sequenceCodes("AAAAAA", "AAAAAA", "BBBBBB"))

	first, err := reg.Create("c1")
	if err != nil {
		t.Fatalf("Create#1: %v", err)
	}
	second, err := reg.Create("c2")
	if err != nil {
		t.Fatalf("Create#2: %v", err)
	}
	if first.Code != "AAAAAA" || second.Code != "BBBBBB" {
		t.Fatalf("unexpected codes %q %q", first.Code, second.Code)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 rooms, got %d", reg.Len())
	}
}

func TestRegistryGivesUpWhenSpaceExhausted(t *testing.T) {
	reg := NewRegistry(newFakeClock(), sequenceCodes("AAAAAA"))
	if _, err := reg.Create("c1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create("c2"); err == nil {
		t.Fatalf("expected allocation failure")
	}
}

func TestRegistryLiveCodesUnique(t *testing.T) {
	reg := NewRegistry(newFakeClock(), nil)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		room, err := reg.Create("c")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[room.Code] {
			t.Fatalf("duplicate live code %q", room.Code)
		}
		seen[room.Code] = true
	}
}

func TestRegistryExpired(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(clock, sequenceCodes("OLD001", "NEW001"))
	if _, err := reg.Create("a"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(90 * time.Minute)
	if _, err := reg.Create("b"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(30 * time.Minute)

	got := reg.Expired(clock.Now(), 2*time.Hour)
	if len(got) != 1 || got[0] != "OLD001" {
		t.Fatalf("expected only OLD001 expired, got %v", got)
	}

	if _, ok := reg.Remove("OLD001"); !ok {
		t.Fatalf("Remove should report the room")
	}
	if _, ok := reg.Get("OLD001"); ok {
		t.Fatalf("room still present after Remove")
	}
}
