package simulator

import (
	"math"
	"testing"
	"time"
)

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(DefaultGeneratorConfig(), 42)
	b := NewGenerator(DefaultGeneratorConfig(), 42)

	for i := 0; i < 50; i++ {
		va, vb := a.Next().Value, b.Next().Value
		if va != vb {
			t.Fatalf("sample %d: %v != %v with the same seed", i, va, vb)
		}
	}
}

func TestGenerator_FloorAndRounding(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Volatility = 2 // Violent walk that keeps hitting the floor.
	g := NewGenerator(cfg, 7)

	for i := 0; i < 500; i++ {
		v := g.Next().Value
		if v < cfg.Floor {
			t.Fatalf("sample %d: value %v below floor %v", i, v, cfg.Floor)
		}
		if cents := v * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Fatalf("sample %d: value %v not rounded to 2 decimals", i, v)
		}
	}
}

func TestGenerator_Timestamp(t *testing.T) {
	g := NewGenerator(DefaultGeneratorConfig(), 1)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 500, time.FixedZone("CET", 3600))
	g.now = func() time.Time { return fixed }

	s := g.Next()
	want := "2024-03-01T11:00:00.0000005Z"
	if s.Timestamp != want {
		t.Errorf("Timestamp = %q, want %q", s.Timestamp, want)
	}
}

func TestGenerator_FlatWalk(t *testing.T) {
	cfg := GeneratorConfig{Base: 50, Floor: 1}
	g := NewGenerator(cfg, 3)

	for _, s := range g.Series(10) {
		if s.Value != 50 {
			t.Errorf("Value = %v, want 50 with zero volatility and jumps", s.Value)
		}
	}
}

func TestGenerator_Reset(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.MeanReversion = 0
	g := NewGenerator(cfg, 11)
	g.Series(20)

	g.Reset()

	g.mu.Lock()
	v := g.value
	g.mu.Unlock()
	if v != cfg.Base {
		t.Errorf("value after Reset = %v, want %v", v, cfg.Base)
	}
}

func TestGenerator_Series(t *testing.T) {
	g := NewGenerator(DefaultGeneratorConfig(), 5)
	if got := len(g.Series(20)); got != 20 {
		t.Errorf("len(Series(20)) = %d, want 20", got)
	}
	if got := len(g.Series(0)); got != 0 {
		t.Errorf("len(Series(0)) = %d, want 0", got)
	}
}
