package simulator

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rickgao/tsfeed/internal/model"
)

// GeneratorConfig shapes the random walk.
type GeneratorConfig struct {
	Base            float64 // Starting and mean-reversion target value
	Volatility      float64 // Scale of the gaussian step, relative to the current value
	JumpProbability float64 // Chance of a jump per sample
	MaxJumpSize     float64 // Jumps are uniform in [-MaxJumpSize, MaxJumpSize]
	MeanReversion   float64 // Pull towards Base per sample
	Floor           float64 // Lowest value ever emitted
}

// DefaultGeneratorConfig returns the walk used by the ingestion service.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Base:            100,
		Volatility:      0.15,
		JumpProbability: 0.1,
		MaxJumpSize:     5,
		MeanReversion:   0.05,
		Floor:           1,
	}
}

// Generator produces samples. It is safe for concurrent use.
type Generator struct {
	cfg GeneratorConfig
	now func() time.Time

	mu    sync.Mutex
	rng   *rand.Rand
	value float64
}

// NewGenerator creates a Generator seeded with seed.
func NewGenerator(cfg GeneratorConfig, seed uint64) *Generator {
	return &Generator{
		cfg:   cfg,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		value: cfg.Base,
	}
}

// Next advances the walk by one step and returns the new sample.
func (g *Generator) Next() model.Sample {
	g.mu.Lock()
	v := g.step()
	g.mu.Unlock()

	return model.Sample{
		Timestamp: g.now().UTC().Format(time.RFC3339Nano),
		Value:     math.Round(v*100) / 100,
	}
}

// Series returns n consecutive samples.
func (g *Generator) Series(n int) []model.Sample {
	out := make([]model.Sample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

// Reset returns the walk to its base value.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.value = g.cfg.Base
	g.mu.Unlock()
}

// step must be called with mu held.
func (g *Generator) step() float64 {
	c := g.cfg
	v := g.value

	if g.rng.Float64() < c.JumpProbability {
		v += (g.rng.Float64()*2 - 1) * c.MaxJumpSize
	}

	change := g.rng.NormFloat64() * c.Volatility * v
	reversion := c.MeanReversion * (c.Base - v)
	noise := math.Sin(v/10) * c.Volatility * v

	v = math.Max(v+change+reversion+noise, c.Floor)
	g.value = v
	return v
}
