package tuning

import (
	"fmt"
	"math"

	"cgpde/internal/cgp"
)

// IterationPolicy decides how many DE sweeps a chromosome gets when
// refinement runs once per GP generation.
type IterationPolicy interface {
	Name() string
	Iterations(baseIterations, generation, totalGenerations int, c *cgp.Chromosome) int
}

type FixedIterationPolicy struct{}

func (FixedIterationPolicy) Name() string { return "fixed" }

func (FixedIterationPolicy) Iterations(baseIterations, _, _ int, _ *cgp.Chromosome) int {
	if baseIterations < 0 {
		return 0
	}
	return baseIterations
}

// LinearDecayIterationPolicy shrinks the budget as the GP run advances.
type LinearDecayIterationPolicy struct {
	MinIterations int
}

func (LinearDecayIterationPolicy) Name() string { return "linear_decay" }

func (p LinearDecayIterationPolicy) Iterations(baseIterations, generation, totalGenerations int, _ *cgp.Chromosome) int {
	if baseIterations <= 0 {
		return 0
	}
	if totalGenerations <= 0 {
		return baseIterations
	}
	remaining := totalGenerations - generation
	if remaining < 1 {
		remaining = 1
	}
	iterations := (baseIterations * remaining) / totalGenerations
	if iterations < p.MinIterations {
		iterations = p.MinIterations
	}
	return iterations
}

// ConnectionScaledIterationPolicy grows the budget with the number of
// active connections, whose weights are the ones that matter.
type ConnectionScaledIterationPolicy struct {
	Scale         float64
	MinIterations int
	MaxIterations int
}

func (ConnectionScaledIterationPolicy) Name() string { return "connection_scaled" }

func (p ConnectionScaledIterationPolicy) Iterations(baseIterations, _, _ int, c *cgp.Chromosome) int {
	if baseIterations <= 0 {
		return 0
	}
	scale := p.Scale
	if scale <= 0 {
		scale = 1.0
	}
	connections := 0
	if c != nil {
		connections = c.NumActiveConnections()
	}
	iterations := int(float64(baseIterations) * scale * (1.0 + float64(connections)/10.0))
	if iterations < p.MinIterations {
		iterations = p.MinIterations
	}
	if p.MaxIterations > 0 && iterations > p.MaxIterations {
		iterations = p.MaxIterations
	}
	return iterations
}

// ActiveSizeIterationPolicy ignores the base budget and uses
// 10 + (active nodes)^Power, capped at 110.
type ActiveSizeIterationPolicy struct {
	Power float64
}

func (ActiveSizeIterationPolicy) Name() string { return "active_size" }

func (p ActiveSizeIterationPolicy) Iterations(baseIterations, _, _ int, c *cgp.Chromosome) int {
	if baseIterations <= 0 {
		return 0
	}
	power := p.Power
	if power <= 0 {
		power = 1.0
	}
	active := 0
	if c != nil {
		active = c.NumActiveNodes()
	}
	return 10 + satInt(int(math.Round(math.Pow(float64(active), power))), 0, 100)
}

func IterationPolicyFromConfig(name string, param float64) (IterationPolicy, error) {
	switch NormalizeIterationPolicyName(name) {
	case "fixed":
		return FixedIterationPolicy{}, nil
	case "linear_decay":
		min := int(param)
		if min < 1 {
			min = 1
		}
		return LinearDecayIterationPolicy{MinIterations: min}, nil
	case "connection_scaled":
		scale := param
		if scale <= 0 {
			scale = 1.0
		}
		return ConnectionScaledIterationPolicy{Scale: scale, MinIterations: 1}, nil
	case "active_size":
		power := param
		if power <= 0 {
			power = 1.0
		}
		return ActiveSizeIterationPolicy{Power: power}, nil
	default:
		return nil, fmt.Errorf("unsupported DE iteration policy: %s", name)
	}
}

func NormalizeIterationPolicyName(name string) string {
	switch name {
	case "", "fixed", "const":
		return "fixed"
	default:
		return name
	}
}

func satInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
