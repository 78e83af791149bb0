package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"cgpde/internal/cgp"
	"cgpde/internal/nn"
)

func newSeed(t *testing.T, seed int64) *cgp.Chromosome {
	t.Helper()
	fs, err := nn.NewFunctionSet("add,mul,sig,tanh")
	if err != nil {
		t.Fatalf("function set: %v", err)
	}
	c, err := cgp.New(rand.New(rand.NewSource(seed)), cgp.Shape{NumInputs: 2, NumNodes: 6, NumOutputs: 1, Arity: 2}, cgp.GeneConfig{WeightRange: 1}, fs)
	if err != nil {
		t.Fatalf("new chromosome: %v", err)
	}
	return c
}

// distanceFitness is the squared distance of the weights from 0.5.
func distanceFitness(_ context.Context, c *cgp.Chromosome) (float64, error) {
	sum := 0.0
	for _, w := range c.Weights() {
		sum += (w - 0.5) * (w - 0.5)
	}
	return sum, nil
}

func tune(t *testing.T, d Differential, seed *cgp.Chromosome, sweeps int) ([]*cgp.Chromosome, TuneReport) {
	t.Helper()
	pop, report, err := d.TuneWithReport(context.Background(), seed, sweeps, distanceFitness)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	return pop, report
}

func TestDifferentialKeepsSeedAsFirstIndividual(t *testing.T) {
	seed := newSeed(t, 1)
	pop, report := tune(t, Differential{Rand: rand.New(rand.NewSource(1)), PopulationSize: 6, CR: 0.5, F: 1, WeightRange: 1, Workers: 3}, seed, 0)
	if len(pop) != 6 {
		t.Fatalf("unexpected population size %d", len(pop))
	}
	if !cgp.EqualANN(pop[0], seed) {
		t.Fatal("individual 0 must keep the seed weights")
	}
	want, _ := distanceFitness(context.Background(), seed)
	if report.SeedFitness != want || pop[0].Fitness != want {
		t.Fatalf("unexpected seed fitness %g, want %g", report.SeedFitness, want)
	}
	for i, c := range pop[1:] {
		if !cgp.Equal(c, seed) {
			t.Fatalf("individual %d changed topology", i+1)
		}
		if cgp.EqualANN(c, seed) {
			t.Fatalf("individual %d kept the seed weights", i+1)
		}
		if c == seed {
			t.Fatal("population must not alias the seed")
		}
	}
}

func TestDifferentialIsMonotonePerIndividual(t *testing.T) {
	seed := newSeed(t, 2)
	cfg := func() Differential {
		return Differential{Rand: rand.New(rand.NewSource(7)), PopulationSize: 8, CR: 0.9, F: 0.8, WeightRange: 1, Workers: 4}
	}
	prev, _ := tune(t, cfg(), seed, 0)
	var report TuneReport
	for sweeps := 1; sweeps <= 10; sweeps++ {
		var next []*cgp.Chromosome
		next, report = tune(t, cfg(), seed, sweeps)
		for i := range next {
			if next[i].Fitness > prev[i].Fitness {
				t.Fatalf("sweep %d: individual %d got worse: %g > %g", sweeps, i, next[i].Fitness, prev[i].Fitness)
			}
		}
		if report.AcceptedCandidates+report.RejectedCandidates != sweeps*8 {
			t.Fatalf("unexpected report: %+v", report)
		}
		prev = next
	}
	if report.BestFitness >= report.SeedFitness {
		t.Fatalf("expected DE to improve on the seed: %+v", report)
	}
}

func TestTrialWithZeroCrossoverChangesForcedCoordinate(t *testing.T) {
	d := Differential{Rand: rand.New(rand.NewSource(3)), PopulationSize: 5, CR: 0, F: 0.5}
	rng := rand.New(rand.NewSource(4))
	weights := make([][]float64, 5)
	for i := range weights {
		weights[i] = make([]float64, 12)
		for j := range weights[i] {
			weights[i][j] = rng.Float64()*2 - 1
		}
	}
	trial := make([]float64, 12)
	for i := 0; i < 200; i++ {
		target := i % 5
		d.buildTrial(weights, target, trial)
		changed := 0
		for j := range trial {
			if trial[j] != weights[target][j] {
				changed++
			}
		}
		if changed != 1 {
			t.Fatalf("trial %d changed %d coordinates, want exactly 1", i, changed)
		}
	}
}

func TestZeroScaleChangesAtMostOneCoordinate(t *testing.T) {
	seed := newSeed(t, 5)
	cfg := func() Differential {
		return Differential{Rand: rand.New(rand.NewSource(11)), PopulationSize: 4, CR: 0, F: 0, WeightRange: 1, Workers: 2}
	}
	prev, _ := tune(t, cfg(), seed, 0)
	for sweeps := 1; sweeps <= 5; sweeps++ {
		next, _ := tune(t, cfg(), seed, sweeps)
		for i := range next {
			before, after := prev[i].Weights(), next[i].Weights()
			changed := 0
			for j := range before {
				if before[j] != after[j] {
					changed++
				}
			}
			if changed > 1 {
				t.Fatalf("sweep %d: individual %d changed %d coordinates", sweeps, i, changed)
			}
			if next[i].Fitness > prev[i].Fitness {
				t.Fatalf("sweep %d: individual %d fitness increased", sweeps, i)
			}
		}
		prev = next
	}
}

func TestDifferentialValidation(t *testing.T) {
	seed := newSeed(t, 1)
	rng := rand.New(rand.NewSource(1))
	cases := map[string]Differential{
		"small NP": {Rand: rng, PopulationSize: 3, CR: 0.5, F: 1},
		"CR":       {Rand: rng, PopulationSize: 4, CR: 1.5, F: 1},
		"F":        {Rand: rng, PopulationSize: 4, CR: 0.5, F: 2.1},
	}
	for name, d := range cases {
		if _, err := d.Tune(context.Background(), seed, 1, distanceFitness); !errors.Is(err, ErrInvalidDifferential) {
			t.Fatalf("%s: expected ErrInvalidDifferential, got: %v", name, err)
		}
	}
	d := Differential{Rand: rng, PopulationSize: 4, CR: 0.5, F: 1}
	if _, err := d.Tune(context.Background(), seed, -1, distanceFitness); !errors.Is(err, ErrInvalidDifferential) {
		t.Fatalf("expected ErrInvalidDifferential for negative iterations, got: %v", err)
	}
	if _, err := d.Tune(context.Background(), seed, 1, nil); err == nil {
		t.Fatal("expected missing fitness error")
	}
	if _, err := (&Differential{PopulationSize: 4}).Tune(context.Background(), seed, 1, distanceFitness); err == nil {
		t.Fatal("expected missing random source error")
	}
}

func TestDifferentialCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := Differential{Rand: rand.New(rand.NewSource(1)), PopulationSize: 4, CR: 0.5, F: 1, WeightRange: 1}
	if _, err := d.Tune(ctx, newSeed(t, 1), 3, distanceFitness); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestDifferentialPropagatesFitnessErrors(t *testing.T) {
	boom := errors.New("boom")
	d := Differential{Rand: rand.New(rand.NewSource(1)), PopulationSize: 4, CR: 0.5, F: 1, WeightRange: 1, Workers: 2}
	_, err := d.Tune(context.Background(), newSeed(t, 1), 1, func(context.Context, *cgp.Chromosome) (float64, error) {
		return math.NaN(), boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fitness error, got: %v", err)
	}
}
