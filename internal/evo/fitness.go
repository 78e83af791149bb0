package evo

import (
	"fmt"
	"math"

	"cgpde/internal/cgp"
	"cgpde/internal/dataset"
)

// FitnessFunc scores a chromosome on a dataset. Lower is better.
type FitnessFunc func(p *Parameters, c *cgp.Chromosome, data *dataset.Dataset) (float64, error)

// SupervisedLearning sums the absolute error of every output over every
// sample.
func SupervisedLearning(_ *Parameters, c *cgp.Chromosome, data *dataset.Dataset) (float64, error) {
	if err := data.CheckDimensions(c.NumInputs, c.NumOutputs); err != nil {
		return 0, err
	}
	errSum := 0.0
	for s := range data.Inputs {
		if err := c.Execute(data.Inputs[s]); err != nil {
			return 0, err
		}
		for j, target := range data.Outputs[s] {
			errSum += math.Abs(c.Output(j) - target)
		}
	}
	return errSum, nil
}

// Accuracy returns the negated fraction of samples whose largest output is
// at the class column, the last column with target 1. Samples without
// such a column count as class 0.
func Accuracy(_ *Parameters, c *cgp.Chromosome, data *dataset.Dataset) (float64, error) {
	if err := data.CheckDimensions(c.NumInputs, c.NumOutputs); err != nil {
		return 0, err
	}
	if data.NumSamples() == 0 {
		return 0, nil
	}
	correct := 0
	for s := range data.Inputs {
		if err := c.Execute(data.Inputs[s]); err != nil {
			return 0, err
		}
		predicted := 0
		largest := -math.MaxFloat64
		for j := 0; j < c.NumOutputs; j++ {
			if out := c.Output(j); out > largest {
				largest = out
				predicted = j
			}
		}
		class := data.Class(s)
		if class < 0 {
			class = 0
		}
		if predicted == class {
			correct++
		}
	}
	return -float64(correct) / float64(data.NumSamples()), nil
}

func (p *Parameters) evaluate(c *cgp.Chromosome, data *dataset.Dataset) (float64, error) {
	c.ResolveActive()
	c.Reset()
	f, err := p.Fitness(p, c, data)
	if err != nil {
		return 0, fmt.Errorf("%s fitness: %w", p.FitnessName, err)
	}
	return f, nil
}

// SetFitness resolves active nodes, clears cached outputs and stores the
// training fitness of c on data.
func (p *Parameters) SetFitness(c *cgp.Chromosome, data *dataset.Dataset) error {
	f, err := p.evaluate(c, data)
	if err != nil {
		return err
	}
	c.Fitness = f
	return nil
}

// SetValidationFitness is SetFitness for the validation slot.
func (p *Parameters) SetValidationFitness(c *cgp.Chromosome, data *dataset.Dataset) error {
	f, err := p.evaluate(c, data)
	if err != nil {
		return err
	}
	c.FitnessValidation = f
	return nil
}
