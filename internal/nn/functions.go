package nn

import (
	"math"
	"math/rand"
)

// Arithmetic functions fold over every operand starting from the first.

func Add(inputs, _ []float64, _ *rand.Rand) float64 {
	if len(inputs) == 0 {
		return 0
	}
	sum := inputs[0]
	for _, v := range inputs[1:] {
		sum += v
	}
	return sum
}

func Sub(inputs, _ []float64, _ *rand.Rand) float64 {
	if len(inputs) == 0 {
		return 0
	}
	out := inputs[0]
	for _, v := range inputs[1:] {
		out -= v
	}
	return out
}

func Mul(inputs, _ []float64, _ *rand.Rand) float64 {
	if len(inputs) == 0 {
		return 0
	}
	out := inputs[0]
	for _, v := range inputs[1:] {
		out *= v
	}
	return out
}

func Div(inputs, _ []float64, _ *rand.Rand) float64 {
	if len(inputs) == 0 {
		return 0
	}
	out := inputs[0]
	for _, v := range inputs[1:] {
		out /= v
	}
	return out
}

func Abs(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Abs(first(inputs))
}

func Sqrt(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Sqrt(first(inputs))
}

func Square(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Pow(first(inputs), 2)
}

func Cube(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Pow(first(inputs), 3)
}

func Pow(inputs, _ []float64, _ *rand.Rand) float64 {
	if len(inputs) < 2 {
		return first(inputs)
	}
	return math.Pow(inputs[0], inputs[1])
}

func Exp(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Exp(first(inputs))
}

func Sin(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Sin(first(inputs))
}

func Cos(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Cos(first(inputs))
}

func Tan(inputs, _ []float64, _ *rand.Rand) float64 {
	return math.Tan(first(inputs))
}

// RandFloat ignores its operands and returns a value in [-1, 1) drawn from
// the evaluating chromosome's source.
func RandFloat(_, _ []float64, rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

func ConstOne(_, _ []float64, _ *rand.Rand) float64 { return 1 }

func ConstZero(_, _ []float64, _ *rand.Rand) float64 { return 0 }

func ConstPi(_, _ []float64, _ *rand.Rand) float64 { return math.Pi }

// Boolean functions treat an operand as true only when it is exactly 1 and
// false only when it is exactly 0.

func And(inputs, _ []float64, _ *rand.Rand) float64 {
	for _, v := range inputs {
		if v == 0 {
			return 0
		}
	}
	return 1
}

func Nand(inputs, w []float64, _ *rand.Rand) float64 {
	return 1 - And(inputs, w, nil)
}

func Or(inputs, _ []float64, _ *rand.Rand) float64 {
	for _, v := range inputs {
		if v == 1 {
			return 1
		}
	}
	return 0
}

func Nor(inputs, w []float64, _ *rand.Rand) float64 {
	return 1 - Or(inputs, w, nil)
}

// Xor is 1 when exactly one operand equals 1.
func Xor(inputs, _ []float64, _ *rand.Rand) float64 {
	ones := 0
	for _, v := range inputs {
		if v == 1 {
			ones++
		}
	}
	if ones == 1 {
		return 1
	}
	return 0
}

func Xnor(inputs, w []float64, _ *rand.Rand) float64 {
	return 1 - Xor(inputs, w, nil)
}

func Not(inputs, _ []float64, _ *rand.Rand) float64 {
	if first(inputs) == 0 {
		return 1
	}
	return 0
}

func Wire(inputs, _ []float64, _ *rand.Rand) float64 {
	return first(inputs)
}

// Neuron-style functions apply to the weighted sum of their operands.

func Sigmoid(inputs, weights []float64, _ *rand.Rand) float64 {
	return 1 / (1 + math.Exp(-WeightedSum(inputs, weights)))
}

// Gaussian has centre 0 and width 1.
func Gaussian(inputs, weights []float64, _ *rand.Rand) float64 {
	s := WeightedSum(inputs, weights)
	return math.Exp(-(s * s) / 2)
}

func Step(inputs, weights []float64, _ *rand.Rand) float64 {
	if WeightedSum(inputs, weights) < 0 {
		return 0
	}
	return 1
}

func Softsign(inputs, weights []float64, _ *rand.Rand) float64 {
	s := WeightedSum(inputs, weights)
	return s / (1 + math.Abs(s))
}

func Tanh(inputs, weights []float64, _ *rand.Rand) float64 {
	return math.Tanh(WeightedSum(inputs, weights))
}

// WeightedSum pairs operands with weights; missing weights count as 1.
func WeightedSum(inputs, weights []float64) float64 {
	sum := 0.0
	for i, v := range inputs {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		sum += v * w
	}
	return sum
}

func first(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return inputs[0]
}
