package cgp

import "math/rand"

// RandomWeight draws a connection weight uniformly from [-r, r).
func RandomWeight(rng *rand.Rand, weightRange float64) float64 {
	return rng.Float64()*2*weightRange - weightRange
}

// RandomNodeInput draws an input address for the node at position. With
// probability recurrentProb the address may point at the node itself or any
// later node, otherwise it points strictly before the node.
func RandomNodeInput(rng *rand.Rand, numInputs, numNodes, position int, recurrentProb float64) int {
	if rng.Float64() < recurrentProb {
		return rng.Intn(numNodes-position) + position + numInputs
	}
	return rng.Intn(numInputs + position)
}

func RandomFunction(rng *rand.Rand, numFunctions int) int {
	return rng.Intn(numFunctions)
}

// RandomOutput draws an output gene. Without shortcut connections outputs
// can only address nodes.
func RandomOutput(rng *rand.Rand, numInputs, numNodes int, shortcut bool) int {
	if shortcut || numNodes == 0 {
		return rng.Intn(numInputs + numNodes)
	}
	return rng.Intn(numNodes) + numInputs
}
