package engine

// Reference computes the same product as Engine.Forward without tiling,
// accumulating in float64. It is used to verify executors.
func Reference(shape Shape, weights, biases, input []float32) ([]float32, error) {
	if err := shape.check(weights, biases, input); err != nil {
		return nil, err
	}
	out := make([]float32, shape.Neurons)
	for n := range out {
		row := weights[n*shape.InputSize : (n+1)*shape.InputSize]
		sum := float64(biases[n])
		for i, x := range input {
			sum += float64(row[i]) * float64(x)
		}
		out[n] = float32(sum)
	}
	return out, nil
}
