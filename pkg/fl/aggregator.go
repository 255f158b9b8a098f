package fl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(results []WeightedWeights) (Weights, error) {
	return Aggregate(results)
}

// Aggregate computes the example-weighted mean of every layer:
// layer_i = sum(w_i * n) / sum(n).
func Aggregate(results []WeightedWeights) (Weights, error) {
	if len(results) == 0 {
		return nil, ErrNoUpdates
	}

	total, err := totalExamples(results)
	if err != nil {
		return nil, err
	}

	base := results[0].Weights
	for i, r := range results {
		if len(r.Weights) != len(base) {
			return nil, fmt.Errorf("%w: result %d has %d layers, expected %d", ErrLayerMismatch, i, len(r.Weights), len(base))
		}
		for j, layer := range r.Weights {
			if err := layer.Validate(); err != nil {
				return nil, fmt.Errorf("result %d layer %d: %w", i, j, err)
			}
			if !layer.SameShape(base[j]) {
				return nil, fmt.Errorf("%w: result %d layer %d has shape %v, expected %v", ErrShapeMismatch, i, j, layer.Shape, base[j].Shape)
			}
		}
	}

	aggregated := make(Weights, len(base))
	for j, layer := range base {
		sum := make([]float64, len(layer.Data))
		for _, r := range results {
			if r.NumExamples == 0 {
				continue
			}
			// n/total keeps a lone contributor's weights bit-identical.
			floats.AddScaled(sum, float64(r.NumExamples)/float64(total), r.Weights[j].Data)
		}

		aggregated[j] = Tensor{
			Shape: append([]int(nil), layer.Shape...),
			Data:  sum,
		}
	}

	return aggregated, nil
}

// WeightedLossAvg returns the example-weighted mean loss.
func WeightedLossAvg(results []EvaluateTriple) (float64, error) {
	return weightedAvg(results, func(r EvaluateTriple) float64 { return r.Loss })
}

// WeightedAccuracyAvg returns the example-weighted mean accuracy.
func WeightedAccuracyAvg(results []EvaluateTriple) (float64, error) {
	return weightedAvg(results, func(r EvaluateTriple) float64 { return r.Accuracy })
}

func weightedAvg(results []EvaluateTriple, value func(EvaluateTriple) float64) (float64, error) {
	if len(results) == 0 {
		return 0, ErrNoUpdates
	}

	counts := make([]float64, len(results))
	values := make([]float64, len(results))
	var total uint64
	for i, r := range results {
		if total > math.MaxUint64-r.NumExamples {
			return 0, ErrOverflow
		}
		total += r.NumExamples
		counts[i] = float64(r.NumExamples)
		values[i] = value(r)
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return 0, fmt.Errorf("%w: result %d", ErrNonFinite, i)
		}
	}
	if total == 0 {
		return 0, ErrZeroExamples
	}

	return floats.Dot(counts, values) / float64(total), nil
}

func totalExamples(results []WeightedWeights) (uint64, error) {
	var total uint64
	for _, r := range results {
		if total > math.MaxUint64-r.NumExamples {
			return 0, ErrOverflow
		}
		total += r.NumExamples
	}
	if total == 0 {
		return 0, ErrZeroExamples
	}

	return total, nil
}
