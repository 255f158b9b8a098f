package fl

import (
	"fmt"
	"math"
)

// Tensor is a dense row-major array of a single layer.
type Tensor struct {
	Shape []int     `json:"shape" cbor:"shape"`
	Data  []float64 `json:"data"  cbor:"data"`
}

// NewTensor returns a tensor with the given shape, validating that data fits it.
func NewTensor(shape []int, data []float64) (Tensor, error) {
	t := Tensor{Shape: shape, Data: data}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}

	return t, nil
}

// Size returns the number of elements the shape describes, or -1 when the
// product does not fit an int.
func (t Tensor) Size() int {
	n := 1
	for _, d := range t.Shape {
		if d != 0 && n > math.MaxInt/d {
			return -1
		}
		n *= d
	}

	return n
}

func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d", ErrShapeMismatch, d)
		}
	}
	if t.Size() < 0 {
		return fmt.Errorf("%w: shape %v is too large", ErrShapeMismatch, t.Shape)
	}
	if t.Size() != len(t.Data) {
		return fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShapeMismatch, t.Shape, t.Size(), len(t.Data))
	}

	return nil
}

func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}

	return true
}

// Weights are the learnable layers of a model, in model order.
type Weights []Tensor

// Clone returns a deep copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for i, t := range w {
		out[i] = Tensor{
			Shape: append([]int(nil), t.Shape...),
			Data:  append([]float64(nil), t.Data...),
		}
	}

	return out
}

// WeightedWeights pairs the weights one client reported with the number of
// examples it trained on.
type WeightedWeights struct {
	Weights     Weights
	NumExamples uint64
}

// EvaluateTriple is one client's evaluation outcome.
type EvaluateTriple struct {
	NumExamples uint64
	Loss        float64
	Accuracy    float64
}

type Aggregator interface {
	Aggregate(results []WeightedWeights) (Weights, error)
}
