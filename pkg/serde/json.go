package serde

import (
	"encoding/json"
	"fmt"

	"github.com/absmach/fedavg/pkg/fl"
)

// jsonCodec stores one JSON document per layer.
type jsonCodec struct{}

func NewJSONCodec() Codec {
	return jsonCodec{}
}

func (jsonCodec) TensorType() string {
	return TensorTypeJSONF64
}

func (jsonCodec) ToWeights(p Parameters) (fl.Weights, error) {
	if p.TensorType != TensorTypeJSONF64 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTensorType, p.TensorType)
	}

	w := make(fl.Weights, len(p.Tensors))
	for i, raw := range p.Tensors {
		var t fl.Tensor
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid json-f64 payload in layer %d: %w", i, err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		w[i] = t
	}

	return w, nil
}

func (jsonCodec) FromWeights(w fl.Weights, tmpl *Model) (Parameters, error) {
	if tmpl != nil {
		if err := tmpl.match(w); err != nil {
			return Parameters{}, err
		}
	}

	tensors := make([][]byte, len(w))
	for i, t := range w {
		data, err := json.Marshal(t)
		if err != nil {
			return Parameters{}, err
		}
		tensors[i] = data
	}

	return Parameters{
		Tensors:    tensors,
		TensorType: TensorTypeJSONF64,
	}, nil
}

func (c jsonCodec) Template(p Parameters) (*Model, error) {
	w, err := c.ToWeights(p)
	if err != nil {
		return nil, err
	}

	m := &Model{Layers: make([]LayerSpec, len(w))}
	for i, t := range w {
		m.Layers[i] = LayerSpec{
			Name:  fmt.Sprintf("layer_%d", i),
			Shape: t.Shape,
		}
	}

	return m, nil
}
