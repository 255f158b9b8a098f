package serde

import (
	"fmt"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/fxamacker/cbor/v2"
)

const stateDictVersion = "statedict.v1"

type stateEntry struct {
	Name  string    `cbor:"name"`
	Shape []int     `cbor:"shape"`
	Data  []float64 `cbor:"data"`
}

type stateDict struct {
	Version string       `cbor:"version"`
	Entries []stateEntry `cbor:"entries"`
}

// stateDictCodec keeps the whole model in a single tensor: an ordered list of
// named layers.
type stateDictCodec struct {
	enc cbor.EncMode
}

func NewStateDictCodec() Codec {
	// Canonical mode gives byte-identical blobs for identical models.
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return &stateDictCodec{enc: enc}
}

func (c *stateDictCodec) TensorType() string {
	return TensorTypeStateDict
}

func (c *stateDictCodec) ToWeights(p Parameters) (fl.Weights, error) {
	sd, err := c.decode(p)
	if err != nil {
		return nil, err
	}

	w := make(fl.Weights, len(sd.Entries))
	for i, e := range sd.Entries {
		t, err := fl.NewTensor(e.Shape, e.Data)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", e.Name, err)
		}
		w[i] = t
	}

	return w, nil
}

func (c *stateDictCodec) FromWeights(w fl.Weights, tmpl *Model) (Parameters, error) {
	if tmpl == nil {
		return Parameters{}, ErrMissingTemplate
	}
	if err := tmpl.match(w); err != nil {
		return Parameters{}, err
	}

	sd := stateDict{
		Version: stateDictVersion,
		Entries: make([]stateEntry, len(w)),
	}
	for i, l := range tmpl.Layers {
		sd.Entries[i] = stateEntry{
			Name:  l.Name,
			Shape: l.Shape,
			Data:  w[i].Data,
		}
	}

	data, err := c.enc.Marshal(sd)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to encode state dict: %w", err)
	}

	return Parameters{
		Tensors:    [][]byte{data},
		TensorType: TensorTypeStateDict,
	}, nil
}

func (c *stateDictCodec) Template(p Parameters) (*Model, error) {
	sd, err := c.decode(p)
	if err != nil {
		return nil, err
	}

	m := &Model{Layers: make([]LayerSpec, len(sd.Entries))}
	for i, e := range sd.Entries {
		m.Layers[i] = LayerSpec{
			Name:  e.Name,
			Shape: append([]int(nil), e.Shape...),
		}
	}

	return m, nil
}

func (c *stateDictCodec) decode(p Parameters) (stateDict, error) {
	if p.TensorType != TensorTypeStateDict {
		return stateDict{}, fmt.Errorf("%w: %q", ErrUnsupportedTensorType, p.TensorType)
	}
	if len(p.Tensors) == 0 {
		return stateDict{}, ErrEmptyParameters
	}
	if len(p.Tensors) != 1 {
		return stateDict{}, fmt.Errorf("%w: state dict is a single tensor, got %d", ErrMalformedParameters, len(p.Tensors))
	}

	var sd stateDict
	if err := cbor.Unmarshal(p.Tensors[0], &sd); err != nil {
		return stateDict{}, fmt.Errorf("failed to decode state dict: %w", err)
	}
	if sd.Version != stateDictVersion {
		return stateDict{}, fmt.Errorf("unknown state dict version %q", sd.Version)
	}

	seen := make(map[string]struct{}, len(sd.Entries))
	for _, e := range sd.Entries {
		if _, ok := seen[e.Name]; ok {
			return stateDict{}, fmt.Errorf("%w: duplicate layer %q", ErrMalformedParameters, e.Name)
		}
		seen[e.Name] = struct{}{}
	}

	return sd, nil
}

// EncodeStateDict builds statedict parameters from named layers.
func EncodeStateDict(names []string, w fl.Weights) (Parameters, error) {
	if len(names) != len(w) {
		return Parameters{}, fmt.Errorf("%w: %d names for %d layers", ErrTemplateMismatch, len(names), len(w))
	}

	tmpl := &Model{Layers: make([]LayerSpec, len(w))}
	for i := range w {
		tmpl.Layers[i] = LayerSpec{Name: names[i], Shape: w[i].Shape}
	}

	return NewStateDictCodec().FromWeights(w, tmpl)
}
