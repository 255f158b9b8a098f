// Package serde converts between serialized model parameters and the plain
// per-layer weights the aggregation works on.
package serde

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/absmach/fedavg/pkg/fl"
)

const (
	TensorTypeStateDict = "statedict"
	TensorTypeJSONF64   = "json-f64"
)

var (
	ErrUnsupportedTensorType = errors.New("unsupported tensor type")
	ErrMissingTemplate       = errors.New("tensor type requires a model template")
	ErrTemplateMismatch      = errors.New("weights do not match model template")
	ErrEmptyParameters       = errors.New("parameters carry no tensors")
	ErrMalformedParameters   = errors.New("malformed parameters")
)

// Parameters is an opaque serialized model together with the tag of the
// convention that produced it.
type Parameters struct {
	Tensors    [][]byte `json:"tensors"     cbor:"tensors"`
	TensorType string   `json:"tensor_type" cbor:"tensor_type"`
}

// LayerSpec names one layer of a model and its shape.
type LayerSpec struct {
	Name  string `json:"name"  cbor:"name"`
	Shape []int  `json:"shape" cbor:"shape"`
}

// Model is the structure of a model without its values. Container formats
// need it to rebuild a serialized model from plain weights.
type Model struct {
	Layers []LayerSpec `json:"layers"`
}

func (m *Model) match(w fl.Weights) error {
	if len(m.Layers) != len(w) {
		return fmt.Errorf("%w: template has %d layers, got %d", ErrTemplateMismatch, len(m.Layers), len(w))
	}
	for i, l := range m.Layers {
		if !w[i].SameShape(fl.Tensor{Shape: l.Shape}) {
			return fmt.Errorf("%w: layer %q has shape %v, got %v", ErrTemplateMismatch, l.Name, l.Shape, w[i].Shape)
		}
	}

	return nil
}

type Codec interface {
	// TensorType is the tag written to Parameters produced by the codec.
	TensorType() string
	// ToWeights extracts the per-layer arrays.
	ToWeights(p Parameters) (fl.Weights, error)
	// FromWeights serializes w. Container formats require tmpl.
	FromWeights(w fl.Weights, tmpl *Model) (Parameters, error)
	// Template extracts the model structure from p.
	Template(p Parameters) (*Model, error)
}

type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns a registry holding the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register(NewStateDictCodec())
	r.Register(NewJSONCodec())

	return r
}

func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codecs[c.TensorType()] = c
}

func (r *Registry) Lookup(tensorType string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codecs[tensorType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTensorType, tensorType)
	}

	return c, nil
}

func (r *Registry) TensorTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.codecs))
	for t := range r.codecs {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

// ToWeights decodes p with the codec registered for its tensor type.
func (r *Registry) ToWeights(p Parameters) (fl.Weights, error) {
	c, err := r.Lookup(p.TensorType)
	if err != nil {
		return nil, err
	}

	return c.ToWeights(p)
}
