package fl

import "errors"

var (
	ErrNoUpdates     = errors.New("no updates provided for aggregation")
	ErrOverflow      = errors.New("sample count overflow during aggregation")
	ErrZeroExamples  = errors.New("cannot aggregate: total number of examples is zero")
	ErrLayerMismatch = errors.New("cannot aggregate: mismatched number of layers")
	ErrShapeMismatch = errors.New("cannot aggregate: mismatched layer shape")
	ErrNonFinite     = errors.New("cannot aggregate: value is NaN or infinite")
)
