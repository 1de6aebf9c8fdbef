package thumbnailer

import "errors"

// Errors returned by the thumbnailer. Callers match them with errors.Is; the
// returned errors wrap them with detail about the failing frame or search step.
var (
	ErrMemory      = errors.New("thumbnailer: memory error")
	ErrImageFormat = errors.New("thumbnailer: invalid frame format")
	ErrByteBudget  = errors.New("thumbnailer: byte budget cannot be met")
	ErrStats       = errors.New("thumbnailer: frame statistics failed")
	ErrMux         = errors.New("thumbnailer: animation assembly failed")
	ErrSlopeOptim  = errors.New("thumbnailer: slope optimization failed")
	ErrGeneric     = errors.New("thumbnailer: generic error")
)
