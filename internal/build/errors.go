package build

import "errors"

// Sentinel errors for render pass failures. They are wrapped with context
// at the call site.
var (
	ErrNoRoot         = errors.New("spark: no page tree declared")
	ErrNoOutputDir    = errors.New("spark: output directory not configured")
	ErrOutsideOutput  = errors.New("spark: output path escapes the output directory")
	ErrPagesFailed    = errors.New("spark: pages failed to render")
	ErrOutputOverlaps = errors.New("spark: output directory overlaps the pages folder")
)
