package asset

import "time"

// Result is the structured outcome of a single validator run. Validators
// never return Go errors across the pipeline boundary; everything they
// have to say is carried here.
type Result struct {
	ValidatorName string
	IsValid       bool
	ErrorCode     Code
	ErrorMessage  string
	Metadata      map[string]any
	Duration      time.Duration
}

// Valid builds a passing result for the named validator.
func Valid(name string) Result {
	return Result{ValidatorName: name, IsValid: true}
}

// Invalid builds a failing result with a code and message.
func Invalid(name string, code Code, msg string) Result {
	return Result{ValidatorName: name, IsValid: false, ErrorCode: code, ErrorMessage: msg}
}

// ModelOutput is what the model processor hands back: the validated
// original plus the render siblings it produced next to it.
type ModelOutput struct {
	OriginalFile        string
	GeneratedImagePaths []string
}

// ProcessingResult is the outcome of a transform. T is the output path
// type: string for the image normalizer, ModelOutput for the renderer.
type ProcessingResult[T any] struct {
	Success      bool
	Output       T
	ErrorMessage string

	// Warning carries a non-fatal problem (for example one failed render
	// angle). It ends up in the file row's error_message next to a VALID
	// status.
	Warning string

	Metadata map[string]any
}
