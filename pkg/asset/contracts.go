package asset

// Validator is one synchronous check. Implementations must not panic or
// return Go errors past this boundary: every outcome, including internal
// faults, is expressed as a Result. Critical validators gate the heavy
// decoders and run sequentially before everything else.
type Validator interface {
	Name() string
	Critical() bool
	Validate(asset *Context, policy *Policy) Result
}

// ImageProcessor transforms a validated image and returns the path of
// the derived file it wrote next to the input.
type ImageProcessor interface {
	Name() string
	Process(asset *Context, policy *Policy) ProcessingResult[string]
}

// ModelProcessor renders a validated model and returns the original path
// plus the render siblings it produced. The worker owns uploading and
// deleting everything in the output.
type ModelProcessor interface {
	Name() string
	Process(asset *Context, policy *Policy) ProcessingResult[ModelOutput]
}
