package asset

import "fmt"

// Code identifies why a validator rejected a file. The values are stable
// and end up verbatim in the listing_files.error_message column and in
// logs, so they must not change between releases.
type Code string

const (
	CodeUnknown              Code = "ERR_UNKNOWN"
	CodeFileNotFound         Code = "ERR_FILE_NOT_FOUND"
	CodeFileRead             Code = "ERR_FILE_READ"
	CodeMimeMismatch         Code = "ERR_MIME_MISMATCH"
	CodeFileCorrupt          Code = "ERR_FILE_CORRUPT"
	CodeDimensionTooLarge    Code = "ERR_DIMENSION_TOO_LARGE"
	CodeFileTooLarge         Code = "ERR_FILE_TOO_LARGE"
	CodeMeshLoadFailure      Code = "ERR_MESH_LOAD_FAILURE"
	CodeMeshIntegrityFailure Code = "ERR_MESH_INTEGRITY_FAILURE"
	CodeModelTooComplex      Code = "ERR_MODEL_TOO_COMPLEX"
)

// PermanentError marks a job as unrecoverable: bad payload, unsupported
// type, or a failed validation. The worker marks the file INVALID and
// acks the message so the broker never redelivers it.
type PermanentError struct {
	Msg string
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent builds a PermanentError from a format string.
func Permanent(format string, args ...any) *PermanentError {
	return &PermanentError{Msg: fmt.Sprintf(format, args...)}
}

// PermanentWrap attaches a cause to a PermanentError.
func PermanentWrap(err error, format string, args ...any) *PermanentError {
	return &PermanentError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// TransientError marks a job as retryable: storage, database or bus I/O
// failed in a way that a later delivery may not hit. The worker naks the
// message with a delay and lets the broker's delivery budget bound the
// number of attempts.
type TransientError struct {
	Msg string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient builds a TransientError from a format string.
func Transient(format string, args ...any) *TransientError {
	return &TransientError{Msg: fmt.Sprintf(format, args...)}
}

// TransientWrap attaches a cause to a TransientError.
func TransientWrap(err error, format string, args ...any) *TransientError {
	return &TransientError{Msg: fmt.Sprintf(format, args...), Err: err}
}
