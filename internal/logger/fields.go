package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so jobs can be
// correlated end to end (bus delivery, pipeline, upload, DB update).
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // Trace ID for job correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// ========================================================================
	// Job Identity
	// ========================================================================
	KeyFileID    = "file_id"    // File row being validated
	KeyListingID = "listing_id" // Owning listing
	KeyUserID    = "user_id"    // Uploading user
	KeyFileType  = "file_type"  // image or model

	// ========================================================================
	// Message Bus
	// ========================================================================
	KeyTopic        = "topic"         // Bus subject/topic
	KeyConsumer     = "consumer"      // Durable consumer / queue group name
	KeyStream       = "stream"        // Stream name
	KeyNumDelivered = "num_delivered" // Delivery attempt count for a message
	KeyMaxDeliver   = "max_deliver"   // Configured delivery budget

	// ========================================================================
	// Object Storage
	// ========================================================================
	KeyBucket = "bucket" // Bucket name
	KeyKey    = "key"    // Object key
	KeyRegion = "region" // Region

	// ========================================================================
	// Pipeline
	// ========================================================================
	KeyValidator = "validator"  // Validator name
	KeyProcessor = "processor"  // Processor name
	KeyErrCode   = "error_code" // Validation error code (ERR_*)
	KeyStatus    = "status"     // File or listing status

	// ========================================================================
	// File System
	// ========================================================================
	KeyPath = "path" // Local file path
	KeySize = "size" // File size in bytes

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for the job trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// FileID returns a slog.Attr for the file row id
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// ListingID returns a slog.Attr for the owning listing id
func ListingID(id string) slog.Attr {
	return slog.String(KeyListingID, id)
}

// UserID returns a slog.Attr for the uploading user id
func UserID(id string) slog.Attr {
	return slog.String(KeyUserID, id)
}

// FileType returns a slog.Attr for the job file type
func FileType(t string) slog.Attr {
	return slog.String(KeyFileType, t)
}

// Topic returns a slog.Attr for a bus subject
func Topic(t string) slog.Attr {
	return slog.String(KeyTopic, t)
}

// Consumer returns a slog.Attr for the durable consumer name
func Consumer(name string) slog.Attr {
	return slog.String(KeyConsumer, name)
}

// Stream returns a slog.Attr for a stream name
func Stream(name string) slog.Attr {
	return slog.String(KeyStream, name)
}

// NumDelivered returns a slog.Attr for a message delivery count
func NumDelivered(n uint64) slog.Attr {
	return slog.Uint64(KeyNumDelivered, n)
}

// MaxDeliver returns a slog.Attr for the configured delivery budget
func MaxDeliver(n int) slog.Attr {
	return slog.Int(KeyMaxDeliver, n)
}

// Bucket returns a slog.Attr for a bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Region returns a slog.Attr for a cloud region
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Validator returns a slog.Attr for a validator name
func Validator(name string) slog.Attr {
	return slog.String(KeyValidator, name)
}

// Processor returns a slog.Attr for a processor name
func Processor(name string) slog.Attr {
	return slog.String(KeyProcessor, name)
}

// ErrCode returns a slog.Attr for a validation error code
func ErrCode(code string) slog.Attr {
	return slog.String(KeyErrCode, code)
}

// Status returns a slog.Attr for a file or listing status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// Path returns a slog.Attr for a local file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Size returns a slog.Attr for a size in bytes
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}
