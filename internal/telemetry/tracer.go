package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for worker operations.
// Messaging and storage keys follow OpenTelemetry semantic conventions
// where applicable; job and validation keys use their own prefix.
const (
	// ========================================================================
	// Job attributes
	// ========================================================================
	AttrJobTraceID   = "job.trace_id"
	AttrJobFileID    = "job.file_id"
	AttrJobListingID = "job.listing_id"
	AttrJobUserID    = "job.user_id"
	AttrJobFileType  = "job.file_type"
	AttrJobOutcome   = "job.outcome"

	// ========================================================================
	// Messaging attributes
	// ========================================================================
	AttrTopic = "messaging.destination.name"

	// ========================================================================
	// Validation attributes
	// ========================================================================
	AttrValidator = "validation.validator"
	AttrErrorCode = "validation.error_code"
	AttrProcessor = "validation.processor"

	// ========================================================================
	// File attributes
	// ========================================================================
	AttrFilePath = "file.path"
	AttrFileSize = "file.size"
	AttrMimeType = "file.mime_type"

	// ========================================================================
	// Storage attributes
	// ========================================================================
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrRegion = "storage.region"
)

// Span names for worker operations.
// Format: <component>.<operation>
const (
	SpanHandleJob    = "worker.handle_job"
	SpanValidate     = "pipeline.run"
	SpanProcessImage = "process.image"
	SpanProcessModel = "process.model"
	SpanCompleteFile = "db.complete_file_validation"
	SpanMarkInvalid  = "db.mark_file_invalid"
	SpanPublish      = "bus.publish"
)

// JobTraceID returns an attribute for the job's trace ID
func JobTraceID(id string) attribute.KeyValue {
	return attribute.String(AttrJobTraceID, id)
}

// FileID returns an attribute for the file being validated
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrJobFileID, id)
}

// ListingID returns an attribute for the listing the file belongs to
func ListingID(id string) attribute.KeyValue {
	return attribute.String(AttrJobListingID, id)
}

// UserID returns an attribute for the owning user
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrJobUserID, id)
}

// FileType returns an attribute for the declared file type
func FileType(t string) attribute.KeyValue {
	return attribute.String(AttrJobFileType, t)
}

// Outcome returns an attribute for the job's terminal outcome
func Outcome(o string) attribute.KeyValue {
	return attribute.String(AttrJobOutcome, o)
}

// Topic returns an attribute for a bus topic
func Topic(t string) attribute.KeyValue {
	return attribute.String(AttrTopic, t)
}

// Validator returns an attribute for a validator name
func Validator(name string) attribute.KeyValue {
	return attribute.String(AttrValidator, name)
}

// ErrorCode returns an attribute for a validation error code
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// Processor returns an attribute for a processor name
func Processor(name string) attribute.KeyValue {
	return attribute.String(AttrProcessor, name)
}

// FilePath returns an attribute for a local file path
func FilePath(path string) attribute.KeyValue {
	return attribute.String(AttrFilePath, path)
}

// FileSize returns an attribute for a file size in bytes
func FileSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, size)
}

// MimeType returns an attribute for a detected MIME type
func MimeType(mt string) attribute.KeyValue {
	return attribute.String(AttrMimeType, mt)
}

// Bucket returns an attribute for an S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for a cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// StartJobSpan starts the root span for one validation job.
// This is a convenience function that sets common job attributes.
func StartJobSpan(ctx context.Context, traceID, fileID, listingID, fileType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		JobTraceID(traceID),
		FileID(fileID),
		ListingID(listingID),
		FileType(fileType),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanHandleJob, trace.WithAttributes(allAttrs...))
}

// StartStorageSpan starts a span for an object storage operation.
func StartStorageSpan(ctx context.Context, operation, bucket, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Bucket(bucket),
		StorageKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "storage."+operation, trace.WithAttributes(allAttrs...))
}

// StartPipelineSpan starts a span for one validation pipeline run.
func StartPipelineSpan(ctx context.Context, pipelineName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		attribute.String("pipeline.name", pipelineName),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanValidate, trace.WithAttributes(allAttrs...))
}
