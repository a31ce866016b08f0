package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "assetflow", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, FileID("file-1"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("FileID", func(t *testing.T) {
		attr := FileID("file-123")
		assert.Equal(t, AttrJobFileID, string(attr.Key))
		assert.Equal(t, "file-123", attr.Value.AsString())
	})

	t.Run("ListingID", func(t *testing.T) {
		attr := ListingID("listing-456")
		assert.Equal(t, AttrJobListingID, string(attr.Key))
		assert.Equal(t, "listing-456", attr.Value.AsString())
	})

	t.Run("FileType", func(t *testing.T) {
		attr := FileType("model")
		assert.Equal(t, AttrJobFileType, string(attr.Key))
		assert.Equal(t, "model", attr.Value.AsString())
	})

	t.Run("Topic", func(t *testing.T) {
		attr := Topic("validate_file")
		assert.Equal(t, AttrTopic, string(attr.Key))
		assert.Equal(t, "validate_file", attr.Value.AsString())
	})

	t.Run("Validator", func(t *testing.T) {
		attr := Validator("MeshLoadValidator")
		assert.Equal(t, AttrValidator, string(attr.Key))
		assert.Equal(t, "MeshLoadValidator", attr.Value.AsString())
	})

	t.Run("ErrorCode", func(t *testing.T) {
		attr := ErrorCode("ERR_FILE_TOO_LARGE")
		assert.Equal(t, AttrErrorCode, string(attr.Key))
		assert.Equal(t, "ERR_FILE_TOO_LARGE", attr.Value.AsString())
	})

	t.Run("FileSize", func(t *testing.T) {
		attr := FileSize(1048576)
		assert.Equal(t, AttrFileSize, string(attr.Key))
		assert.Equal(t, int64(1048576), attr.Value.AsInt64())
	})

	t.Run("Bucket", func(t *testing.T) {
		attr := Bucket("incoming-files")
		assert.Equal(t, AttrBucket, string(attr.Key))
		assert.Equal(t, "incoming-files", attr.Value.AsString())
	})

	t.Run("StorageKey", func(t *testing.T) {
		attr := StorageKey("user/listing/file.stl")
		assert.Equal(t, AttrKey, string(attr.Key))
		assert.Equal(t, "user/listing/file.stl", attr.Value.AsString())
	})
}

func TestStartJobSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartJobSpan(ctx, "trace-1", "file-1", "listing-1", "image")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartJobSpan(ctx, "trace-2", "file-2", "listing-2", "model", UserID("user-1"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartStorageSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartStorageSpan(ctx, "download", "incoming-files", "user/listing/file.jpg")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartStorageSpan(ctx, "upload", "public-files", "user/listing/file.webp", FileSize(2048))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartPipelineSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartPipelineSpan(ctx, "model")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
