package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds job-scoped logging context
type LogContext struct {
	TraceID   string    // Trace ID for job correlation (from the ingress payload)
	SpanID    string    // OpenTelemetry span ID
	FileID    string    // File row being validated
	ListingID string    // Owning listing
	UserID    string    // Uploading user
	FileType  string    // image or model
	Topic     string    // Bus topic the job arrived on
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given trace ID
func NewLogContext(traceID string) *LogContext {
	return &LogContext{
		TraceID:   traceID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	out := *lc
	return &out
}

// WithJob returns a copy with the job identifiers set
func (lc *LogContext) WithJob(fileID, listingID, userID, fileType string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.FileID = fileID
		clone.ListingID = listingID
		clone.UserID = userID
		clone.FileType = fileType
	}
	return clone
}

// WithTopic returns a copy with the topic set
func (lc *LogContext) WithTopic(topic string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Topic = topic
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
