package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	DrawIDKey      contextKey = "draw_id"
	EventIDKey     contextKey = "event_id"
	RequestIDKey   contextKey = "request_id"
	ServiceNameKey contextKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithDrawID tags the context with the id of a single pipeline run.
func WithDrawID(ctx context.Context, drawID string) context.Context {
	return context.WithValue(ctx, DrawIDKey, drawID)
}

// WithEventID tags the context with the raffle event a draw belongs to.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string     { return getString(ctx, TraceIDKey) }
func GetDrawID(ctx context.Context) string      { return getString(ctx, DrawIDKey) }
func GetEventID(ctx context.Context) string     { return getString(ctx, EventIDKey) }
func GetRequestID(ctx context.Context) string   { return getString(ctx, RequestIDKey) }
func GetServiceName(ctx context.Context) string { return getString(ctx, ServiceNameKey) }

// GetLogFields returns the context values as zap key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	for _, key := range []contextKey{TraceIDKey, RequestIDKey, EventIDKey, DrawIDKey, ServiceNameKey} {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}

	return fields
}
