package audit

import "context"

// SystemActor is recorded when no actor is present in context,
// e.g. for actions taken by the scheduler.
const SystemActor = "system"

type (
	actorKey     struct{}
	ipKey        struct{}
	requestIDKey struct{}
)

// ContextExtractor extracts a string value from context.
// It returns (value, found) where found indicates if extraction succeeded.
type ContextExtractor func(context.Context) (string, bool)

// WithActorContext stores the acting principal in ctx.
func WithActorContext(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// WithIPContext stores the client IP address in ctx.
func WithIPContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// WithRequestIDContext stores the request identifier in ctx.
func WithRequestIDContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// ActorFromContext is the default actor extractor.
func ActorFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, actorKey{})
}

// IPFromContext is the default IP extractor.
func IPFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, ipKey{})
}

// RequestIDFromContext is the default request ID extractor.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey{})
}

func stringValue(ctx context.Context, key any) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
