package logger

import "context"

// requestIDKey is unexported so only this package writes the value.
type requestIDKey struct{}

// WithRequestID stamps an API request id into the context. The HTTP
// middleware sets it once per call; the access logger and handlers read it
// back so every record for one approval call shares the same id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stamped by WithRequestID, or "" when unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
