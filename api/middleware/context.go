package middleware

import "context"

type contextKey string

const ctxIdempotencyKey contextKey = "idempotency_key"

// IdempotencyKeyFromContext returns the Idempotency-Key claimed for this
// request, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxIdempotencyKey).(string); ok {
		return v
	}
	return ""
}

func withIdempotencyKey(ctx context.Context, key string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdempotencyKey, key)
}
