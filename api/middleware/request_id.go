package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Incoming ids are echoed into logs and headers, so only short tokens are
// trusted.
var acceptedRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !acceptedRequestID.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			var ctx context.Context
			if logg != nil {
				ctx = logg.WithRequestID(r.Context(), reqID)
			} else {
				ctx = logger.ContextWithRequestID(r.Context(), reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
