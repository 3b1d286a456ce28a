package middleware

import (
	"context"
	"net/http"

	apperrors "apartur/pkg/errors"
	httputil "apartur/pkg/http"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

const RequestIDHeader = "X-Request-ID"

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func reject(w http.ResponseWriter, err *apperrors.AppError) {
	_ = httputil.WriteError(w, err)
}
