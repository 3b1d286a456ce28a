package middleware

import (
	"mime"
	"net/http"

	apperrors "apartur/pkg/errors"
	"apartur/pkg/logger"
)

// ContentTypeValidation requires application/json on requests that carry a body.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiresContentType(r) {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					log.Warn("Invalid Content-Type header",
						"request_id", RequestIDFromContext(r.Context()),
						"content_type", r.Header.Get("Content-Type"),
						"path", r.URL.Path,
						"method", r.Method,
					)
					reject(w, &apperrors.AppError{
						Code:       apperrors.CodeBadRequest,
						Message:    "Content-Type must be application/json",
						HTTPStatus: http.StatusUnsupportedMediaType,
					})
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requiresContentType(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	default:
		return false
	}
}

func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				reject(w, &apperrors.AppError{
					Code:       apperrors.CodeBadRequest,
					Message:    "request body too large",
					HTTPStatus: http.StatusRequestEntityTooLarge,
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
