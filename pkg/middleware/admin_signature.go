package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "apartur/pkg/errors"
	"apartur/pkg/logger"
)

const (
	AdminSignatureHeader = "X-Admin-Signature"
	AdminTimestampHeader = "X-Admin-Timestamp"

	maxSignatureSkew = 5 * time.Minute
)

// AdminSignature guards admin endpoints. Callers sign
// "<unix timestamp>.<raw body>" with HMAC-SHA256 and send the hex digest as
// "sha256=<digest>" together with the timestamp header.
func AdminSignature(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return adminSignature(secret, log, time.Now)
}

func adminSignature(secret string, log *logger.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				rejectSignature(w, log, r, "admin secret not configured")
				return
			}

			signature, ok := strings.CutPrefix(r.Header.Get(AdminSignatureHeader), "sha256=")
			if !ok || signature == "" {
				rejectSignature(w, log, r, "missing "+AdminSignatureHeader+" header")
				return
			}

			timestamp := r.Header.Get(AdminTimestampHeader)
			unix, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				rejectSignature(w, log, r, "invalid "+AdminTimestampHeader+" header")
				return
			}
			if skew := now().Sub(time.Unix(unix, 0)); skew > maxSignatureSkew || skew < -maxSignatureSkew {
				rejectSignature(w, log, r, "signature timestamp outside allowed window")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				rejectSignature(w, log, r, "failed to read request body")
				return
			}

			if !VerifySignature(secret, timestamp, body, signature) {
				rejectSignature(w, log, r, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret, timestamp string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func rejectSignature(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Admin signature verification failed",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	reject(w, apperrors.Unauthorized("Unauthorized"))
}
