// Package webhook verifies HMAC-SHA256 signed webhook deliveries.
//
// A sender signs the raw request body with a shared secret and sends the hex
// digest in the X-Webhook-Signature header. Verifier is plain net/http
// middleware so that it can sit in front of any handler.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

const defaultMaxBody = 1 << 20

// Sign returns the hex HMAC-SHA256 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks webhook signatures.
type Verifier struct {
	secret  string
	maxBody int64
	logger  *slog.Logger
}

// NewVerifier creates a Verifier for secret. An empty secret disables
// verification and every delivery is accepted.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret:  secret,
		maxBody: defaultMaxBody,
		logger:  logger,
	}
}

// Enabled reports whether deliveries are verified.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Verify reports whether signature is the hex HMAC of body. Hex case is
// ignored.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if !v.Enabled() {
		return true
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Middleware rejects deliveries whose signature does not match with
// 401 "Invalid signature". Accepted requests reach next with the body
// intact.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, v.maxBody))
		if err != nil {
			v.logger.Warn("could not read webhook body", "error", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		if !v.Verify(raw, r.Header.Get(SignatureHeader)) {
			v.logger.Warn("rejecting webhook with invalid signature",
				"remote", r.RemoteAddr,
				"bytes", len(raw),
			)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "Invalid signature")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(raw))
		next.ServeHTTP(w, r)
	})
}

// Ack acknowledges a delivery with "ok". Event handling is left to the
// deployment.
func Ack(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		logger.Info("webhook received", "bytes", len(raw))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
}
