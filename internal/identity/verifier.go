// Package identity turns a bearer JWT into the trusted user id the session
// service keys everything on.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"sessionlimit/internal/observability/metrics"
	obsmw "sessionlimit/internal/observability/middleware"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("token has no subject")

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	logger *slog.Logger
}

func NewVerifier(secret, issuer string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, logger: logger}
}

// Subject validates raw and returns its sub claim.
func (v *Verifier) Subject(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %T", token.Method)
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}

func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := obsmw.RequestIDFromContext(r.Context())
		raw := r.Header.Get("Authorization")
		if len(raw) < len("Bearer ") || !strings.EqualFold(raw[:len("Bearer ")], "bearer ") {
			metrics.AuthenticationAttemptsTotal.WithLabelValues("missing").Inc()
			v.logger.Warn("auth missing bearer", "request_id", reqID)
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		sub, err := v.Subject(strings.TrimSpace(raw[len("Bearer "):]))
		if err != nil {
			metrics.AuthenticationAttemptsTotal.WithLabelValues("invalid").Inc()
			v.logger.Warn("auth invalid token", "error", err, "request_id", reqID)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		metrics.AuthenticationAttemptsTotal.WithLabelValues("success").Inc()
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
	})
}

type subjectKey struct{}

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func SubjectFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey{}).(string)
	return v, ok && v != ""
}
