// Package actor resolves the acting user for a request and carries it through
// request context. Identity comes from a trusted-proxy header or a JWT Bearer
// token; authentication itself happens upstream of this service.
package actor

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ctxKey is an unexported type used as the context key for the actor.
type ctxKey struct{}

// WithActor returns a new context with the given user ID attached.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// FromContext retrieves the acting user ID from the context.
// Returns "system" if no actor is set.
func FromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(ctxKey{}).(string); ok && userID != "" {
		return userID
	}
	return "system"
}

// Config configures the actor middleware.
type Config struct {
	// PublicKeyPath is the path to a PEM-encoded RSA public key for RS256
	// verification of Bearer tokens. If empty, tokens are parsed but NOT
	// verified (trusted proxy mode).
	PublicKeyPath string

	// Issuer is the expected token issuer. If empty, issuer is not validated.
	Issuer string

	// Logger for debugging. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Middleware returns chi-compatible middleware that resolves the actor from
// the X-User-Principal header or a JWT Bearer token (sub claim) and stores it
// in the request context.
func Middleware(cfg Config) (func(http.Handler) http.Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		key, err := loadRSAPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		publicKey = key
		cfg.Logger.Info("actor middleware: using RS256 verification", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("actor middleware: no public key configured, tokens parsed without verification (trusted proxy mode)")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := resolveActor(r, publicKey, cfg)
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), userID)))
		})
	}, nil
}

// resolveActor prefers X-User-Principal over a Bearer token subject,
// falling back to "system".
func resolveActor(r *http.Request, publicKey *rsa.PublicKey, cfg Config) string {
	if principal := r.Header.Get("X-User-Principal"); principal != "" {
		return principal
	}
	token := bearerToken(r)
	if token == "" {
		return "system"
	}
	sub, err := subjectFromToken(token, publicKey, cfg)
	if err != nil {
		cfg.Logger.Debug("JWT parse failed, defaulting actor to system", "error", err)
		return "system"
	}
	return sub
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// subjectFromToken parses and optionally verifies a JWT, returning its sub claim.
func subjectFromToken(tokenString string, publicKey *rsa.PublicKey, cfg Config) (string, error) {
	parserOpts := []jwt.ParserOption{}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	if publicKey != nil {
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return publicKey, nil
		}, parserOpts...)
		if err != nil {
			return "", err
		}
	} else {
		parser := jwt.NewParser(parserOpts...)
		if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
			return "", err
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT public key from %s: %w", path, err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from %s", path)
	}
	parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaKey, ok := parsedKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA (got %T)", parsedKey)
	}
	return rsaKey, nil
}
