package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"advocase/internal/utils"
	"advocase/pkg/types"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	contextKeyUserID contextKey = "user_id"
	contextKeyEmail  contextKey = "email"
	contextKeyRole   contextKey = "role"
)

const anonCookieName = "anon_id"

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": uuid.NewString(),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rw.status,
			"duration":   time.Since(ts).String(),
		}).Info("handled request")
	})
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			r.URL.Path = strings.TrimSuffix(r.URL.Path, "/")
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAuth gates a route on a valid bearer token. The verified subject,
// email, and role land on the request context.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, email, role, err := s.authenticate(r)
		if err != nil {
			s.logger.WithError(err).Debug("rejected request credentials")
			s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyUserID, userID)
		ctx = context.WithValue(ctx, contextKeyEmail, email)
		ctx = context.WithValue(ctx, contextKeyRole, role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AllowAnonymousOwner authenticates a bearer token when one is presented.
// Without one, and only when anonymous export is enabled, it assigns a
// durable anonymous owner id via an encrypted cookie so the same browser
// keeps ownership of the cases it creates.
func (s *Service) AllowAnonymousOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, email, role, err := s.authenticate(r)
		if err == nil {
			ctx := r.Context()
			ctx = context.WithValue(ctx, contextKeyUserID, userID)
			ctx = context.WithValue(ctx, contextKeyEmail, email)
			ctx = context.WithValue(ctx, contextKeyRole, role)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !s.config.AllowAnonymousExport {
			s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
			return
		}

		anonID, err := s.anonIDFromCookie(r)
		if err != nil {
			anonID = "anon:" + utils.NanoID()

			encoded, err := s.cookie.Encode(anonCookieName, anonID)
			if err != nil {
				s.logger.WithError(err).Error("failed to encode anonymous cookie")
				s.respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     anonCookieName,
				Value:    encoded,
				Path:     "/",
				MaxAge:   int((90 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   s.config.Environment == "production",
			})
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, anonID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) anonIDFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(anonCookieName)
	if err != nil {
		return "", err
	}

	var anonID string
	if err := s.cookie.Decode(anonCookieName, cookie.Value, &anonID); err != nil {
		return "", err
	}
	if anonID == "" {
		return "", fmt.Errorf("empty anonymous id")
	}

	return anonID, nil
}

// bearerUser validates the Authorization header against the identity
// provider's signing keys and returns the subject, email, and role claims.
func (s *Service) bearerUser(r *http.Request) (string, string, string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "", "", fmt.Errorf("missing authorization header")
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", "", "", fmt.Errorf("malformed authorization header")
	}

	if s.jwksCache == nil {
		return "", "", "", fmt.Errorf("token verification is not configured")
	}

	keySet, err := s.jwksCache.Lookup(r.Context(), s.jwksURL)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to fetch token signing keys: %w", err)
	}

	token, err := jwt.Parse([]byte(raw), jwt.WithKeySet(keySet), jwt.WithValidate(true))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to parse token: %w", err)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return "", "", "", fmt.Errorf("token has no subject")
	}

	var email string
	_ = token.Get("email", &email)

	role := string(types.UserRoleVictim)
	var claimedRole string
	if err := token.Get("custom:role", &claimedRole); err == nil && types.UserRole(claimedRole).Valid() {
		role = claimedRole
	}

	return subject, email, role, nil
}
