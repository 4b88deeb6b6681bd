package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"jotlet/config"
	"jotlet/models"
	"jotlet/permissions"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	SessionKey   ContextKey = "sessionKey"
	CSRFTokenKey ContextKey = "csrfToken"
	CheckerKey   ContextKey = "checker"
)

// CSRFMiddleware protects against Cross-Site Request Forgery attacks with a
// double-submit cookie. Unsafe methods must echo the cookie in the
// csrf_token form field or the X-CSRF-Token header.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csrfCookie, err := r.Cookie("csrf_token")
		var csrfToken string

		if err != nil || csrfCookie.Value == "" {
			csrfToken = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     "csrf_token",
				Value:    csrfToken,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		} else {
			csrfToken = csrfCookie.Value
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			token := r.Header.Get("X-CSRF-Token")
			if token == "" {
				token = r.FormValue("csrf_token")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(csrfToken)) != 1 {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}
		}

		ctx := context.WithValue(r.Context(), CSRFTokenKey, csrfToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionMiddleware ensures every visitor carries a session cookie. The
// key identifies anonymous authors and is bound to a user on login.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if cookie, err := r.Cookie(config.SessionCookieName); err == nil && cookie.Value != "" {
			key = cookie.Value
		} else {
			key = setSessionCookie(w, r)
		}
		ctx := context.WithValue(r.Context(), SessionKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// setSessionCookie issues a fresh session key.
func setSessionCookie(w http.ResponseWriter, r *http.Request) string {
	key := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    key,
		Path:     "/",
		Expires:  time.Now().Add(config.SessionCookieMaxAge),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

// ViewerMiddleware resolves the session to a viewer and attaches a fresh
// permission checker for the lifetime of the request.
func ViewerMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _ := r.Context().Value(SessionKey).(string)
			viewer, err := app.DB().ViewerForSession(r.Context(), key)
			if err != nil {
				app.Logger().Error("Failed to resolve session", "error", err)
				respondError(w, http.StatusInternalServerError, "Database error.", app)
				return
			}
			ctx := context.WithValue(r.Context(), CheckerKey, permissions.NewChecker(viewer))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkerFrom returns the request's checker, or an anonymous one for the
// bare session when no ViewerMiddleware ran.
func checkerFrom(r *http.Request) *permissions.Checker {
	if c, ok := r.Context().Value(CheckerKey).(*permissions.Checker); ok {
		return c
	}
	key, _ := r.Context().Value(SessionKey).(string)
	return permissions.NewChecker(models.Viewer{SessionKey: key, Permissions: map[string]bool{}})
}

// RequireStaff restricts a route to staff accounts.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checkerFrom(r).Viewer().IsStaff {
			http.Error(w, "Forbidden: staff only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewStructuredLogger logs one line per request with chi's request id.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request served",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// NewSecurityHeadersMiddleware sets conservative response headers. Images
// may additionally load from the S3 public URL when one is configured.
func NewSecurityHeadersMiddleware(s3PublicURL string) func(http.Handler) http.Handler {
	imgSrc := "'self' data:"
	if s3PublicURL != "" {
		imgSrc += " " + s3PublicURL
	}
	csp := "default-src 'self'; img-src " + imgSrc + "; connect-src 'self' ws: wss:; frame-ancestors 'none'"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}
