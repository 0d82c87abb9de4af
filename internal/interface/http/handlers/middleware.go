package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vespa-hub/vespa-results/internal/application/access"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEWER IDENTITY
// The host page authenticates the viewer and forwards who they are. Nothing
// here trusts a viewer beyond that: scope is always resolved server side.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// HeaderViewerEmail carries the logged-in viewer's email.
	HeaderViewerEmail = "X-Viewer-Email"
	// HeaderViewerRoles optionally carries the raw role data of the viewer:
	// comma separated names, a JSON array, or the rendered role markup.
	HeaderViewerRoles = "X-Viewer-Roles"
)

type viewerKey struct{}

// ViewerFromRequest reads the viewer from the identity headers.
func ViewerFromRequest(r *http.Request) access.Viewer {
	v := access.Viewer{Email: strings.TrimSpace(r.Header.Get(HeaderViewerEmail))}
	if raw := strings.TrimSpace(r.Header.Get(HeaderViewerRoles)); raw != "" {
		v.RawRoles = raw
	}
	return v
}

// WithViewer stores the viewer in ctx.
func WithViewer(ctx context.Context, v access.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFromContext returns the viewer stored by RequireViewer.
func ViewerFromContext(ctx context.Context) (access.Viewer, bool) {
	v, ok := ctx.Value(viewerKey{}).(access.Viewer)
	return v, ok
}

// RequireViewer rejects requests without a usable viewer identity and stores
// the viewer in the request context. onMissing writes the rejection.
func RequireViewer(onMissing func(w http.ResponseWriter, r *http.Request, err error)) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := ViewerFromRequest(r)
			if err := v.Validate(); err != nil {
				onMissing(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), v)))
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMEOUT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TimeoutMiddleware bounds the request context. Handlers see the deadline
// through ctx; the remote fetch honours it.
func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CONTROL MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// NoCacheMiddleware prevents caching. Every results response is personal data.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"error":"payload_too_large","message":"Request body too large"}`,
					http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions. The first one is outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
