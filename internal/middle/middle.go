// Package middle contains middleware for use with the grocer server.
package middle

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/dekarrin/grocer"
	"github.com/google/uuid"
)

type mwFunc http.HandlerFunc

func (sf mwFunc) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	sf(w, req)
}

type ctxKey int64

const (
	ctxKeyRequestID ctxKey = iota
)

// RequestIDHeader is the header a request ID is read from and echoed back in.
const RequestIDHeader = "X-Request-ID"

// WithRequestID returns a copy of ctx that carries the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom returns the request ID in ctx, or "" if there is none.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// RequestID returns a Middleware that tags each request with an ID. A
// client-supplied X-Request-ID is kept if it is short and printable; otherwise
// a random UUID is generated. The ID is echoed in the response header.
func RequestID() grocer.Middleware {
	return func(next http.Handler) http.Handler {
		return mwFunc(func(w http.ResponseWriter, req *http.Request) {
			id := req.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, req.WithContext(WithRequestID(req.Context(), id)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, ch := range id {
		if ch < 0x21 || ch > 0x7e {
			return false
		}
	}
	return true
}

// CORS returns a Middleware that allows cross-origin requests from any origin
// with any method and header, credentials included. The Origin is echoed
// instead of "*" because browsers refuse a wildcard on credentialed requests.
// Preflight OPTIONS requests are answered directly.
func CORS() grocer.Middleware {
	return func(next http.Handler) http.Handler {
		return mwFunc(func(w http.ResponseWriter, req *http.Request) {
			hdr := w.Header()

			if origin := req.Header.Get("Origin"); origin != "" {
				hdr.Set("Access-Control-Allow-Origin", origin)
				hdr.Add("Vary", "Origin")
			} else {
				hdr.Set("Access-Control-Allow-Origin", "*")
			}
			hdr.Set("Access-Control-Allow-Credentials", "true")
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

			if reqHeaders := req.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				hdr.Set("Access-Control-Allow-Headers", reqHeaders)
			} else {
				hdr.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, "+RequestIDHeader)
			}
			hdr.Set("Access-Control-Expose-Headers", RequestIDHeader)

			if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
				hdr.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// DontPanic returns a Middleware that performs a panic check as it exits. If
// the function is panicking, it will write out an HTTP response with a generic
// message to the client and add it to the log.
func DontPanic(resp grocer.ResponseGenerator) grocer.Middleware {
	return func(next http.Handler) http.Handler {
		return mwFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if panicErr := recover(); panicErr != nil {
					if panicErr == http.ErrAbortHandler {
						panic(panicErr)
					}

					r := resp.TextErr(
						http.StatusInternalServerError,
						"An internal server error occurred",
						"panic: %v\nSTACK TRACE: %s", panicErr, strings.TrimSpace(string(debug.Stack())),
					)
					r.WriteResponse(w)
					resp.LogResponse(req, r)
				}
			}()
			next.ServeHTTP(w, req)
		})
	}
}


// RedirectSlashes returns a Middleware that answers a request whose path ends
// in a slash with a redirect to the same path without it. The Location is a
// path built from the request URL alone, never the Host header. Leading
// slashes are collapsed so the target cannot name another host.
func RedirectSlashes(resp grocer.ResponseGenerator) grocer.Middleware {
	return func(next http.Handler) http.Handler {
		return mwFunc(func(w http.ResponseWriter, req *http.Request) {
			path := req.URL.EscapedPath()
			if len(path) < 2 || !strings.HasSuffix(path, "/") {
				next.ServeHTTP(w, req)
				return
			}

			target := "/" + strings.Trim(path, "/")
			if req.URL.RawQuery != "" {
				target += "?" + req.URL.RawQuery
			}

			r := resp.Redirection(target)
			r.WriteResponse(w)
			resp.LogResponse(req, r)
		})
	}
}
