package grocer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse is the body of every JSON error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is the body of acknowledgements and status messages.
type MessageResponse struct {
	Message string `json:"message"`
}

// should not be directly init'd probs because log will not be set
type Result struct {
	Status      int
	IsErr       bool
	IsJSON      bool
	InternalMsg string

	Resp  interface{}
	Redir string // only used for redirects

	// set by calling PrepareMarshaledResponse.
	respJSONBytes []byte
}

// PrepareMarshaledResponse sets the respJSONBytes to the marshaled version of
// the response if required. If required, and there is a problem marshaling, an
// error is returned. If not required, nil error is always returned.
//
// If PrepareMarshaledResponse has been successfully called at least once for r,
// calling this method again has no effect and will return a nil error.
func (r *Result) PrepareMarshaledResponse() error {
	if r.respJSONBytes != nil {
		return nil
	}

	if r.IsJSON && r.Status != http.StatusNoContent && r.Redir == "" {
		var err error
		r.respJSONBytes, err = json.Marshal(r.Resp)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r Result) WriteResponse(w http.ResponseWriter) {
	// if this hasn't been properly created, panic
	if r.Status == 0 {
		panic("result not populated")
	}

	err := r.PrepareMarshaledResponse()
	if err != nil {
		panic(fmt.Sprintf("could not marshal response: %s", err.Error()))
	}

	var respBytes []byte

	if r.IsJSON {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if r.Redir == "" {
			respBytes = r.respJSONBytes
		}
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if r.Status != http.StatusNoContent && r.Redir == "" {
			respBytes = []byte(fmt.Sprintf("%v", r.Resp))
		}
	}

	// if there is a redir, handle that now
	if r.Redir != "" {
		w.Header().Set("Location", r.Redir)
	}

	w.WriteHeader(r.Status)

	if r.Status != http.StatusNoContent {
		w.Write(respBytes)
	}
}

// ResponseGenerator creates Results for endpoints to return. Every userMsg is
// shown to the client in the "detail" field of the body; internal messages
// only go to the log.
type ResponseGenerator interface {
	OK(respObj interface{}, internalMsg ...interface{}) Result
	BadRequest(userMsg string, internalMsg ...interface{}) Result
	NotFound(userMsg string, internalMsg ...interface{}) Result
	InternalServerError(userMsg string, internalMsg ...interface{}) Result
	Redirection(uri string) Result
	Response(status int, respObj interface{}, internalMsg string, v ...interface{}) Result
	Err(status int, userMsg, internalMsg string, v ...interface{}) Result
	TextErr(status int, userMsg, internalMsg string, v ...interface{}) Result
	LogResponse(req *http.Request, r Result)
}

// EndpointFunc is a handler that produces a Result instead of writing to the
// response directly.
type EndpointFunc func(req *http.Request) Result

// Middleware is a function that wraps a handler.
type Middleware func(next http.Handler) http.Handler

// EndpointServices is passed to an API when its routes are built. It gives
// access to result creation, logging, and common middleware.
type EndpointServices interface {
	ResponseGenerator

	// Endpoint converts an EndpointFunc into an http.HandlerFunc that writes
	// and logs the result.
	Endpoint(ep EndpointFunc) http.HandlerFunc

	// DontPanic returns middleware that turns a panic into an HTTP-500.
	DontPanic() Middleware

	// Logger returns the logger the server was configured with.
	Logger() Logger
}

// API is a set of routes mounted under a base path of a RESTServer.
type API interface {
	// Init is called once when the API is added to a server. The Bundle holds
	// the connected store and the configuration the server was created with.
	Init(bundle Bundle) error

	// Routes builds the router for the API. It is called once, just before the
	// server begins serving.
	Routes(em EndpointServices) chi.Router

	// Shutdown releases anything held by the API. The store itself is closed
	// by the server.
	Shutdown(ctx context.Context) error
}

// Bundle is what an API receives on Init.
type Bundle struct {
	Globals Globals
	Log     Logger
	DB      Store

	// HideDBErrors is whether store error text should be kept out of
	// responses.
	HideDBErrors bool
}

// Store is a connected persistence layer. APIs type-assert it to the concrete
// store they expect in Init.
type Store interface {
	// Ping checks that a connection to the store can be made.
	Ping(ctx context.Context) error

	// Version returns the version string reported by the store.
	Version(ctx context.Context) (string, error)

	// Close releases all connections held by the Store.
	Close() error
}

// RESTServer is an HTTP server that serves one or more APIs over a single
// connected store.
type RESTServer interface {
	Config() Config
	RoutesIndex() string
	Add(name, base string, api API) error
	ServeForever() error
	Shutdown(ctx context.Context) error
}
