package server

import (
	"net/http"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/internal/logging"
	"github.com/dekarrin/grocer/internal/middle"
)

// endpointCreator is the grocer.EndpointServices given to APIs.
type endpointCreator struct {
	log grocer.Logger
}

// NewEndpointServices returns the EndpointServices a server gives its APIs,
// logging with log. If log is nil, nothing is logged.
func NewEndpointServices(log grocer.Logger) grocer.EndpointServices {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return endpointCreator{log: log}
}

func (em endpointCreator) DontPanic() grocer.Middleware {
	return middle.DontPanic(em)
}

func (em endpointCreator) Endpoint(ep grocer.EndpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r := ep(req)
		r.WriteResponse(w)
		em.LogResponse(req, r)
	}
}
