package resource

import (
	"errors"
	"net/http"

	"github.com/dekarrin/grocer"
	"github.com/go-chi/chi/v5"
)

// HiddenDBErrorMessage replaces store error text in responses when store
// errors are hidden.
const HiddenDBErrorMessage = "A database error occurred"

// CountResponse is the body returned by the count endpoint.
type CountResponse struct {
	Count int64 `json:"count"`
}

// Endpoints serves the six operations of a Repo over HTTP.
type Endpoints[Q Request, W any] struct {
	Repo Repo[Q, W]

	// HideDBErrors replaces store error text in response bodies with
	// HiddenDBErrorMessage. The full error is still logged.
	HideDBErrors bool

	em grocer.EndpointServices
}

// Routes returns a router with the entity's endpoints rooted at "/".
func (ep Endpoints[Q, W]) Routes(em grocer.EndpointServices) chi.Router {
	ep.em = em

	r := chi.NewRouter()

	r.Get("/", ep.httpGetAll())
	r.Post("/", ep.httpCreate())
	r.Get("/count", ep.httpCount())

	r.Route("/"+grocer.PathParam("id:int"), func(r chi.Router) {
		r.Get("/", ep.httpGet())
		r.Put("/", ep.httpUpdate())
		r.Delete("/", ep.httpDelete())
	})

	return r
}

func (ep Endpoints[Q, W]) httpGetAll() http.HandlerFunc {
	return ep.em.Endpoint(func(req *http.Request) grocer.Result {
		all, err := ep.Repo.List(req.Context())
		if err != nil {
			return ep.readErr(err, "list %s", ep.Repo.Entity.Table)
		}

		return ep.em.OK(all, "got all %s (%d)", ep.Repo.Entity.Table, len(all))
	})
}

func (ep Endpoints[Q, W]) httpCount() http.HandlerFunc {
	return ep.em.Endpoint(func(req *http.Request) grocer.Result {
		count, err := ep.Repo.Count(req.Context())
		if err != nil {
			return ep.readErr(err, "count %s", ep.Repo.Entity.Table)
		}

		return ep.em.OK(CountResponse{Count: count}, "counted %d %s", count, ep.Repo.Entity.Table)
	})
}

func (ep Endpoints[Q, W]) httpGet() http.HandlerFunc {
	return ep.em.Endpoint(func(req *http.Request) grocer.Result {
		id, err := grocer.GetIDParam(req)
		if err != nil {
			return ep.notFound("get %s: %v", ep.Repo.Entity.Table, err)
		}

		rec, err := ep.Repo.Get(req.Context(), id)
		if err != nil {
			return ep.readErr(err, "get %s %d", ep.Repo.Entity.Table, id)
		}

		return ep.em.OK(rec, "got %s %d", ep.Repo.Entity.Table, id)
	})
}

func (ep Endpoints[Q, W]) httpCreate() http.HandlerFunc {
	return ep.em.Endpoint(func(req *http.Request) grocer.Result {
		q, errResult := ep.decode(req)
		if errResult != nil {
			return *errResult
		}

		rec, err := ep.Repo.Create(req.Context(), q)
		if err != nil {
			return ep.writeErr(err, "create %s", ep.Repo.Entity.Table)
		}

		return ep.em.OK(rec, "created %s", ep.Repo.Entity.Table)
	})
}

func (ep Endpoints[Q, W]) httpUpdate() http.HandlerFunc {
	return ep.em.Endpoint(func(req *http.Request) grocer.Result {
		id, err := grocer.GetIDParam(req)
		if err != nil {
			return ep.notFound("update %s: %v", ep.Repo.Entity.Table, err)
		}

		q, errResult := ep.decode(req)
		if errResult != nil {
			return *errResult
		}

		rec, err := ep.Repo.Update(req.Context(), id, q)
		if err != nil {
			return ep.writeErr(err, "update %s %d", ep.Repo.Entity.Table, id)
		}

		return ep.em.OK(rec, "updated %s %d", ep.Repo.Entity.Table, id)
	})
}

func (ep Endpoints[Q, W]) httpDelete() http.HandlerFunc {
	return ep.em.Endpoint(func(req *http.Request) grocer.Result {
		id, err := grocer.GetIDParam(req)
		if err != nil {
			return ep.notFound("delete %s: %v", ep.Repo.Entity.Table, err)
		}

		err = ep.Repo.Delete(req.Context(), id)
		if err != nil {
			return ep.writeErr(err, "delete %s %d", ep.Repo.Entity.Table, id)
		}

		msg := grocer.MessageResponse{Message: ep.Repo.Entity.Name + " deleted successfully"}
		return ep.em.OK(msg, "deleted %s %d", ep.Repo.Entity.Table, id)
	})
}

// decode reads and validates the request body. If it fails, the returned
// Result is the response to send.
func (ep Endpoints[Q, W]) decode(req *http.Request) (Q, *grocer.Result) {
	var q Q

	if err := grocer.ParseJSONRequest(req, &q); err != nil {
		r := ep.em.BadRequest(detailOf(err), "decode %s request: %v", ep.Repo.Entity.Table, err)
		return q, &r
	}
	if err := q.Validate(); err != nil {
		r := ep.em.BadRequest(detailOf(err), "validate %s request: %v", ep.Repo.Entity.Table, err)
		return q, &r
	}

	return q, nil
}

func (ep Endpoints[Q, W]) notFound(internalMsg string, v ...interface{}) grocer.Result {
	return ep.em.NotFound(ep.Repo.Entity.Name+" not found", append([]interface{}{internalMsg}, v...)...)
}

// readErr gives the response for a failed read. Anything other than a
// missing row is a server error.
func (ep Endpoints[Q, W]) readErr(err error, action string, v ...interface{}) grocer.Result {
	internal := append([]interface{}{action + ": %v"}, append(v, err)...)

	if errors.Is(err, grocer.ErrNotFound) {
		return ep.notFound(internal[0].(string), internal[1:]...)
	}
	return ep.em.InternalServerError(ep.detail(err), internal...)
}

// writeErr gives the response for a failed write. A store that cannot be
// reached is a server error; anything else the store rejects is the client's.
func (ep Endpoints[Q, W]) writeErr(err error, action string, v ...interface{}) grocer.Result {
	internal := append([]interface{}{action + ": %v"}, append(v, err)...)

	if errors.Is(err, grocer.ErrNotFound) {
		return ep.notFound(internal[0].(string), internal[1:]...)
	}
	if errors.Is(err, grocer.ErrUnavailable) {
		return ep.em.InternalServerError(ep.detail(err), internal...)
	}
	return ep.em.BadRequest(ep.detail(err), internal...)
}

func (ep Endpoints[Q, W]) detail(err error) string {
	if ep.HideDBErrors && errors.Is(err, grocer.ErrDB) {
		return HiddenDBErrorMessage
	}
	return detailOf(err)
}

func detailOf(err error) string {
	var gErr grocer.Error
	if errors.As(err, &gErr) {
		return gErr.Message()
	}
	return err.Error()
}
