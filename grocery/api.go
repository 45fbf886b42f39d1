// Package grocery provides the grocery-management API: CRUD endpoints for
// customers, products, suppliers, employees, invoices, purchase orders, and
// order line items, plus status endpoints.
package grocery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/db"
	"github.com/dekarrin/grocer/resource"
	"github.com/go-chi/chi/v5"
)

// Messages given by the status endpoints.
const (
	APIMessage         = "API is running!"
	DBStatusSuccess    = "success"
	DBStatusError      = "error"
	DBConnectedMessage = "Database connection successful"
	DBFailedMessage    = "Database connection failed"
)

// DBStatusResponse is the body of the test-db endpoint.
type DBStatusResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	DatabaseVersion string `json:"database_version,omitempty"`
}

// API is the grocery API. It implements grocer.API and must be added to a
// server before use.
type API struct {
	// DBCheckTimeout bounds the test-db check. Defaults to 5 seconds.
	DBCheckTimeout time.Duration

	store        *db.Store
	hideDBErrors bool
	log          grocer.Logger
}

// Init connects the API to the store in the bundle. On SQLite stores, the
// tables are created if they do not exist.
func (api *API) Init(bundle grocer.Bundle) error {
	api.log = bundle.Log
	api.hideDBErrors = bundle.HideDBErrors

	store, ok := bundle.DB.(*db.Store)
	if !ok {
		return fmt.Errorf("received unexpected store type %T", bundle.DB)
	}
	api.store = store

	if api.DBCheckTimeout == 0 {
		api.DBCheckTimeout = 5 * time.Second
	}

	if err := EnsureSchema(context.Background(), store); err != nil {
		return err
	}

	return nil
}

// Shutdown shuts down the API. This is added to implement grocer.API, and
// has no effect on the API but to return the error of the context.
func (api *API) Shutdown(ctx context.Context) error {
	return ctx.Err()
}

// Routes returns the router for the API. Each entity is mounted at its own
// path.
func (api *API) Routes(em grocer.EndpointServices) chi.Router {
	r := chi.NewRouter()

	r.Get("/", api.HTTPGetStatus(em))
	r.Get("/test-db", api.HTTPGetTestDB(em))

	mount(r, em, api, Customers)
	mount(r, em, api, Products)
	mount(r, em, api, Suppliers)
	mount(r, em, api, Employees)
	mount(r, em, api, Invoices)
	mount(r, em, api, PurchaseOrders)
	mount(r, em, api, OrderDetails)

	return r
}

func mount[Q resource.Request, W any](r chi.Router, em grocer.EndpointServices, api *API, e resource.Entity[Q, W]) {
	ep := resource.Endpoints[Q, W]{
		Repo:         resource.NewRepo(api.store, e),
		HideDBErrors: api.hideDBErrors,
	}
	r.Mount("/"+e.Path, ep.Routes(em))
}

// HTTPGetStatus returns a HandlerFunc that reports the API is up. It does not
// touch the store.
func (api *API) HTTPGetStatus(em grocer.EndpointServices) http.HandlerFunc {
	return em.Endpoint(func(req *http.Request) grocer.Result {
		return em.OK(grocer.MessageResponse{Message: APIMessage}, "api status")
	})
}

// HTTPGetTestDB returns a HandlerFunc that checks the store can be queried and
// reports its version. It always responds with HTTP-200; a failure is given in
// the body.
func (api *API) HTTPGetTestDB(em grocer.EndpointServices) http.HandlerFunc {
	return em.Endpoint(func(req *http.Request) grocer.Result {
		ctx, cancel := context.WithTimeout(req.Context(), api.DBCheckTimeout)
		defer cancel()

		version, err := api.store.Version(ctx)
		if err != nil {
			msg := DBFailedMessage
			if !api.hideDBErrors {
				msg += ": " + err.Error()
			}
			resp := DBStatusResponse{Status: DBStatusError, Message: msg}
			return em.OK(resp, "DB check failed: %v", err)
		}

		resp := DBStatusResponse{
			Status:          DBStatusSuccess,
			Message:         DBConnectedMessage,
			DatabaseVersion: version,
		}
		return em.OK(resp, "DB check: %s", version)
	})
}
