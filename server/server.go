// Package server provides the grocer REST server. It owns the connection to
// the store and serves every API added to it under the configured URI base.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/db"
	"github.com/dekarrin/grocer/internal/logging"
	"github.com/dekarrin/grocer/internal/middle"
	"github.com/dekarrin/grocer/internal/order"
	"github.com/go-chi/chi/v5"
)

// RootMessage is the message given by GET on the URI base.
const RootMessage = "Grocer API is running!"

// restServer is an HTTP REST server that provides resources. The zero-value of
// a restServer should not be used directly; call New() to get one ready for
// use.
type restServer struct {
	mtx         *sync.Mutex
	rtr         chi.Router
	closing     bool
	serving     bool
	http        *http.Server
	apis        map[string]grocer.API
	apiOrder    []string
	apiBases    map[string]string
	basesToAPIs map[string]string // used for tracking that APIs do not eat each other
	store       grocer.Store
	cfg         grocer.Config // config that it was started with.

	log grocer.Logger // used for logging. if logging disabled, this will be set to a no-op logger
}

// New creates a new RESTServer ready to have APIs added to it. The configured
// DB is connected to before this function returns, and the config is retained
// for future operations.
func New(cfg *grocer.Config) (grocer.RESTServer, error) {
	// check config
	if cfg == nil {
		cfg = &grocer.Config{}
	} else {
		copy := new(grocer.Config)
		*copy = *cfg
		cfg = copy
	}
	*cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var logger grocer.Logger = logging.NoOpLogger{}
	// config is loaded, make the first thing we start be our logger
	if cfg.Log.Enabled {
		var err error

		logger, err = logging.New(cfg.Log.Provider, cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	store, err := db.Open(context.Background(), cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect %s DB: %w", cfg.DB.Type, err)
	}
	logger.Debugf("Connected to %s DB", cfg.DB.Type)

	rs := &restServer{
		apis:        map[string]grocer.API{},
		apiBases:    map[string]string{},
		mtx:         &sync.Mutex{},
		basesToAPIs: map[string]string{},
		store:       store,
		cfg:         *cfg,
		log:         logger,
	}

	return rs, nil
}

// Config returns the conifguration that the server used during creation.
// Modifying the returned config will have no effect on the server.
func (rs restServer) Config() grocer.Config {
	return rs.cfg.FillDefaults()
}

// RoutesIndex returns a human-readable formatted string that lists all routes
// and methods currently available in the server.
func (rs *restServer) RoutesIndex() string {
	routeMethods := map[string][]string{}

	r := rs.routeAllAPIs()
	chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.TrimSuffix(route, "/*")
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}

		meths, ok := routeMethods[route]
		if !ok {
			meths = []string{}
		}

		meths = append(meths, method)
		routeMethods[route] = meths

		return nil
	})

	// alphabetize the routes
	allRoutes := []string{}
	for name := range routeMethods {
		allRoutes = append(allRoutes, name)
	}
	sort.Strings(allRoutes)

	// write the sorted routes
	var sb strings.Builder
	for _, r := range allRoutes {
		sb.WriteString("* ")
		sb.WriteString(r)
		sb.WriteString(" - ")

		meths := order.Methods(routeMethods[r])
		for i, m := range meths {
			sb.WriteString(m)
			if i+1 < len(meths) {
				sb.WriteString(", ")
			}
		}
		sb.WriteRune('\n')
	}

	return grocer.UnPathParam(strings.TrimSpace(sb.String()))
}

// routeAllAPIs is called just before serving. it gets all added routes and
// mounts them in the base router.
func (rs *restServer) routeAllAPIs() chi.Router {
	rs.mtx.Lock()
	defer rs.mtx.Unlock()

	if rs.rtr != nil {
		return rs.rtr
	}

	sp := endpointCreator{log: rs.log}

	// Create root router
	root := chi.NewRouter()
	root.Use(middle.RequestID(), middle.CORS(), sp.DontPanic(), middle.RedirectSlashes(sp))
	root.NotFound(sp.Endpoint(func(req *http.Request) grocer.Result {
		return sp.NotFound("", "no route for %s", req.URL.Path)
	}))
	root.MethodNotAllowed(sp.Endpoint(func(req *http.Request) grocer.Result {
		return sp.Err(http.StatusMethodNotAllowed, "Method Not Allowed", "method %s not allowed for %s", req.Method, req.URL.Path)
	}))

	// make server base router
	r := root
	if rs.cfg.Globals.URIBase != "/" {
		r = chi.NewRouter()
		root.Mount(rs.cfg.Globals.URIBase, r)
	}

	r.Get("/", sp.Endpoint(func(req *http.Request) grocer.Result {
		return sp.OK(grocer.MessageResponse{Message: RootMessage}, "readiness check")
	}))

	for _, name := range rs.apiOrder {
		api := rs.apis[name]
		base := rs.apiBases[name]

		apiRouter := api.Routes(sp)
		if apiRouter != nil {
			r.Mount(base, apiRouter)
		}
	}

	rs.rtr = root

	return root
}

// Add adds the given API to the server, mounted at base under the server's
// URI base, and initializes it. The name is case-insensitive and will be
// normalized to lowercase. It is an error to use the same normalized name or
// base in two calls to Add on the same RESTServer.
//
// Returns an error if there is any issue initializing the API.
func (rs *restServer) Add(name, base string, api grocer.API) error {
	rs.checkCreatedViaNew()
	name = strings.ToLower(name)

	// aquire mtx to modify the stored router
	rs.mtx.Lock()
	defer rs.mtx.Unlock()

	if _, ok := rs.apis[name]; ok {
		return fmt.Errorf("API named %q has already been added", name)
	}

	// make shore to reset the router so we don't re-use it
	rs.rtr = nil

	rs.log.Debugf("Added API %q; initializing...", name)
	base, err := rs.initAPI(name, base, api)
	if err != nil {
		return err
	}
	rs.apis[name] = api
	rs.apiBases[name] = base
	rs.apiOrder = append(rs.apiOrder, name)

	return nil
}

func (rs *restServer) initAPI(name, base string, api grocer.API) (mountedAt string, err error) {
	base = "/" + strings.Trim(base, "/")

	// routing must be unique on case-insensitive basis
	normBase := strings.ToLower(base)
	if normBase == "/" {
		return "", fmt.Errorf("API %q cannot be mounted at the server base", name)
	}
	if curUser, ok := rs.basesToAPIs[normBase]; ok {
		return "", fmt.Errorf("API %q and %q specify effectively identical API route bases of %q", name, curUser, base)
	}

	initBundle := grocer.Bundle{
		Globals:      rs.cfg.Globals,
		Log:          rs.log,
		DB:           rs.store,
		HideDBErrors: rs.cfg.HideDBErrors,
	}

	// calling into API code, do a panic check
	defer func() {
		if r := recover(); r != nil {
			mountedAt = ""
			err = fmt.Errorf("init API %q: Init(): panic: %v", name, r)
		}
	}()
	if err := api.Init(initBundle); err != nil {
		return "", fmt.Errorf("init API %q: Init(): %w", name, err)
	}
	rs.basesToAPIs[normBase] = name
	rs.log.Debugf("Successfully initialized API %q", name)

	return base, nil
}

func (rs *restServer) checkCreatedViaNew() {
	if rs.mtx == nil {
		panic("server mutex is in invalid state; was this RESTServer created with New()?")
	}
}

// ServeForever begins listening on the server's configured address and port for
// HTTP REST client requests.
//
// This function will block until the server is stopped. If it returns as a
// result of rs.Shutdown() being called elsewhere, it will return
// http.ErrServerClosed.
func (rs *restServer) ServeForever() (err error) {
	rs.checkCreatedViaNew()
	rs.mtx.Lock()
	if rs.serving {
		rs.mtx.Unlock()
		return fmt.Errorf("server is already running")
	}
	rs.serving = true
	rs.mtx.Unlock()

	addr := fmt.Sprintf("%s:%d", rs.cfg.Globals.Address, rs.cfg.Globals.Port)

	// calling into API code, do a panic check
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while running server: %v", r)
		}

		rs.mtx.Lock()
		rs.closing = false
		rs.serving = false
		rs.mtx.Unlock()
	}()
	rtr := rs.routeAllAPIs()

	rs.mtx.Lock()
	rs.http = &http.Server{Addr: addr, Handler: rtr}
	srv := rs.http
	rs.mtx.Unlock()

	return srv.ListenAndServe()
}

// Shutdown shuts down the server gracefully, first closing the HTTP server to
// new connections, then shutting down each individual API the server was
// created with, and finally closing the store. This will cause ServeForever to
// return in any Go thread that is blocking on it. If the passed-in context is
// canceled while shutting down, it will halt graceful shutdown of the HTTP
// server and the APIs.
//
// Returns a non-nil error if the server is not currently running due to a call
// to ServeForever.
//
// Once Shutdown returns, the RESTServer should not be used again.
func (rs *restServer) Shutdown(ctx context.Context) error {
	rs.checkCreatedViaNew()
	rs.mtx.Lock()
	defer rs.mtx.Unlock()
	if rs.closing {
		return fmt.Errorf("close already in-progress in another goroutine")
	}
	if !rs.serving {
		return fmt.Errorf("server is not running")
	}
	rs.closing = true

	var fullError error
	addErr := func(err error) {
		if fullError != nil {
			fullError = fmt.Errorf("%s\nadditionally: %w", fullError, err)
		} else {
			fullError = err
		}
	}

	if rs.http != nil {
		err := rs.http.Shutdown(ctx)
		if err != nil {
			addErr(fmt.Errorf("stop HTTP server: %w", err))
		}
		rs.http = nil
		if err != nil && err == ctx.Err() {
			// if its due to the context expiring or timing out, we should
			// immediately exit without waiting for clean shutdown of the APIs.
			return fullError
		}
	}

	// call life-cycle shutdown on each API
	for _, name := range rs.apiOrder {
		select {
		case <-ctx.Done():
			// for context end, immediately close
			addErr(ctx.Err())
			return fullError
		default:
			if err := shutdownAPI(ctx, rs.apis[name]); err != nil {
				addErr(fmt.Errorf("shutdown API %q: %w", name, err))
			}
		}
	}

	if err := rs.store.Close(); err != nil {
		addErr(fmt.Errorf("close DB: %w", err))
	}

	return fullError
}

func shutdownAPI(ctx context.Context, api grocer.API) error {
	done := make(chan error, 1)
	go func() {
		// calling into API code, do a panic check
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- api.Shutdown(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
