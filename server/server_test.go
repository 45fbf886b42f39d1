package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New(t *testing.T) {
	t.Run("sqlite store", func(t *testing.T) {
		assert := assert.New(t)

		cfg := grocer.Config{
			DB: grocer.DatabaseConfig{Type: grocer.DatabaseSQLite, DataDir: t.TempDir()},
		}

		server, err := New(&cfg)
		if !assert.NoError(err) {
			return
		}
		rs := server.(*restServer)
		defer rs.store.Close()

		actual := server.Config()
		assert.Equal(8000, actual.Globals.Port)
		assert.Equal("localhost", actual.Globals.Address)
		assert.Equal("/", actual.Globals.URIBase)
		assert.Equal(1, actual.DB.MaxConns)

		// the caller's copy is not modified
		assert.Equal(0, cfg.Globals.Port)

		assert.NoError(rs.store.Ping(context.Background()))
	})

	t.Run("invalid config", func(t *testing.T) {
		assert := assert.New(t)

		cfg := grocer.Config{
			Globals: grocer.Globals{Port: 70000},
			DB:      grocer.DatabaseConfig{Type: grocer.DatabaseSQLite, DataDir: t.TempDir()},
		}

		_, err := New(&cfg)

		assert.ErrorContains(err, "port")
	})

	t.Run("unreachable store", func(t *testing.T) {
		assert := assert.New(t)

		cfg := grocer.Config{
			DB: grocer.DatabaseConfig{
				Type:     grocer.DatabasePostgres,
				Host:     "127.0.0.1",
				Port:     freePort(t),
				Name:     "grocery",
				User:     "grocer",
				Password: "hunter2",
			},
		}

		_, err := New(&cfg)

		assert.ErrorContains(err, "connect postgres DB")
	})
}

func Test_restServer_Add(t *testing.T) {
	testCases := []struct {
		name         string
		setup        func(rs *restServer)
		apiName      string
		base         string
		api          *fakeAPI
		expectBase   string
		expectErrStr string
	}{
		{
			name:       "base is normalized",
			apiName:    "Grocery",
			base:       "api/",
			api:        &fakeAPI{},
			expectBase: "/api",
		},
		{
			name:         "server base is not allowed",
			apiName:      "grocery",
			base:         "/",
			api:          &fakeAPI{},
			expectErrStr: "cannot be mounted at the server base",
		},
		{
			name: "name already added",
			setup: func(rs *restServer) {
				rs.Add("GROCERY", "/other", &fakeAPI{})
			},
			apiName:      "grocery",
			base:         "/api",
			api:          &fakeAPI{},
			expectErrStr: "already been added",
		},
		{
			name: "base already used",
			setup: func(rs *restServer) {
				rs.Add("other", "/API", &fakeAPI{})
			},
			apiName:      "grocery",
			base:         "/api",
			api:          &fakeAPI{},
			expectErrStr: "effectively identical API route bases",
		},
		{
			name:         "Init fails",
			apiName:      "grocery",
			base:         "/api",
			api:          &fakeAPI{initErr: errors.New("init error")},
			expectErrStr: "init error",
		},
		{
			name:         "Init panics",
			apiName:      "grocery",
			base:         "/api",
			api:          &fakeAPI{initPanic: "my special panic"},
			expectErrStr: "my special panic",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			rs := getInitializedServer()
			if tc.setup != nil {
				tc.setup(rs)
			}

			err := rs.Add(tc.apiName, tc.base, tc.api)

			if tc.expectErrStr != "" {
				assert.ErrorContains(err, tc.expectErrStr)
				return
			}
			if !assert.NoError(err) {
				return
			}

			name := strings.ToLower(tc.apiName)
			assert.Same(tc.api, rs.apis[name])
			assert.Equal(tc.expectBase, rs.apiBases[name])
			assert.Equal([]string{name}, rs.apiOrder)
		})
	}

	t.Run("Init gets the bundle", func(t *testing.T) {
		assert := assert.New(t)
		rs := getInitializedServer()
		rs.cfg.HideDBErrors = true
		api := &fakeAPI{}

		err := rs.Add("grocery", "/api", api)
		if !assert.NoError(err) {
			return
		}

		assert.Same(rs.store, api.bundle.DB)
		assert.True(api.bundle.HideDBErrors)
		assert.Equal(rs.cfg.Globals, api.bundle.Globals)
		assert.NotNil(api.bundle.Log)
	})
}

func Test_restServer_RoutesIndex(t *testing.T) {
	testCases := []struct {
		name    string
		uriBase string
		expect  string
	}{
		{
			name:    "at root",
			uriBase: "/",
			expect: "* / - GET\n" +
				"* /api - GET\n" +
				"* /api/things - GET, POST\n" +
				"* /api/things/{id} - GET, DELETE",
		},
		{
			name:    "under a URI base",
			uriBase: "/v1",
			expect: "* /v1 - GET\n" +
				"* /v1/api - GET\n" +
				"* /v1/api/things - GET, POST\n" +
				"* /v1/api/things/{id} - GET, DELETE",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			rs := getInitializedServer()
			rs.cfg.Globals.URIBase = tc.uriBase
			require.NoError(t, rs.Add("test", "/api", &fakeAPI{routes: thingRoutes}))

			actual := rs.RoutesIndex()

			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_restServer_routing(t *testing.T) {
	testCases := []struct {
		name         string
		uriBase      string
		method       string
		path         string
		header       map[string]string
		host         string
		expectStatus int
		expectBody   string
		expectHeader map[string]string
		expectRedir  string
	}{
		{
			name:         "root message",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/",
			expectStatus: http.StatusOK,
			expectBody:   `{"message": "Grocer API is running!"}`,
		},
		{
			name:         "root message under URI base",
			uriBase:      "/v1",
			method:       http.MethodGet,
			path:         "/v1",
			expectStatus: http.StatusOK,
			expectBody:   `{"message": "Grocer API is running!"}`,
		},
		{
			name:         "API route",
			uriBase:      "/v1",
			method:       http.MethodGet,
			path:         "/v1/api/things",
			expectStatus: http.StatusOK,
			expectBody:   `{"message": "things"}`,
		},
		{
			name:         "unknown route",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/nowhere",
			expectStatus: http.StatusNotFound,
			expectBody:   `{"detail": "Not Found"}`,
		},
		{
			name:         "unknown route in API",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/api/things/abc",
			expectStatus: http.StatusNotFound,
			expectBody:   `{"detail": "Not Found"}`,
		},
		{
			name:         "method not allowed",
			uriBase:      "/",
			method:       http.MethodPatch,
			path:         "/api/things",
			expectStatus: http.StatusMethodNotAllowed,
			expectBody:   `{"detail": "Method Not Allowed"}`,
		},
		{
			name:         "trailing slash is redirected",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/api/things/",
			expectStatus: http.StatusPermanentRedirect,
			expectRedir:  "/api/things",
		},
		{
			name:         "trailing slash on a write keeps the method and ignores host",
			uriBase:      "/",
			method:       http.MethodPost,
			path:         "/api/things/",
			host:         "evil.example",
			expectStatus: http.StatusPermanentRedirect,
			expectRedir:  "/api/things",
		},
		{
			name:         "trailing slash under URI base",
			uriBase:      "/v1",
			method:       http.MethodDelete,
			path:         "/v1/api/things/4/",
			expectStatus: http.StatusPermanentRedirect,
			expectRedir:  "/v1/api/things/4",
		},
		{
			name:    "CORS preflight",
			uriBase: "/",
			method:  http.MethodOptions,
			path:    "/api/things",
			header: map[string]string{
				"Origin":                        "http://shop.example",
				"Access-Control-Request-Method": "POST",
			},
			expectStatus: http.StatusOK,
			expectHeader: map[string]string{
				"Access-Control-Allow-Origin":      "http://shop.example",
				"Access-Control-Allow-Credentials": "true",
			},
		},
		{
			name:         "CORS on simple request",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/api/things",
			expectStatus: http.StatusOK,
			expectBody:   `{"message": "things"}`,
			expectHeader: map[string]string{"Access-Control-Allow-Origin": "*"},
		},
		{
			name:         "request ID is echoed",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/",
			header:       map[string]string{"X-Request-ID": "abc-123"},
			expectStatus: http.StatusOK,
			expectBody:   `{"message": "Grocer API is running!"}`,
			expectHeader: map[string]string{"X-Request-ID": "abc-123"},
		},
		{
			name:         "handler panic",
			uriBase:      "/",
			method:       http.MethodGet,
			path:         "/api/things/13",
			expectStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			rs := getInitializedServer()
			rs.cfg.Globals.URIBase = tc.uriBase
			require.NoError(t, rs.Add("test", "/api", &fakeAPI{routes: thingRoutes}))

			req := httptest.NewRequest(tc.method, tc.path, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			if tc.host != "" {
				req.Host = tc.host
			}
			w := httptest.NewRecorder()

			rs.routeAllAPIs().ServeHTTP(w, req)

			resp := w.Result()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(tc.expectStatus, resp.StatusCode)
			if tc.expectBody != "" {
				assert.JSONEq(tc.expectBody, string(body))
			}
			if tc.expectRedir != "" {
				assert.Equal(tc.expectRedir, resp.Header.Get("Location"))
			}
			for k, v := range tc.expectHeader {
				assert.Equal(v, resp.Header.Get(k), "header %s", k)
			}
			assert.NotEmpty(resp.Header.Get("X-Request-ID"))
		})
	}
}

func Test_restServer_ServeForever_And_Shutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping long-running tests that require server up")
	}

	t.Run("empty server, clean shutdown via *http.Server stop", func(t *testing.T) {
		assert := assert.New(t)
		server := getListeningServer(t)
		retErrChan := make(chan error)

		go func() {
			retErrChan <- server.ServeForever()
		}()
		waitUntilServing(t, server)

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		server.mtx.Lock()
		srv := server.http
		server.mtx.Unlock()
		shutdownErr := srv.Shutdown(timeLimitCtx)
		serveForeverErr := <-retErrChan

		assert.NoError(shutdownErr)
		assert.ErrorIs(serveForeverErr, http.ErrServerClosed)
	})

	t.Run("empty server, clean shutdown via Shutdown method", func(t *testing.T) {
		assert := assert.New(t)
		server := getListeningServer(t)
		retErrChan := make(chan error)

		go func() {
			retErrChan <- server.ServeForever()
		}()
		waitUntilServing(t, server)

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		shutdownErr := server.Shutdown(timeLimitCtx)
		serveForeverErr := <-retErrChan

		assert.NoError(shutdownErr)
		assert.ErrorIs(serveForeverErr, http.ErrServerClosed)
		assert.True(server.store.(*fakeStore).isClosed())
	})

	t.Run("not running", func(t *testing.T) {
		assert := assert.New(t)
		server := getListeningServer(t)

		err := server.Shutdown(context.Background())

		assert.ErrorContains(err, "server is not running")
	})

	t.Run("custom-api server, clean shutdown via Shutdown method", func(t *testing.T) {
		assert := assert.New(t)
		api := &fakeAPI{routes: thingRoutes}

		server := getListeningServer(t)
		require.NoError(t, server.Add("test", "/api", api))
		retErrChan := make(chan error)

		go func() {
			retErrChan <- server.ServeForever()
		}()
		waitUntilServing(t, server)

		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/api/things", server.cfg.Globals.Port))
		if assert.NoError(err) {
			resp.Body.Close()
			assert.Equal(http.StatusOK, resp.StatusCode)
		}

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		shutdownErr := server.Shutdown(timeLimitCtx)
		serveForeverErr := <-retErrChan

		assert.NoError(shutdownErr)
		assert.ErrorIs(serveForeverErr, http.ErrServerClosed)
		assert.True(api.isShutdown())
	})

	t.Run("custom-api server, api shutdown terminated by context", func(t *testing.T) {
		assert := assert.New(t)
		api := &fakeAPI{
			routes: thingRoutes,
			shutdown: func(ctx context.Context) error {
				// operation will take 10 seconds
				time.Sleep(10 * time.Second)
				return nil
			},
		}

		server := getListeningServer(t)
		require.NoError(t, server.Add("test", "/api", api))
		retErrChan := make(chan error)

		go func() {
			retErrChan <- server.ServeForever()
		}()
		waitUntilServing(t, server)

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		shutdownErr := server.Shutdown(timeLimitCtx)
		serveForeverErr := <-retErrChan

		assert.ErrorIs(shutdownErr, context.DeadlineExceeded)
		assert.ErrorIs(serveForeverErr, http.ErrServerClosed)
	})

	t.Run("custom-api server, api shutdown returns error", func(t *testing.T) {
		assert := assert.New(t)
		api := &fakeAPI{
			routes: thingRoutes,
			shutdown: func(ctx context.Context) error {
				return errors.New("shutdown error")
			},
		}

		server := getListeningServer(t)
		require.NoError(t, server.Add("test", "/api", api))
		retErrChan := make(chan error)

		go func() {
			retErrChan <- server.ServeForever()
		}()
		waitUntilServing(t, server)

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		shutdownErr := server.Shutdown(timeLimitCtx)
		serveForeverErr := <-retErrChan

		assert.ErrorContains(shutdownErr, "shutdown error")
		assert.ErrorIs(serveForeverErr, http.ErrServerClosed)
		assert.True(server.store.(*fakeStore).isClosed())
	})

	t.Run("custom-api server, api shutdown panics", func(t *testing.T) {
		assert := assert.New(t)
		api := &fakeAPI{
			routes: thingRoutes,
			shutdown: func(ctx context.Context) error {
				panic("my special panic")
			},
		}

		server := getListeningServer(t)
		require.NoError(t, server.Add("test", "/api", api))
		retErrChan := make(chan error)

		go func() {
			retErrChan <- server.ServeForever()
		}()
		waitUntilServing(t, server)

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		shutdownErr := server.Shutdown(timeLimitCtx)
		serveForeverErr := <-retErrChan

		assert.ErrorContains(shutdownErr, "my special panic")
		assert.ErrorIs(serveForeverErr, http.ErrServerClosed)
	})

	t.Run("custom-api server, routes panics", func(t *testing.T) {
		assert := assert.New(t)
		api := &fakeAPI{
			routes: func(em grocer.EndpointServices) chi.Router {
				panic("my special panic")
			},
		}

		server := getListeningServer(t)
		require.NoError(t, server.Add("test", "/api", api))

		serveForeverErr := server.ServeForever()

		timeLimitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(timeLimitCtx)

		assert.ErrorContains(serveForeverErr, "my special panic")
		assert.ErrorContains(shutdownErr, "server is not running")
	})
}

// thingRoutes is a small API with a handler that panics for ID 13.
func thingRoutes(em grocer.EndpointServices) chi.Router {
	r := chi.NewRouter()

	r.Get("/", em.Endpoint(func(req *http.Request) grocer.Result {
		return em.OK(grocer.MessageResponse{Message: "api"})
	}))
	r.Get("/things", em.Endpoint(func(req *http.Request) grocer.Result {
		return em.OK(grocer.MessageResponse{Message: "things"})
	}))
	r.Post("/things", em.Endpoint(func(req *http.Request) grocer.Result {
		return em.OK(grocer.MessageResponse{Message: "made a thing"})
	}))
	r.Get("/things/"+grocer.PathParam("id:num"), em.Endpoint(func(req *http.Request) grocer.Result {
		id, err := grocer.GetIDParam(req)
		if err != nil {
			return em.NotFound("", "bad id: %v", err)
		}
		if id == 13 {
			panic("unlucky")
		}
		return em.OK(grocer.MessageResponse{Message: fmt.Sprintf("thing %d", id)})
	}))
	r.Delete("/things/"+grocer.PathParam("id:num"), em.Endpoint(func(req *http.Request) grocer.Result {
		return em.OK(grocer.MessageResponse{Message: "deleted"})
	}))

	return r
}

type fakeAPI struct {
	initErr   error
	initPanic string
	routes    func(em grocer.EndpointServices) chi.Router
	shutdown  func(ctx context.Context) error

	mtx    sync.Mutex
	bundle grocer.Bundle
	done   bool
}

func (api *fakeAPI) Init(bundle grocer.Bundle) error {
	if api.initPanic != "" {
		panic(api.initPanic)
	}
	api.bundle = bundle
	return api.initErr
}

func (api *fakeAPI) Routes(em grocer.EndpointServices) chi.Router {
	if api.routes == nil {
		return nil
	}
	return api.routes(em)
}

func (api *fakeAPI) Shutdown(ctx context.Context) error {
	api.mtx.Lock()
	api.done = true
	api.mtx.Unlock()

	if api.shutdown != nil {
		return api.shutdown(ctx)
	}
	return nil
}

func (api *fakeAPI) isShutdown() bool {
	api.mtx.Lock()
	defer api.mtx.Unlock()
	return api.done
}

type fakeStore struct {
	mtx    sync.Mutex
	closed bool
}

func (fs *fakeStore) Ping(ctx context.Context) error {
	return nil
}

func (fs *fakeStore) Version(ctx context.Context) (string, error) {
	return "fake 1.0", nil
}

func (fs *fakeStore) Close() error {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	fs.closed = true
	return nil
}

func (fs *fakeStore) isClosed() bool {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()
	return fs.closed
}

func getInitializedServer() *restServer {
	return &restServer{
		mtx:         &sync.Mutex{},
		apis:        map[string]grocer.API{},
		apiBases:    map[string]string{},
		basesToAPIs: map[string]string{},
		log:         logging.NoOpLogger{},
		store:       &fakeStore{},
		cfg:         grocer.Config{}.FillDefaults(),
	}
}

// getListeningServer is getInitializedServer on a free local port.
func getListeningServer(t *testing.T) *restServer {
	rs := getInitializedServer()
	rs.cfg.Globals.Port = freePort(t)
	return rs
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

// waitUntilServing blocks until rs answers on its root path.
func waitUntilServing(t *testing.T, rs *restServer) {
	t.Helper()

	url := fmt.Sprintf("http://localhost:%d/", rs.cfg.Globals.Port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			var msg grocer.MessageResponse
			json.NewDecoder(resp.Body).Decode(&msg)
			resp.Body.Close()
			if msg.Message == RootMessage {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not come up on %s", url)
}
