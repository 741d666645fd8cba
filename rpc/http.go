package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/MixinNetwork/rworld/world"
	"github.com/dimfeld/httptreemux"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
)

type R struct {
	World *world.World
}

type Call struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func NewRouter(w *world.World) *httptreemux.TreeMux {
	router, impl := httptreemux.New(), &R{World: w}
	router.POST("/", impl.handle)

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(w))
	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	router.GET("/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		metrics.ServeHTTP(w, r)
	})
	registerHanders(router)
	return router
}

func registerHanders(router *httptreemux.TreeMux) {
	router.MethodNotAllowedHandler = func(w http.ResponseWriter, r *http.Request, _ map[string]httptreemux.HandlerFunc) {
		render.New().JSON(w, http.StatusNotFound, map[string]any{})
	}
	router.NotFoundHandler = func(w http.ResponseWriter, r *http.Request) {
		render.New().JSON(w, http.StatusNotFound, map[string]any{})
	}
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, rcv any) {
		err := fmt.Errorf("%v\n%s", rcv, debug.Stack())
		render.New().JSON(w, http.StatusInternalServerError, map[string]any{"error": &Error{Code: "internal", Description: err.Error()}})
	}
}

func (impl *R) handle(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var call Call
	d := json.NewDecoder(r.Body)
	d.UseNumber()
	if err := d.Decode(&call); err != nil {
		render.New().JSON(w, http.StatusBadRequest, map[string]any{"error": newError(err)})
		return
	}
	renderer := &Render{w: w, impl: render.New()}
	switch call.Method {
	case "startworld":
		info, err := startWorld(impl.World, call.Params)
		renderer.RenderDataOrError(info, err)
	case "stopworld":
		info, err := stopWorld(impl.World, call.Params)
		renderer.RenderDataOrError(info, err)
	case "joinworld":
		info, err := joinWorld(impl.World, call.Params)
		renderer.RenderDataOrError(info, err)
	case "getinfo":
		renderer.RenderData(impl.World.Info())
	case "listpeers":
		renderer.RenderData(impl.World.Peers())
	case "sendmessage":
		err := sendMessage(impl.World, call.Params)
		renderer.RenderDataOrError(map[string]any{}, err)
	case "listevents":
		events, err := listEvents(impl.World, call.Params)
		renderer.RenderDataOrError(events, err)
	default:
		renderer.RenderError(fmt.Errorf("invalid method %s", call.Method))
	}
}

type Render struct {
	w    http.ResponseWriter
	impl *render.Render
}

func (r *Render) RenderData(data any) {
	r.impl.JSON(r.w, http.StatusOK, map[string]any{"data": data})
}

func (r *Render) RenderError(err error) {
	r.impl.JSON(r.w, http.StatusOK, map[string]any{"error": newError(err)})
}

func (r *Render) RenderDataOrError(data any, err error) {
	if err != nil {
		r.RenderError(err)
	} else {
		r.RenderData(data)
	}
}

func handleCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Access-Control-Allow-Headers", "Content-Type,Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "OPTIONS,GET,POST")
		w.Header().Set("Access-Control-Max-Age", "600")
		if r.Method == "OPTIONS" {
			render.New().JSON(w, http.StatusOK, map[string]any{})
		} else {
			handler.ServeHTTP(w, r)
		}
	})
}

func NewHandler(w *world.World) http.Handler {
	router := NewRouter(w)
	handler := handleCORS(router)
	return handlers.ProxyHeaders(handler)
}

func NewServer(w *world.World, port int) *http.Server {
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: NewHandler(w)}
}
