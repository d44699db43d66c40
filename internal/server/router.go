package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiRouter implements [Router] on a [chi.Mux].
//
// Path patterns use chi syntax, so "/api/queue/{id}" binds the id URL parameter.
type ChiRouter struct {
	mux *chi.Mux
}

// NewChiRouter creates an empty [ChiRouter].
func NewChiRouter() *ChiRouter {
	return &ChiRouter{mux: chi.NewRouter()}
}

// Use adds [Middleware] to the stack, applied in the order it's added. It must be called before any route is registered.
func (r *ChiRouter) Use(middleware ...Middleware) {
	for _, m := range middleware {
		r.mux.Use(m)
	}
}

// Handle registers handler for method and path. Other methods on the same path get 405.
func (r *ChiRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Method(method, path, handler)
}

// Handler registers h for every route it declares, for all methods.
func (r *ChiRouter) Handler(h Handler) {
	for _, route := range h.Routes() {
		r.mux.Handle(route, h)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *ChiRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
