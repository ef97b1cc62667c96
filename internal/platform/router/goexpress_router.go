package router

import (
	"net/http"

	"github.com/ferdiebergado/goexpress"
)

type goexpressRouter struct {
	handler *goexpress.Router
}

var _ Router = (*goexpressRouter)(nil)

//nolint:ireturn // callers depend on the Router interface
func NewGoexpressRouter() Router {
	return &goexpressRouter{
		handler: goexpress.New(),
	}
}

func (r *goexpressRouter) Get(pattern string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.handler.Get(pattern, handler, middlewares...)
}

func (r *goexpressRouter) Post(pattern string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.handler.Post(pattern, handler, middlewares...)
}

func (r *goexpressRouter) Put(pattern string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.handler.Put(pattern, handler, middlewares...)
}

func (r *goexpressRouter) Patch(pattern string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.handler.Patch(pattern, handler, middlewares...)
}

func (r *goexpressRouter) Delete(pattern string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.handler.Delete(pattern, handler, middlewares...)
}

func (r *goexpressRouter) Options(pattern string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.handler.Options(pattern, handler, middlewares...)
}

func (r *goexpressRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *goexpressRouter) Use(middleware Middleware) {
	r.handler.Use(middleware)
}

// Group shares the parent's mux so routes registered on the group are served
// by the parent. The group's middlewares run after the parent's.
func (r *goexpressRouter) Group(prefix string, fn func(r Router), middlewares ...Middleware) {
	gr := &goexpressRouter{
		handler: goexpress.New(),
	}
	gr.handler.SetPrefix(prefix)
	gr.handler.SetMux(r.handler.Mux())

	parent := r.handler.Middlewares()
	chain := make([]Middleware, 0, len(parent)+len(middlewares))
	chain = append(chain, parent...)
	chain = append(chain, middlewares...)
	gr.handler.SetMiddlewares(chain)

	fn(gr)
}
