package router

import "net/http"

type Middleware = func(next http.Handler) http.Handler

// Router registers handlers by method and pattern. Patterns follow
// net/http.ServeMux, so path values such as {id} are read with
// r.PathValue.
type Router interface {
	http.Handler
	Get(pattern string, handler http.HandlerFunc, middlewares ...Middleware)
	Post(pattern string, handler http.HandlerFunc, middlewares ...Middleware)
	Put(pattern string, handler http.HandlerFunc, middlewares ...Middleware)
	Patch(pattern string, handler http.HandlerFunc, middlewares ...Middleware)
	Delete(pattern string, handler http.HandlerFunc, middlewares ...Middleware)
	Options(pattern string, handler http.HandlerFunc, middlewares ...Middleware)
	Use(middleware Middleware)
	Group(prefix string, fn func(r Router), middlewares ...Middleware)
}
