package api

import (
	"net/http"

	"github.com/rs/zerolog"
)

type Route interface {
	http.Handler

	// Pattern reports the path at which this is registered.
	Pattern() string
	Method() string
}

// Middleware wraps the whole router. The first middleware given is the outermost.
type Middleware func(http.Handler) http.Handler

// tracedRoute puts a request-scoped logger tagged with the route into the request context.
type tracedRoute struct {
	Route
	logger zerolog.Logger
}

func traceRoute(route Route, logger *zerolog.Logger) tracedRoute {
	return tracedRoute{
		Route: route,
		logger: logger.With().
			Str("method", route.Method()).
			Str("route", route.Pattern()).
			Logger(),
	}
}

func (t tracedRoute) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.logger.Debug().Str("path", r.URL.Path).Msg("handling request")
	t.Route.ServeHTTP(w, r.WithContext(t.logger.WithContext(r.Context())))
}

// NewRouter registers every route under its method, so a request for a known path with the wrong
// method gets a 405 with an Allow header from the mux.
func NewRouter(
	routes []Route,
	logger *zerolog.Logger,
	middlewares ...Middleware,
) http.Handler {
	router := http.NewServeMux()
	for _, route := range routes {
		logger.Info().Msgf("Registering route: %s %s", route.Method(), route.Pattern())
		router.Handle(route.Method()+" "+route.Pattern(), traceRoute(route, logger))
	}

	var handler http.Handler = router
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// CORSMiddleware allows any origin. The API only listens on loopback by default.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, User-Agent")
		w.Header().Set("Access-Control-Max-Age", "86400") // Cache preflight for 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper package to easily return structured routes given basic info.
type basicRoute struct {
	method  string
	pattern string
	fn      http.HandlerFunc
}

func NewBasicRoute(method, pattern string, fn http.HandlerFunc) Route {
	return &basicRoute{
		method, pattern, fn,
	}
}

func (r *basicRoute) Method() string {
	return r.method
}

func (r *basicRoute) Pattern() string {
	return r.pattern
}

func (r *basicRoute) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.fn(w, req)
}
