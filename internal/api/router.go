package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "edgelink/internal/api/context"
	"edgelink/internal/api/handlers"
	"edgelink/internal/api/middleware"
)

type Dependencies struct {
	RedirectHandler  *handlers.RedirectHandler
	LinkHandler      *handlers.LinkHandler
	RoutingHandler   *handlers.RoutingHandler
	AnalyticsHandler *handlers.AnalyticsHandler
	HealthHandler    *handlers.HealthHandler
	RateLimiter      *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	rl := deps.RateLimiter

	// The public redirect endpoint is the router's fallback: a root-level
	// ":slug" wildcard would conflict with the static /api and /health
	// routes, so anything that matches no registered route is treated as a
	// slug lookup. The handler 404s non-slug paths itself.
	router.NotFound = http.HandlerFunc(rl.Limit("redirect")(deps.RedirectHandler.Handle))

	router.GET("/health", wrap(deps.HealthHandler.Check))

	// Link management
	router.POST("/api/v1/links", chain(deps.LinkHandler.Create, rl.Limit("api_write")))
	router.GET("/api/v1/links", chain(deps.LinkHandler.List, rl.Limit("api_read")))
	router.GET("/api/v1/links/:slug", chain(deps.LinkHandler.Get, rl.Limit("api_read")))
	router.PATCH("/api/v1/links/:slug", chain(deps.LinkHandler.Update, rl.Limit("api_write")))
	router.DELETE("/api/v1/links/:slug", chain(deps.LinkHandler.Delete, rl.Limit("api_write")))
	router.GET("/api/v1/links/:slug/qr", chain(deps.LinkHandler.GetQRCode, rl.Limit("api_read")))

	// Routing configuration
	router.GET("/api/v1/links/:slug/routing", chain(deps.RoutingHandler.GetRouting, rl.Limit("api_read")))
	router.PUT("/api/v1/links/:slug/routing/:kind", chain(deps.RoutingHandler.SetRouting, rl.Limit("api_write")))
	router.DELETE("/api/v1/links/:slug/routing/:kind", chain(deps.RoutingHandler.DeleteRouting, rl.Limit("api_write")))

	// A/B tests
	router.POST("/api/v1/links/:slug/abtest", chain(deps.RoutingHandler.CreateABTest, rl.Limit("api_write")))
	router.GET("/api/v1/links/:slug/abtest", chain(deps.RoutingHandler.GetABTest, rl.Limit("api_read")))
	router.DELETE("/api/v1/links/:slug/abtest", chain(deps.RoutingHandler.DeleteABTest, rl.Limit("api_write")))

	// Analytics
	router.GET("/api/v1/links/:slug/analytics", chain(deps.AnalyticsHandler.GetLinkAnalytics, rl.Limit("api_read")))
	router.GET("/api/v1/links/:slug/clicks", chain(deps.AnalyticsHandler.GetLinkClicks, rl.Limit("api_read")))
	router.GET("/api/v1/links/:slug/stats", chain(deps.AnalyticsHandler.GetDailyStats, rl.Limit("api_read")))

	return router
}

// chain applies middlewares right to left around the handler.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts http.HandlerFunc to httprouter.Handle, injecting path params
// into the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
