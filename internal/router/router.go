package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/admission-seat-allocation/internal/handler"
	"github.com/iliyamo/admission-seat-allocation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterAllocation registers the officer API under /v1.  Every route
// requires a valid access token with the OFFICER or ADMIN role and is rate
// limited per user.  The concession catalog is additionally served from
// the response cache.
func RegisterAllocation(e *echo.Echo, h *handler.AllocationHandler, jwtSecret string, rateLimit, respCache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleOfficer, middleware.RoleAdmin))
	if rateLimit != nil {
		g.Use(rateLimit)
	}

	g.POST("/allocations", h.Allocate)
	g.GET("/applicants/:id/allocation", h.GetAllocation)
	g.GET("/branches/:id/seats", h.GetSeats)
	if respCache != nil {
		g.GET("/programs/:id/concession-types", h.GetConcessionTypes, respCache)
	} else {
		g.GET("/programs/:id/concession-types", h.GetConcessionTypes)
	}
}
