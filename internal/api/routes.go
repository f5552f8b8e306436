package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/storefront/internal/store"
)

// RegisterRoutes registers all HTTP routes on the Fiber app. nc and st may be
// nil when the service runs without NATS or Redis; /health then reports them
// as disabled.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, h *StorefrontHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
			"rates": "ok",
		}
		status := "ok"
		code := fiber.StatusOK
		degrade := func(name, reason string) {
			checks[name] = reason
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		switch {
		case nc == nil:
			checks["nats"] = "disabled"
		case !nc.IsConnected():
			degrade("nats", "disconnected")
		default:
			if err := nc.FlushTimeout(1 * time.Second); err != nil {
				degrade("nats", err.Error())
			}
		}

		if st == nil {
			checks["store"] = "disabled"
		} else {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.HealthCheck(healthCtx); err != nil {
				degrade("store", err.Error())
			}
		}

		// Pricing works without rates (lines are reported pending), so a
		// missing table is reported but does not fail the check.
		if h.service.Rates().Len() == 0 {
			checks["rates"] = "pending"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/views", h.OpenView)
	v1.Get("/views/:viewId", h.GetView)
	v1.Post("/views/:viewId/selection", h.Select)
	v1.Delete("/views/:viewId", h.CloseView)
	v1.Post("/cart/breakdown", h.Breakdown)
	v1.Get("/rates", h.Rates)
	v1.Post("/rates/refresh", h.RefreshRates)
	v1.Get("/prices/format", h.FormatPrice)
}
