package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"vlget/internal/api/controllers"
	"vlget/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	jobsCtrl := &controllers.JobsController{App: app}

	e.POST("/api/jobs", jobsCtrl.Create)
	e.GET("/api/jobs", jobsCtrl.List)
	e.GET("/api/jobs/active", jobsCtrl.Active)
	e.GET("/api/jobs/:id", jobsCtrl.Get)
	e.POST("/api/jobs/:id/cancel", jobsCtrl.Cancel)

	e.GET("/api/history", jobsCtrl.History)
	e.GET("/api/history/:id", jobsCtrl.HistoryItem)
}
