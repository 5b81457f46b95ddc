package app

import (
	"fmt"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/oliveres/byd-lvs-monitor/internal/config"
	"github.com/oliveres/byd-lvs-monitor/internal/monitor"
	staticfs "github.com/oliveres/byd-lvs-monitor/internal/static"
)

// Application encapsulates the battery monitor service: the HTTP server,
// the message publisher, and the scan controller driving the BMU.
type Application struct {
	config     *config.Config
	router     *gin.Engine
	publisher  monitor.MessagePublisher
	controller *monitor.Controller
}

// NewApplication creates and initializes a new Application instance.
// It sets up the HTTP router, starts the scan controller, and registers
// endpoints. The scanner, publisher, and metrics collector are injected so
// tests can run without a BMU or broker.
func NewApplication(cfg *config.Config, scanner monitor.BatteryScanner, publisher monitor.MessagePublisher, metrics monitor.MetricsCollector) (*Application, error) {
	app := &Application{
		config:    cfg,
		publisher: publisher,
	}

	// Initialize router
	app.router = gin.Default()
	if err := app.router.SetTrustedProxies(nil); err != nil {
		log.Warnf("failed to set trusted proxies: %v", err)
	}

	controller, err := monitor.NewController(scanner, publisher, metrics,
		cfg.Monitor.DeviceID, cfg.Monitor.BMU.ScanPeriodSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to create battery controller: %w", err)
	}
	app.controller = controller

	// Setup routes
	app.setupRoutes()

	return app, nil
}

// setupRoutes configures all HTTP routes for the application.
func (a *Application) setupRoutes() {
	// Prometheus metrics endpoint
	handler := promhttp.Handler()
	a.router.GET("/metrics", func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	})

	a.controller.RegisterEndpoints(a.router)

	// Serve the embedded dashboard
	siteFS := staticfs.GetSiteFS()
	a.router.Use(static.Serve("/", siteFS))
}

// Run starts the HTTP server and blocks until it exits.
func (a *Application) Run() error {
	log.Infof("starting server on port %v", a.config.Monitor.HTTPPort)
	return a.router.Run(fmt.Sprintf(":%v", a.config.Monitor.HTTPPort))
}

// Close performs cleanup of all application resources.
// It stops the scan schedule and closes the publisher.
func (a *Application) Close() error {
	log.Info("shutting down application")

	if a.controller != nil {
		a.controller.Close()
	}

	if a.publisher != nil {
		a.publisher.Close()
	}

	return nil
}

// Router returns the Gin router instance for testing purposes.
func (a *Application) Router() *gin.Engine {
	return a.router
}
