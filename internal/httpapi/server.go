// Package httpapi exposes the connector catalog and instance lifecycle as a
// JSON API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/patchbay-io/patchbay/internal/config"
	"github.com/patchbay-io/patchbay/internal/manager"
	"github.com/patchbay-io/patchbay/internal/registry"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h   *Handlers
	e   *echo.Echo
	srv *http.Server
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(cfg config.Config, m *manager.Manager, reg *registry.Registry) (*EchoServer, error) {
	h := &Handlers{Cfg: cfg, Manager: m, Registry: reg}
	es := &EchoServer{h: h, e: echo.New()}
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.Use(middleware.Recover())
	es.e.GET("/healthz", es.h.HandleHealthz)

	api := es.e.Group("/api")
	if es.h.Cfg.APITokenHash != "" {
		api.Use(BearerAuth(es.h.Cfg.APITokenHash))
	}
	api.GET("/integrations", es.h.HandleIntegrations)
	api.GET("/integrations/:id", es.h.HandleIntegrationShow)

	api.POST("/connectors", es.h.HandleConnectorCreate)
	api.GET("/connectors", es.h.HandleConnectorList)
	api.GET("/connectors/:id", es.h.HandleConnectorShow)
	api.PATCH("/connectors/:id", es.h.HandleConnectorUpdate)
	api.DELETE("/connectors/:id", es.h.HandleConnectorDelete)
	api.POST("/connectors/:id/test", es.h.HandleConnectorTest)
	api.POST("/connectors/:id/connect", es.h.HandleConnectorConnect)
	api.POST("/connectors/:id/disconnect", es.h.HandleConnectorDisconnect)
	api.POST("/connectors/:id/actions/:action", es.h.HandleActionExecute)
}

// Echo exposes the underlying router, mainly for tests.
func (es *EchoServer) Echo() *echo.Echo {
	return es.e
}

// Start serves HTTP on addr until the server is shut down.
func (es *EchoServer) Start(addr string) error {
	es.srv = &http.Server{Addr: addr, Handler: es.e}
	return es.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	if es.srv == nil {
		return nil
	}
	return es.srv.Shutdown(ctx)
}
