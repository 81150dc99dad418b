package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/patchbay-io/patchbay/internal/config"
	"github.com/patchbay-io/patchbay/internal/connector"
	"github.com/patchbay-io/patchbay/internal/manager"
	"github.com/patchbay-io/patchbay/internal/registry"
	"github.com/patchbay-io/patchbay/internal/store"
)

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg      config.Config
	Manager  *manager.Manager
	Registry *registry.Registry
}

// instanceResponse is the wire shape of a connector instance. Encrypted
// credentials never leave the process; secret-looking config values are
// masked.
type instanceResponse struct {
	ID            string         `json:"id"`
	IntegrationID string         `json:"integrationId"`
	WorkspaceID   string         `json:"workspaceId"`
	Name          string         `json:"name,omitempty"`
	Config        map[string]any `json:"config"`
	Status        string         `json:"status"`
	LastError     string         `json:"lastError,omitempty"`
	LastTested    *time.Time     `json:"lastTested,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func toResponse(inst store.ConnectorInstance) instanceResponse {
	return instanceResponse{
		ID:            inst.ID,
		IntegrationID: inst.IntegrationID,
		WorkspaceID:   inst.WorkspaceID,
		Name:          inst.Name,
		Config:        sanitizeConfig(inst.Config),
		Status:        string(inst.Status),
		LastError:     inst.LastError,
		LastTested:    inst.LastTested,
		CreatedAt:     inst.CreatedAt,
		UpdatedAt:     inst.UpdatedAt,
	}
}

// HandleHealthz returns a simple health check response.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleIntegrations lists the available integration catalog, optionally
// filtered by ?category= or a free-text ?q=.
func (h *Handlers) HandleIntegrations(c *echo.Context) error {
	category := strings.TrimSpace(c.QueryParam("category"))
	query := strings.TrimSpace(c.QueryParam("q"))

	var defs []registry.IntegrationDefinition
	switch {
	case query != "":
		defs = h.Registry.Search(query)
		if category != "" {
			filtered := defs[:0]
			for _, d := range defs {
				if strings.EqualFold(d.Category, category) {
					filtered = append(filtered, d)
				}
			}
			defs = filtered
		}
	case category != "":
		defs = h.Registry.ByCategory(category)
	default:
		defs = h.Registry.Definitions()
	}
	return c.JSON(http.StatusOK, map[string]any{"integrations": defs})
}

func (h *Handlers) HandleIntegrationShow(c *echo.Context) error {
	def, ok := h.Registry.Definition(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown integration")
	}
	return c.JSON(http.StatusOK, def)
}

type createConnectorRequest struct {
	IntegrationID string            `json:"integrationId"`
	WorkspaceID   string            `json:"workspaceId"`
	Name          string            `json:"name"`
	Config        map[string]any    `json:"config"`
	Credentials   map[string]string `json:"credentials"`
}

func (h *Handlers) HandleConnectorCreate(c *echo.Context) error {
	var req createConnectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	inst, err := h.Manager.CreateConnector(c.Request().Context(), manager.CreateParams{
		IntegrationID: req.IntegrationID,
		WorkspaceID:   req.WorkspaceID,
		Name:          req.Name,
		Config:        req.Config,
		Credentials:   req.Credentials,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, toResponse(inst))
}

func (h *Handlers) HandleConnectorList(c *echo.Context) error {
	workspace := strings.TrimSpace(c.QueryParam("workspace"))
	if workspace == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace query parameter is required")
	}
	instances, err := h.Manager.GetConnectorsByWorkspace(c.Request().Context(), workspace)
	if err != nil {
		return mapError(err)
	}
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, toResponse(inst))
	}
	return c.JSON(http.StatusOK, map[string]any{"connectors": out})
}

func (h *Handlers) HandleConnectorShow(c *echo.Context) error {
	inst, ok, err := h.Manager.GetConnector(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "connector not found")
	}
	return c.JSON(http.StatusOK, toResponse(inst))
}

type updateConnectorRequest struct {
	Name        *string           `json:"name"`
	Config      map[string]any    `json:"config"`
	Credentials map[string]string `json:"credentials"`
}

func (h *Handlers) HandleConnectorUpdate(c *echo.Context) error {
	var req updateConnectorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	inst, err := h.Manager.UpdateConnector(c.Request().Context(), c.Param("id"), manager.UpdateParams{
		Name:        req.Name,
		Config:      req.Config,
		Credentials: req.Credentials,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(inst))
}

func (h *Handlers) HandleConnectorDelete(c *echo.Context) error {
	if err := h.Manager.DeleteConnector(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) HandleConnectorTest(c *echo.Context) error {
	result, err := h.Manager.TestConnector(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handlers) HandleConnectorConnect(c *echo.Context) error {
	id := c.Param("id")
	if err := h.Manager.Connect(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	inst, ok, err := h.Manager.GetConnector(c.Request().Context(), id)
	if err != nil || !ok {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(inst))
}

func (h *Handlers) HandleConnectorDisconnect(c *echo.Context) error {
	id := c.Param("id")
	if err := h.Manager.Disconnect(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	inst, ok, err := h.Manager.GetConnector(c.Request().Context(), id)
	if err != nil || !ok {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResponse(inst))
}

type executeActionRequest struct {
	Params      map[string]any `json:"params"`
	WorkflowID  string         `json:"workflowId"`
	ExecutionID string         `json:"executionId"`
	UserID      string         `json:"userId"`
	WorkspaceID string         `json:"workspaceId"`
	Variables   map[string]any `json:"variables"`
}

func (h *Handlers) HandleActionExecute(c *echo.Context) error {
	var req executeActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	result, err := h.Manager.ExecuteAction(
		c.Request().Context(),
		c.Param("id"),
		c.Param("action"),
		req.Params,
		connector.ExecutionContext{
			WorkflowID:  req.WorkflowID,
			ExecutionID: req.ExecutionID,
			UserID:      req.UserID,
			WorkspaceID: req.WorkspaceID,
			Variables:   req.Variables,
		},
	)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"result": result})
}
