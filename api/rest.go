// Package api exposes the playground over HTTP: container and group
// lifecycle operations, operation status polling, diagnostics, logs, and
// the interactive WebSocket console.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"playground.evalgo.org/common"
	"playground.evalgo.org/config"
	"playground.evalgo.org/console"
	"playground.evalgo.org/dashboard"
	"playground.evalgo.org/diagnostics"
	"playground.evalgo.org/groups"
	"playground.evalgo.org/httpserver"
	"playground.evalgo.org/lifecycle"
	"playground.evalgo.org/operations"
)

// ExecOpener attaches an interactive shell to a running container. The
// default uses the Docker exec API; tests inject fakes.
type ExecOpener func(ctx context.Context, cli common.DockerClient, containerID string) (console.ExecSession, error)

// Handlers bundles the services the HTTP layer delegates to.
type Handlers struct {
	Cli       common.DockerClient
	Registry  *groups.Registry
	Store     operations.Store
	Executor  *lifecycle.Executor
	Inspector *diagnostics.Inspector
	Consoles  *console.Manager
	Tokens    *TokenService
	Service   string
	Version   string

	// OpenExec overrides the console exec factory when set.
	OpenExec ExecOpener
}

// SetupRoutes registers all playground routes on the server.
func SetupRoutes(e *echo.Echo, h *Handlers, cfg config.ServerConfig) {
	e.GET("/health", httpserver.HealthCheckHandler(h.Service, h.Version))

	if h.Tokens != nil {
		e.POST("/auth/token", h.GenerateToken)
	}

	auth := httpserver.APIKeyMiddleware(cfg.APIKey)

	protected := e.Group("/api")
	if cfg.JWTSecret != "" {
		protected.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey:  []byte(cfg.JWTSecret),
			TokenLookup: "header:Authorization:Bearer ",
		}))
	} else {
		protected.Use(auth)
	}

	protected.POST("/start/:container", h.StartContainer)
	protected.POST("/stop/:container", h.StopContainer)
	protected.POST("/start-group/:name", h.StartGroup)
	protected.POST("/stop-group/:name", h.StopGroup)
	protected.POST("/stop-all", h.StopAll)
	protected.POST("/restart-all", h.RestartAll)
	protected.POST("/cleanup-all", h.CleanupAll)

	protected.GET("/operation-status/:id", h.OperationStatus)
	protected.GET("/containers", h.Containers)
	protected.GET("/groups", h.Groups)
	protected.GET("/stats", h.Stats)
	protected.GET("/diagnostics", h.DiagnosticChecks)

	protected.POST("/execute-command/:container", h.ExecuteCommand)
	protected.POST("/execute-diagnostic/:container", h.ExecuteDiagnostic)

	// Outside the JWT group: log tails and the console use the API key,
	// which WebSocket clients pass as a query parameter.
	e.GET("/logs/:container", h.ContainerLogs, auth)
	e.GET("/ws/console/:container", h.Console, auth)
}

// TokenRequest asks for a bearer token.
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// GenerateToken issues a 24h bearer token.
func (h *Handlers) GenerateToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	token, err := h.Tokens.GenerateToken(req.UserID, 24*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// OperationResponse acknowledges an accepted asynchronous operation.
type OperationResponse struct {
	OperationID string `json:"operation_id"`
}

func (h *Handlers) acceptOperation(c echo.Context, id string, err error) error {
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, OperationResponse{OperationID: id})
}

// StartContainer starts a single container asynchronously.
func (h *Handlers) StartContainer(c echo.Context) error {
	id, err := h.Executor.StartContainer(c.Param("container"))
	return h.acceptOperation(c, id, err)
}

// StopContainer stops a single container asynchronously.
func (h *Handlers) StopContainer(c echo.Context) error {
	id, err := h.Executor.StopContainer(c.Param("container"))
	return h.acceptOperation(c, id, err)
}

// StartGroup starts all containers of a group in position order.
func (h *Handlers) StartGroup(c echo.Context) error {
	id, err := h.Executor.StartGroup(c.Param("name"))
	return h.acceptOperation(c, id, err)
}

// StopGroup stops all containers of a group in reverse position order.
func (h *Handlers) StopGroup(c echo.Context) error {
	id, err := h.Executor.StopGroup(c.Param("name"))
	return h.acceptOperation(c, id, err)
}

// StopAll stops every managed container.
func (h *Handlers) StopAll(c echo.Context) error {
	id, err := h.Executor.StopAll()
	return h.acceptOperation(c, id, err)
}

// RestartAll restarts every managed container.
func (h *Handlers) RestartAll(c echo.Context) error {
	id, err := h.Executor.RestartAll()
	return h.acceptOperation(c, id, err)
}

// CleanupAll stops and removes every managed container.
func (h *Handlers) CleanupAll(c echo.Context) error {
	id, err := h.Executor.CleanupAll()
	return h.acceptOperation(c, id, err)
}

// OperationStatus returns the current snapshot of a tracked operation.
func (h *Handlers) OperationStatus(c echo.Context) error {
	snapshot, err := h.Store.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load operation"})
	}
	if snapshot == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Operation not found"})
	}
	return c.JSON(http.StatusOK, snapshot)
}

// Containers lists all containers with group membership.
func (h *Handlers) Containers(c echo.Context) error {
	infos, err := dashboard.ListContainers(c.Request().Context(), h.Cli, h.Registry)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list containers"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"containers": infos,
		"count":      len(infos),
	})
}

// Groups reports per-group running state.
func (h *Handlers) Groups(c echo.Context) error {
	summaries, err := dashboard.GroupSummaries(c.Request().Context(), h.Cli, h.Registry)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to summarize groups"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"groups": summaries,
		"count":  len(summaries),
	})
}

// Stats returns the aggregate dashboard statistics.
func (h *Handlers) Stats(c echo.Context) error {
	stats, err := dashboard.GetStats(c.Request().Context(), h.Cli, h.Registry)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to collect stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

// DiagnosticChecks lists the available diagnostic check names.
func (h *Handlers) DiagnosticChecks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"checks": diagnostics.Checks()})
}

// ContainerLogs returns the last lines of a container's logs.
func (h *Handlers) ContainerLogs(c echo.Context) error {
	tail := 100
	if raw := c.QueryParam("tail"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			tail = parsed
		}
	}

	logs, err := h.Inspector.Logs(c.Request().Context(), c.Param("container"), tail)
	if err != nil {
		if strings.Contains(err.Error(), "no such container") {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch logs"})
	}
	return c.JSON(http.StatusOK, map[string]string{"logs": logs})
}

// ExecuteCommandRequest is the body of the execute-command endpoint.
type ExecuteCommandRequest struct {
	// Command is a shell-style command line, split on whitespace.
	Command string `json:"command"`
	// Timeout in seconds (0 = server default).
	Timeout int `json:"timeout,omitempty"`
}

// ExecuteCommand runs an ad-hoc command inside a running container.
func (h *Handlers) ExecuteCommand(c echo.Context) error {
	var req ExecuteCommandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	cmd := strings.Fields(req.Command)
	if len(cmd) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "command is required"})
	}

	ctx := c.Request().Context()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
		defer cancel()
	}

	result, err := h.Inspector.ExecCommand(ctx, c.Param("container"), cmd)
	if err != nil {
		if strings.Contains(err.Error(), "no such container") {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// ExecuteDiagnostic collects the full diagnostic report for a container.
func (h *Handlers) ExecuteDiagnostic(c echo.Context) error {
	report, err := h.Inspector.Collect(c.Request().Context(), c.Param("container"))
	if err != nil {
		if strings.Contains(err.Error(), "no such container") {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"diagnostics": report})
}
