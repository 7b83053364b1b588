package api

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"playground.evalgo.org/common"
	"playground.evalgo.org/console"
)

// upgrader accepts any origin; CORS policy is enforced by the server
// middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Console upgrades the connection and attaches an interactive shell to the
// container. At most one console per container is live at a time.
func (h *Handlers) Console(c echo.Context) error {
	name := c.Param("container")

	cont, err := common.FindContainerByName(c.Request().Context(), h.Cli, name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to find container"})
	}
	if cont == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Container not found"})
	}
	if cont.State != "running" {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Container is not running"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	openExec := h.OpenExec
	if openExec == nil {
		openExec = func(ctx context.Context, cli common.DockerClient, containerID string) (console.ExecSession, error) {
			return console.NewDockerExec(ctx, cli, containerID, nil)
		}
	}

	exec, err := openExec(c.Request().Context(), h.Cli, cont.ID)
	if err != nil {
		common.Logger.Errorf("console %s: exec failed: %v", name, err)
		conn.WriteMessage(websocket.TextMessage, []byte("failed to open shell: "+err.Error()))
		conn.Close()
		return nil
	}

	session := console.NewSession(name, conn, exec)
	h.Consoles.Open(name, session)
	session.Run(c.Request().Context())
	h.Consoles.Release(name, session)
	return nil
}
