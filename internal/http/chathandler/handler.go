package chathandler

import (
	"chatrelay/internal/services/presence"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const statusMessage = "Cloud Chat Backend is running!"

// ClientLister reports the identifiers of the connections currently registered.
type ClientLister interface {
	Identifiers() []string
}

type Handler struct {
	clients  ClientLister
	sessions presence.IPresenceService
}

func New(clients ClientLister, sessions presence.IPresenceService) *Handler {
	return &Handler{clients: clients, sessions: sessions}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.status)
	r.GET("/clients", h.listClients)
	r.GET("/sessions", h.listSessions)
}

// @Summary		Liveness
// @Description	Static status payload.
// @Tags			Health
// @Success		200	{object}	StatusResponse
// @Router			/ [get]
func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Message: statusMessage})
}

// @Summary		List connected clients
// @Description	Identifiers of every registered connection, in join order. Duplicates are kept.
// @Tags			Chat
// @Success		200	{object}	ClientsResponse
// @Router			/clients [get]
func (h *Handler) listClients(c *gin.Context) {
	ids := h.clients.Identifiers()
	c.JSON(http.StatusOK, ClientsResponse{Count: len(ids), Clients: ids})
}

// @Summary		Recent sessions
// @Description	Most recent connection sessions from the session log.
// @Tags			Chat
// @Param			limit	query		int	false	"Max results (1‑100)"	minimum(1)	maximum(100)	default(20)
// @Success		200		{array}		presence.SessionDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		503		{object}	ErrorResponse
// @Router			/sessions [get]
func (h *Handler) listSessions(c *gin.Context) {
	var q ListSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.sessions.Recent(c.Request.Context(), q.Limit)
	if errors.Is(err, presence.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}
