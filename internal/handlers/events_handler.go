package handlers

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/events"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
)

// EventTokenHeader carries the shared secret of the push endpoint.
const EventTokenHeader = "X-Event-Token"

const maxEventBytes = 1 << 20

// EventsHandler receives change events pushed by an external trigger runner.
// A non-2xx response asks the sender to redeliver.
type EventsHandler struct {
	handler events.Handler
	token   string
	logger  *slog.Logger
}

// NewEventsHandler creates a new EventsHandler. An empty token disables the
// shared secret check.
func NewEventsHandler(h events.Handler, token string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{handler: h, token: token, logger: logger}
}

func (h *EventsHandler) RegisterEventRoutes(g *echo.Group) {
	g.POST("/events", h.Receive)
}

// Receive decodes one event envelope and dispatches it synchronously
func (h *EventsHandler) Receive(c echo.Context) error {
	if h.token != "" {
		got := c.Request().Header.Get(EventTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid event token")
		}
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read event")
	}
	e, err := events.DecodeEnvelope(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	observability.EventsReceived.WithLabelValues("push", string(e.Kind)).Inc()

	ctx := c.Request().Context()
	if err := h.handler.Dispatch(ctx, e); err != nil {
		h.logger.ErrorContext(ctx, "pushed event failed",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "Event processing failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"eventId": e.ID})
}
