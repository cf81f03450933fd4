package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
)

const (
	streamBuffer    = 32
	streamHeartbeat = 25 * time.Second
)

// PipelineEvents publishes pipeline store changes.
type PipelineEvents interface {
	Subscribe(observer pipeline.Observer) func()
}

// BoardView is the board with the caller's gesture in progress.
type BoardView struct {
	kanban.Board
	Drag kanban.DragState `json:"drag"`
}

// PipelineHandler exposes the kanban board and its event stream.
type PipelineHandler struct {
	sessions  *kanban.Sessions
	events    PipelineEvents
	heartbeat time.Duration
}

// NewPipelineHandler constructs a PipelineHandler.
func NewPipelineHandler(sessions *kanban.Sessions, events PipelineEvents) *PipelineHandler {
	return &PipelineHandler{sessions: sessions, events: events, heartbeat: streamHeartbeat}
}

// Board handles GET /pipeline/board.
func (h *PipelineHandler) Board(c echo.Context) error {
	return Success(c, http.StatusOK, "board retrieved", h.view(c))
}

// DragStart handles POST /pipeline/board/drag.
func (h *PipelineHandler) DragStart(c echo.Context) error {
	var req dto.DragRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.DealID))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid deal_id")
	}
	if err := h.session(c).DragStart(id); err != nil {
		return respondError(c, err, "failed to start drag")
	}
	return Success(c, http.StatusOK, "drag started", h.session(c).State())
}

// DragOver handles POST /pipeline/board/hover.
func (h *PipelineHandler) DragOver(c echo.Context) error {
	column, err := bindColumn(c)
	if err != nil {
		return respondError(c, err, "")
	}
	if err := h.session(c).DragOver(column); err != nil {
		return respondError(c, err, "failed to hover column")
	}
	return Success(c, http.StatusOK, "column hovered", h.session(c).State())
}

// Drop handles POST /pipeline/board/drop.
func (h *PipelineHandler) Drop(c echo.Context) error {
	column, err := bindColumn(c)
	if err != nil {
		return respondError(c, err, "")
	}
	result, err := h.session(c).Drop(c.Request().Context(), column)
	if err != nil {
		return respondError(c, err, "failed to move deal")
	}
	message := "deal unchanged"
	if result.Moved {
		message = "deal moved to " + string(result.Deal.Status)
	}
	return Success(c, http.StatusOK, message, result)
}

// Cancel handles DELETE /pipeline/board/drag.
func (h *PipelineHandler) Cancel(c echo.Context) error {
	h.session(c).Cancel()
	return Success(c, http.StatusOK, "drag cancelled", h.session(c).State())
}

// Stream handles GET /pipeline/stream as server-sent events. Slow clients lose
// events rather than stalling the store; the next refreshed event resyncs them.
// Event ids are "<request id>:<seq>" so a gap in seq shows a dropped event and
// the prefix ties the stream to its request log line.
func (h *PipelineHandler) Stream(c echo.Context) error {
	events := make(chan pipeline.Event, streamBuffer)
	unsubscribe := h.events.Subscribe(func(event pipeline.Event) {
		select {
		case events <- event:
		default:
		}
	})
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	rid := middleware.RequestIDFromContext(c)
	seq := 0
	send := func(event string, payload any) error {
		seq++
		return writeSSE(res, fmt.Sprintf("%s:%d", rid, seq), event, payload)
	}
	if err := send("board", h.view(c)); err != nil {
		return nil
	}
	log.Printf("request_id=%s user_id=%s pipeline stream opened", rid, middleware.ActorFromContext(c).UserID)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("request_id=%s pipeline stream closed by client after %d events", rid, seq)
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case event := <-events:
			if err := send(string(event.Type), event); err != nil {
				log.Printf("request_id=%s pipeline stream closed err=%v", rid, err)
				return nil
			}
		}
	}
}

func (h *PipelineHandler) view(c echo.Context) BoardView {
	return BoardView{Board: h.sessions.Board(), Drag: h.session(c).State()}
}

func (h *PipelineHandler) session(c echo.Context) *kanban.Session {
	actor := middleware.ActorFromContext(c)
	return h.sessions.For(actor.UserID.String())
}

func bindColumn(c echo.Context) (entity.DealStatus, error) {
	var req dto.ColumnRequest
	if err := c.Bind(&req); err != nil {
		return "", service.ValidationError{Message: "invalid payload"}
	}
	status, err := entity.ParseDealStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return "", service.ValidationError{Message: err.Error()}
	}
	return status, nil
}

func writeSSE(res *echo.Response, id, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "id: %s\nevent: %s\ndata: %s\n\n", id, event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
