package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
)

type stubBoardStore struct {
	mu        sync.Mutex
	deals     map[uuid.UUID]entity.Deal
	order     []uuid.UUID
	observers map[int]pipeline.Observer
	next      int
}

func newStubBoardStore(deals ...entity.Deal) *stubBoardStore {
	s := &stubBoardStore{deals: make(map[uuid.UUID]entity.Deal), observers: make(map[int]pipeline.Observer)}
	for _, deal := range deals {
		s.deals[deal.ID] = deal
		s.order = append(s.order, deal.ID)
	}
	return s
}

func (s *stubBoardStore) Snapshot() []entity.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Deal, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.deals[id])
	}
	return out
}

func (s *stubBoardStore) Get(id uuid.UUID) (entity.Deal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal, ok := s.deals[id]
	return deal, ok
}

func (s *stubBoardStore) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DealStatus) (entity.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal := s.deals[id]
	deal.Status = status
	deal.Revision++
	s.deals[id] = deal
	return deal, nil
}

func (s *stubBoardStore) Subscribe(observer pipeline.Observer) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.observers[id] = observer
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *stubBoardStore) emit(event pipeline.Event) {
	s.mu.Lock()
	observers := make([]pipeline.Observer, 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.mu.Unlock()
	for _, observer := range observers {
		observer(event)
	}
}

func newPipelineFixture(deals ...entity.Deal) (*PipelineHandler, *stubBoardStore) {
	store := newStubBoardStore(deals...)
	return NewPipelineHandler(kanban.NewSessions(store), store), store
}

func TestPipelineHandler_Board(t *testing.T) {
	e := echo.New()
	handler, _ := newPipelineFixture(
		entity.Deal{ID: uuid.New(), Status: entity.DealLead, CashValue: 1000},
		entity.Deal{ID: uuid.New(), Status: entity.DealLead, InKindValue: 500},
		entity.Deal{ID: uuid.New(), Status: entity.DealPaid},
	)

	req, rec := jsonRequest(t, http.MethodGet, "/pipeline/board", nil)
	c := newContext(e, req, rec, operator())
	_ = handler.Board(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var view BoardView
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &view); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if len(view.Columns) != len(kanban.Columns) {
		t.Fatalf("expected %d columns, got %d", len(kanban.Columns), len(view.Columns))
	}
	lead := view.Columns[0]
	if lead.Status != entity.DealLead || lead.Count != 2 || lead.TotalValue != 1500 {
		t.Fatalf("unexpected lead column %+v", lead)
	}
	if view.Hidden != 1 {
		t.Fatalf("expected 1 hidden deal, got %d", view.Hidden)
	}
	if view.Drag.DealID != nil {
		t.Fatalf("expected no drag in progress")
	}
}

func TestPipelineHandler_DragAndDrop(t *testing.T) {
	e := echo.New()
	lead := entity.Deal{ID: uuid.New(), Status: entity.DealLead}
	signed := entity.Deal{ID: uuid.New(), Status: entity.DealSigned}
	handler, store := newPipelineFixture(lead, signed)

	call := func(actor entity.Actor, fn func(echo.Context) error, payload any) *httptest.ResponseRecorder {
		req, rec := jsonRequest(t, http.MethodPost, "/", payload)
		_ = fn(newContext(e, req, rec, actor))
		return rec
	}

	if rec := call(operator(), handler.DragOver, dto.ColumnRequest{Status: "Qualified"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 hovering without a drag, got %d", rec.Code)
	}
	if rec := call(operator(), handler.DragStart, dto.DragRequest{DealID: uuid.NewString()}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a deal off the board, got %d", rec.Code)
	}
	if rec := call(operator(), handler.DragStart, dto.DragRequest{DealID: "nope"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", rec.Code)
	}
	if rec := call(operator(), handler.DragStart, dto.DragRequest{DealID: lead.ID.String()}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := call(operator(), handler.DragOver, dto.ColumnRequest{Status: "Paid"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a status without a column, got %d", rec.Code)
	}
	if rec := call(operator(), handler.DragOver, dto.ColumnRequest{Status: "Qualified"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if rec := call(sponsorActor(), handler.Drop, dto.ColumnRequest{Status: "Qualified"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected another user's session to have no drag, got %d", rec.Code)
	}

	rec := call(operator(), handler.Drop, dto.ColumnRequest{Status: "Qualified"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "deal moved to Qualified" {
		t.Fatalf("unexpected message %q", msg)
	}
	if deal, _ := store.Get(lead.ID); deal.Status != entity.DealQualified {
		t.Fatalf("expected deal to be Qualified, got %s", deal.Status)
	}

	if rec := call(operator(), handler.DragStart, dto.DragRequest{DealID: signed.ID.String()}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := call(operator(), handler.Drop, dto.ColumnRequest{Status: "Lead"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a forbidden drop, got %d", rec.Code)
	}
	if deal, _ := store.Get(signed.ID); deal.Status != entity.DealSigned {
		t.Fatalf("expected signed deal to stay put, got %s", deal.Status)
	}

	if rec := call(operator(), handler.DragStart, dto.DragRequest{DealID: signed.ID.String()}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = call(operator(), handler.Drop, dto.ColumnRequest{Status: "Signed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "deal unchanged" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPipelineHandler_Cancel(t *testing.T) {
	e := echo.New()
	deal := entity.Deal{ID: uuid.New(), Status: entity.DealProposal}
	handler, _ := newPipelineFixture(deal)

	req, rec := jsonRequest(t, http.MethodPost, "/", dto.DragRequest{DealID: deal.ID.String()})
	_ = handler.DragStart(newContext(e, req, rec, operator()))

	req, rec = jsonRequest(t, http.MethodDelete, "/", nil)
	_ = handler.Cancel(newContext(e, req, rec, operator()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var state kanban.DragState
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.DealID != nil || state.Hovered != "" {
		t.Fatalf("expected cleared drag state, got %+v", state)
	}
}

func TestPipelineHandler_Stream(t *testing.T) {
	deal := entity.Deal{ID: uuid.New(), Status: entity.DealNegotiating}
	handler, store := newPipelineFixture(deal)

	e := echo.New()
	e.GET("/pipeline/stream", handler.Stream, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextKeyActor, operator())
			c.Set(middleware.ContextKeyRequestID, "stream-7")
			return next(c)
		}
	})
	server := httptest.NewServer(e)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/pipeline/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string, string) {
		t.Helper()
		var id, name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "id: "):
				id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return id, name, data
			}
		}
	}

	id, name, data := readEvent()
	if name != "board" || id != "stream-7:1" {
		t.Fatalf("expected initial board event stream-7:1, got %q %q", id, name)
	}
	var view BoardView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if view.Columns[3].Count != 1 {
		t.Fatalf("expected the deal in the Negotiating column, got %+v", view.Columns[3])
	}

	moved := deal
	moved.Status = entity.DealSigned
	store.emit(pipeline.Event{Type: pipeline.EventOptimistic, DealID: deal.ID, Deal: &moved, From: entity.DealNegotiating})

	id, name, data = readEvent()
	if name != string(pipeline.EventOptimistic) || id != "stream-7:2" {
		t.Fatalf("expected optimistic event stream-7:2, got %q %q", id, name)
	}
	var event pipeline.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.DealID != deal.ID || event.Deal == nil || event.Deal.Status != entity.DealSigned || event.From != entity.DealNegotiating {
		t.Fatalf("unexpected event %+v", event)
	}
}
