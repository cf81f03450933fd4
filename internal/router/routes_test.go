package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/auth"
	"github.com/fashionos/sponsor-crm/internal/config"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/handler"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
)

func newTestRouter(t *testing.T) (*echo.Echo, *auth.JWTManager) {
	t.Helper()
	manager := auth.NewJWTManager("router-secret", time.Hour)
	e := echo.New()
	Register(e, &config.Config{RateLimitAgent: config.RateLimitConfig{Requests: 5, Interval: time.Minute}}, manager, Handlers{
		Health:       handler.NewHealthHandler(nil),
		Auth:         handler.NewAuthHandler(nil),
		Users:        handler.NewUserAdminHandler(nil),
		Sponsors:     handler.NewSponsorsHandler(nil),
		Events:       handler.NewEventsHandler(nil),
		Deals:        handler.NewDealsHandler(nil),
		Deliverables: handler.NewDeliverablesHandler(nil),
		Packages:     handler.NewPackagesHandler(nil),
		Pipeline:     handler.NewPipelineHandler(kanban.NewSessions(nil), nil),
		Agent:        handler.NewAgentHandler(nil),
	})
	return e, manager
}

func token(t *testing.T, manager *auth.JWTManager, role string) string {
	t.Helper()
	signed, err := manager.GenerateToken(uuid.NewString(), role+"@fashionos.test", role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return signed
}

func TestRegister_Access(t *testing.T) {
	e, manager := newTestRouter(t)

	cases := map[string]struct {
		method string
		path   string
		role   string
		status int
	}{
		"health is public":          {method: http.MethodGet, path: "/healthz", status: http.StatusOK},
		"sponsors need a token":     {method: http.MethodGet, path: "/sponsors", status: http.StatusUnauthorized},
		"sponsor role is not staff": {method: http.MethodGet, path: "/sponsors", role: entity.RoleSponsor, status: http.StatusForbidden},
		"operator is not admin":     {method: http.MethodGet, path: "/admin/users", role: entity.RoleOperator, status: http.StatusForbidden},
		"portal is for sponsors":    {method: http.MethodGet, path: "/portal/deals", role: entity.RoleOperator, status: http.StatusForbidden},
		"stream needs a token":      {method: http.MethodGet, path: "/pipeline/stream", status: http.StatusUnauthorized},
		"stream rejects sponsors":   {method: http.MethodGet, path: "/pipeline/stream", role: entity.RoleSponsor, status: http.StatusForbidden},
		"agent needs a token":       {method: http.MethodPost, path: "/agent/draft-pitch", status: http.StatusUnauthorized},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.role != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, manager, tc.role))
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestRegister_StreamAcceptsQueryToken(t *testing.T) {
	e, manager := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/pipeline/stream?token="+token(t, manager, entity.RoleSponsor), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected the query token to authenticate and the role check to reject, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sponsors?token="+token(t, manager, entity.RoleOperator), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected query tokens to be refused outside the stream, got %d", rec.Code)
	}
}

func TestRegister_Routes(t *testing.T) {
	e, _ := newTestRouter(t)

	registered := make(map[string]struct{})
	for _, route := range e.Routes() {
		registered[route.Method+" "+route.Path] = struct{}{}
	}

	for _, want := range []string{
		"POST /auth/login",
		"POST /auth/register",
		"PATCH /deals/:id/status",
		"POST /deals/:id/deliverables/provision",
		"POST /deliverables/:id/upload",
		"POST /portal/deliverables/:id/upload",
		"POST /packages/seed",
		"POST /pipeline/board/drop",
		"GET /pipeline/stream",
		"POST /agent/:action",
		"POST /sponsors/:id/contacts/:contactId/primary",
	} {
		if _, ok := registered[want]; !ok {
			t.Errorf("route %q not registered", want)
		}
	}
}
