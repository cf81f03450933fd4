package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/middleware"
)

func jsonRequest(t *testing.T, method, target string, payload any) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body []byte
	switch v := payload.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = encoded
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func multipartRequest(t *testing.T, target, field, filename, content string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req, httptest.NewRecorder()
}

func newContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, actor entity.Actor, params ...string) echo.Context {
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextKeyActor, actor)
	c.Set(middleware.ContextKeyRequestID, "req-1")
	if len(params) > 0 {
		names := make([]string, 0, len(params)/2)
		values := make([]string, 0, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c
}

func operator() entity.Actor {
	return entity.Actor{UserID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: entity.RoleOperator}
}

func sponsorActor() entity.Actor {
	return entity.Actor{UserID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Role: entity.RoleSponsor}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rec.Body.String())
	}
	return env
}

func textPtr(value string) *string {
	return &value
}
