package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jisilva10/ALAIN2.0/internal/config"
	"github.com/jisilva10/ALAIN2.0/internal/controller"
	"github.com/jisilva10/ALAIN2.0/internal/models"
	"github.com/jisilva10/ALAIN2.0/internal/service/ai"
	"github.com/jisilva10/ALAIN2.0/internal/service/registry"
	"github.com/jisilva10/ALAIN2.0/internal/storage"
)

type mockStreamer struct {
	chunks []string
	err    error
	calls  int
}

func (m *mockStreamer) StreamTurn(ctx context.Context, req ai.TurnRequest, emit func(ai.Delta) error) (*ai.TurnResult, error) {
	m.calls++
	var full strings.Builder
	for _, chunk := range m.chunks {
		full.WriteString(chunk)
		if emit != nil {
			if err := emit(ai.Delta{SessionID: req.SessionID, Text: chunk}); err != nil {
				return nil, err
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &ai.TurnResult{FinalText: full.String()}, nil
}

func (m *mockStreamer) GenerateTitle(ctx context.Context, conversation string) (string, error) {
	return "Título Corto", nil
}

func newTestServer(t *testing.T) (*gin.Engine, *mockStreamer, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	store := storage.NewStore(db, "sqlite3", nil)
	reg := registry.New(store)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("load registry: %v", err)
	}
	streamer := &mockStreamer{chunks: []string{"Hola", " mundo"}}
	ctrl := controller.New(reg, store, streamer, nil)
	handler := NewHandler(ctrl, reg, store)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, streamer, reg
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func assertStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", resp.Code, want, resp.Body.String())
	}
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, data)
	}
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, payload string) []sseEvent {
	t.Helper()
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	chunks := strings.Split(payload, "\n\n")
	var events []sseEvent
	for _, chunk := range chunks {
		lines := strings.Split(strings.TrimSpace(chunk), "\n")
		if len(lines) == 0 {
			continue
		}
		var evt sseEvent
		for _, line := range lines {
			switch {
			case strings.HasPrefix(line, "event:"):
				evt.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if evt.Data == "" {
					evt.Data = data
				} else {
					evt.Data += "\n" + data
				}
			}
		}
		events = append(events, evt)
	}
	return events
}

func createSession(t *testing.T, router *gin.Engine, owner, topic string) string {
	t.Helper()
	resp := doJSONRequest(t, router, http.MethodPost, "/api/sessions", map[string]string{
		"clientName": owner,
		"topic":      topic,
	})
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Messages []models.UIMessage `json:"messages"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Session.ID == "" {
		t.Fatalf("expected session id in response")
	}
	if len(body.Messages) != 1 || body.Messages[0].Sender != models.SenderAI {
		t.Fatalf("expected greeting message, got %#v", body.Messages)
	}
	return body.Session.ID
}

func TestListSessionsIncludesTemplates(t *testing.T) {
	router, _, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodGet, "/api/sessions", nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Templates []models.Session `json:"templates"`
		Sessions  []models.Session `json:"sessions"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if len(body.Templates) != 5 {
		t.Fatalf("expected 5 templates, got %d", len(body.Templates))
	}
	if len(body.Sessions) != 0 {
		t.Fatalf("expected no user sessions, got %d", len(body.Sessions))
	}
}

func TestChatStreamFlow(t *testing.T) {
	router, streamer, reg := newTestServer(t)
	id := createSession(t, router, "Acme", "Tema")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]string{"prompt": "Hola"})
	assertStatus(t, resp, http.StatusOK)
	events := parseSSE(t, resp.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected ack + 2 stream + done, got %d: %#v", len(events), events)
	}
	if events[0].Name != "ack" || events[1].Name != "stream" || events[2].Name != "stream" || events[3].Name != "done" {
		t.Fatalf("event sequence: %#v", events)
	}
	if !strings.Contains(events[1].Data, "Hola") || !strings.Contains(events[2].Data, "mundo") {
		t.Fatalf("stream payloads: %q, %q", events[1].Data, events[2].Data)
	}
	if !strings.Contains(events[3].Data, "Hola mundo") {
		t.Fatalf("done payload: %q", events[3].Data)
	}
	if streamer.calls != 1 {
		t.Fatalf("streamer calls = %d", streamer.calls)
	}

	se, err := reg.Get(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(se.MessageLog) != 2 {
		t.Fatalf("log length = %d", len(se.MessageLog))
	}
}

func TestChatEditFlow(t *testing.T) {
	router, streamer, reg := newTestServer(t)
	id := createSession(t, router, "Acme", "Tema")

	doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]string{"prompt": "primera versión"})

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat/edit", map[string]string{"prompt": "segunda versión"})
	assertStatus(t, resp, http.StatusOK)
	events := parseSSE(t, resp.Body.String())
	if events[len(events)-1].Name != "done" {
		t.Fatalf("event sequence: %#v", events)
	}
	if streamer.calls != 2 {
		t.Fatalf("streamer calls = %d", streamer.calls)
	}

	se, _ := reg.Get(id)
	if len(se.MessageLog) != 2 || se.MessageLog[0].Text != "segunda versión" {
		t.Fatalf("log = %+v", se.MessageLog)
	}
}

func TestChatStreamFailure(t *testing.T) {
	router, streamer, _ := newTestServer(t)
	createSession(t, router, "Acme", "Tema")

	streamer.chunks = nil
	streamer.err = errors.New("mock failure")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat", map[string]string{"prompt": "hola"})
	assertStatus(t, resp, http.StatusOK)
	events := parseSSE(t, resp.Body.String())
	if len(events) != 2 || events[0].Name != "ack" || events[1].Name != "error" {
		t.Fatalf("event sequence: %#v", events)
	}
	if !strings.Contains(events[1].Data, "mock failure") {
		t.Fatalf("error payload: %q", events[1].Data)
	}
}

func TestExportImportEndpoints(t *testing.T) {
	router, _, _ := newTestServer(t)
	id := createSession(t, router, "Acme", "Exportable")

	resp := doJSONRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/export", nil)
	assertStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Header().Get("Content-Disposition"), registry.ExportExtension) {
		t.Fatalf("content disposition = %q", resp.Header().Get("Content-Disposition"))
	}
	blob := resp.Body.Bytes()

	// Same id without overwrite: conflict.
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/import", bytes.NewReader(blob))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusConflict)

	req = httptest.NewRequest(http.MethodPost, "/api/sessions/import?overwrite=true", bytes.NewReader(blob))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusOK)
}

func TestImportRejectsMalformedBlob(t *testing.T) {
	router, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/import", strings.NewReader(`{"title":"sin id","messages":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestThemeEndpoints(t *testing.T) {
	router, _, _ := newTestServer(t)

	resp := doJSONRequest(t, router, http.MethodGet, "/api/theme", nil)
	assertStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "system") {
		t.Fatalf("default theme body: %s", resp.Body.String())
	}

	resp = doJSONRequest(t, router, http.MethodPut, "/api/theme", map[string]string{"theme": "dark"})
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/theme", nil)
	if !strings.Contains(resp.Body.String(), "dark") {
		t.Fatalf("theme body: %s", resp.Body.String())
	}

	resp = doJSONRequest(t, router, http.MethodPut, "/api/theme", map[string]string{"theme": "sepia"})
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestDraftEndpoints(t *testing.T) {
	router, _, _ := newTestServer(t)
	id := createSession(t, router, "Acme", "Tema")

	resp := doJSONRequest(t, router, http.MethodPut, "/api/drafts/"+id, map[string]string{"text": "a medias"})
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/drafts/"+id, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Text string `json:"text"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Text != "a medias" {
		t.Fatalf("draft = %q", body.Text)
	}
}

func TestRenameSessionEndpoint(t *testing.T) {
	router, _, reg := newTestServer(t)
	id := createSession(t, router, "Acme", "Provisional")

	resp := doJSONRequest(t, router, http.MethodPut, "/api/sessions/"+id, map[string]string{
		"clientName": "Acme Corp",
		"topic":      "Definitivo",
	})
	assertStatus(t, resp, http.StatusOK)
	se, err := reg.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if se.DisplayTitle != "Acme Corp: Definitivo" {
		t.Fatalf("title = %q", se.DisplayTitle)
	}

	resp = doJSONRequest(t, router, http.MethodPut, "/api/sessions/template-finanzas", map[string]string{
		"clientName": "x", "topic": "y",
	})
	assertStatus(t, resp, http.StatusForbidden)
}

func TestDeleteSessionEndpoint(t *testing.T) {
	router, _, _ := newTestServer(t)
	first := createSession(t, router, "Acme", "Primero")
	second := createSession(t, router, "Acme", "Segundo")

	resp := doJSONRequest(t, router, http.MethodDelete, "/api/sessions/"+second, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		ReplacementID string `json:"replacementId"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.ReplacementID != first {
		t.Fatalf("replacement = %q, want %q", body.ReplacementID, first)
	}

	resp = doJSONRequest(t, router, http.MethodDelete, "/api/sessions/no-such", nil)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestActivateUnknownSession(t *testing.T) {
	router, _, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodPost, "/api/sessions/no-such/activate", nil)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestCloneTemplateEndpoint(t *testing.T) {
	router, _, _ := newTestServer(t)
	resp := doJSONRequest(t, router, http.MethodPost, "/api/sessions/template-negocios/clone", nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Session models.Session `json:"session"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Session.OwnerLabel != "Negocios" || body.Session.TopicLabel != registry.PlaceholderTopic {
		t.Fatalf("clone = %+v", body.Session)
	}
}
