package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumivoice/voice-gateway/internal/agent"
	appconfig "github.com/lumivoice/voice-gateway/internal/config"
	"github.com/lumivoice/voice-gateway/internal/conversation"
	"github.com/lumivoice/voice-gateway/internal/ws"
)

func newTestRouter(t *testing.T) (*gin.Engine, *conversation.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := appconfig.Config{
		ConversationsDir: t.TempDir(),
		ProfilesDir:      t.TempDir(),
		Audio:            appconfig.AudioConfig{SampleRate: 16000},
	}
	store := conversation.NewStore(cfg.ConversationsDir)
	engine := agent.NewEngine(agent.EchoGenerator{}, agent.NewRegistryExecutor(), zap.NewNop())
	handler := ws.NewHandler(zap.NewNop(), cfg, engine, store, nil, nil)
	return NewRouter(cfg, handler, store, zap.NewNop()), store
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body=%v", body)
	}
}

func TestConversationEndpoints(t *testing.T) {
	router, store := newTestRouter(t)

	id, err := store.Create("client-a")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	now := time.Now().Format(time.RFC3339)
	if err := store.Append("client-a", id, conversation.Turn{Role: "user", Content: "hi", Timestamp: now}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/clients/client-a/conversations", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("list status=%d, want 200", recorder.Code)
	}
	var list struct {
		Conversations []conversation.Info `json:"conversations"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].ID != id {
		t.Fatalf("list=%+v", list.Conversations)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/clients/client-a/conversations/"+id, nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("get status=%d, want 200", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/clients/client-a/conversations/missing", nil))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d, want 404", recorder.Code)
	}
}
