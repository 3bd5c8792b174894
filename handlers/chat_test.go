package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms"

	"chat-assistant/conversation"
	"chat-assistant/metrics"
	"chat-assistant/models"
	"chat-assistant/services"
	"chat-assistant/transcript"
	"chat-assistant/workflows"
)

type stubModel struct {
	reply string
	err   error
}

func (m *stubModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

// stubConnector accepts only validKey, like the real provider would.
type stubConnector struct {
	validKey string
	model    *stubModel
}

func (c *stubConnector) Connect(apiKey string) (llms.Model, error) {
	if apiKey != c.validKey {
		return &stubModel{err: errors.New("Error code: 401 - Incorrect API key provided")}, nil
	}
	return c.model, nil
}

func newTestServer(t *testing.T, reply string) (*httptest.Server, *transcript.InMemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := transcript.NewInMemoryStore()
	buffers := conversation.NewBuffers(conversation.ScopeSession)
	conn := &stubConnector{validKey: "sk-valid", model: &stubModel{reply: reply}}
	m := metrics.New("test")

	wf := workflows.NewChatWorkflow(conn, buffers, store)
	router := NewRouter(NewChatHandler(wf, buffers, store, m), m)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestAskReturnsReplyAndHistory(t *testing.T) {
	ts, store := newTestServer(t, "Hello! How can I help?")

	res := postJSON(t, ts.URL+"/llm", map[string]any{
		"question":       "Hi",
		"history":        []any{},
		"session_id":     "s1",
		"openai_api_key": "sk-valid",
	})
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		t.Fatalf("status = %d, want %d (body %s)", res.StatusCode, http.StatusOK, body)
	}

	var got models.ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Response != "Hello! How can I help?" {
		t.Fatalf("response = %q", got.Response)
	}
	want := []models.Message{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello! How can I help?"},
	}
	if len(got.History) != 2 || got.History[0] != want[0] || got.History[1] != want[1] {
		t.Fatalf("history = %+v, want %+v", got.History, want)
	}

	records := store.Records("s1")
	if len(records) != 2 || records[0].Role != models.RoleUser || records[1].Role != models.RoleAssistant {
		t.Fatalf("records = %+v, want user then assistant", records)
	}
}

func TestAskHistoryDefaultsToEmpty(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	res := postJSON(t, ts.URL+"/llm", map[string]any{
		"question":       "Hi",
		"session_id":     "s1",
		"openai_api_key": "sk-valid",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestAskProviderFailureReturns500WithDetail(t *testing.T) {
	ts, store := newTestServer(t, "unused")

	res := postJSON(t, ts.URL+"/llm", map[string]any{
		"question":       "Hi",
		"history":        []any{},
		"session_id":     "s1",
		"openai_api_key": "sk-invalid",
	})
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}

	var got models.ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(got.Detail, "Incorrect API key provided") {
		t.Fatalf("detail = %q, want provider error text", got.Detail)
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d, want 0", store.Len())
	}
}

func TestAskEmptyAPIKeyFailsInWorkflow(t *testing.T) {
	ts, store := newTestServer(t, "unused")

	res := postJSON(t, ts.URL+"/llm", map[string]any{
		"question":       "Hi",
		"session_id":     "s1",
		"openai_api_key": "",
	})
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	var got models.ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Detail != services.ErrMissingAPIKey.Error() {
		t.Fatalf("detail = %q, want %q", got.Detail, services.ErrMissingAPIKey.Error())
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d, want 0", store.Len())
	}
}

func TestAskEmptyQuestionReachesProvider(t *testing.T) {
	ts, store := newTestServer(t, "Could you say more?")

	res := postJSON(t, ts.URL+"/llm", map[string]any{
		"question":       "",
		"session_id":     "s1",
		"openai_api_key": "sk-valid",
	})
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		t.Fatalf("status = %d, want %d (body %s)", res.StatusCode, http.StatusOK, body)
	}
	records := store.Records("s1")
	if len(records) != 2 || records[0].Content != "" || records[1].Content != "Could you say more?" {
		t.Fatalf("records = %+v, want empty question then reply", records)
	}
}

// assistantFailStore accepts user turns and rejects assistant turns.
type assistantFailStore struct {
	*transcript.InMemoryStore
}

func (s *assistantFailStore) Append(ctx context.Context, rec models.TurnRecord) error {
	if rec.Role == models.RoleAssistant {
		return errors.New("disk full")
	}
	return s.InMemoryStore.Append(ctx, rec)
}

func TestAskCountsTurnsPersistedBeforeStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &assistantFailStore{InMemoryStore: transcript.NewInMemoryStore()}
	buffers := conversation.NewBuffers(conversation.ScopeSession)
	conn := &stubConnector{validKey: "sk-valid", model: &stubModel{reply: "hello"}}
	m := metrics.New("test")
	wf := workflows.NewChatWorkflow(conn, buffers, store)
	ts := httptest.NewServer(NewRouter(NewChatHandler(wf, buffers, store, m), m))
	t.Cleanup(ts.Close)

	res := postJSON(t, ts.URL+"/llm", map[string]any{"question": "Hi", "session_id": "s1", "openai_api_key": "sk-valid"})
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}

	mres, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer mres.Body.Close()
	body, _ := io.ReadAll(mres.Body)
	if !strings.Contains(string(body), "test_turns_persisted_total 1") {
		t.Fatalf("metrics missing one persisted turn:\n%s", body)
	}
	if !strings.Contains(string(body), `test_llm_failures_total{step="store"} 1`) {
		t.Fatalf("metrics missing store failure:\n%s", body)
	}
}

func TestAskRejectsInvalidBody(t *testing.T) {
	ts, store := newTestServer(t, "unused")

	cases := map[string]string{
		"malformed":        `{"question":`,
		"missing key":      `{"question":"Hi","session_id":"s1"}`,
		"missing session":  `{"question":"Hi","openai_api_key":"sk-valid"}`,
		"missing question": `{"session_id":"s1","openai_api_key":"sk-valid"}`,
		"question type":    `{"question":1,"session_id":"s1","openai_api_key":"sk-valid"}`,
	}
	for name, body := range cases {
		res, err := http.Post(ts.URL+"/llm", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("%s: POST error = %v", name, err)
		}
		var got models.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&got)
		res.Body.Close()

		if res.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status = %d, want %d", name, res.StatusCode, http.StatusUnprocessableEntity)
		}
		if got.Detail == "" {
			t.Fatalf("%s: empty detail", name)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("store.Len() = %d, want 0", store.Len())
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, "unused")

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/llm", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS error = %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q, want *", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer res.Body.Close()
	var health map[string]string
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "healthy" || health["store"] != "memory" || health["buffer_scope"] != "session" {
		t.Fatalf("health = %+v", health)
	}

	postJSON(t, ts.URL+"/llm", map[string]any{"question": "Hi", "session_id": "s1", "openai_api_key": "sk-valid"})

	mres, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer mres.Body.Close()
	body, _ := io.ReadAll(mres.Body)
	if !strings.Contains(string(body), `llm_requests_total{status="200"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", body)
	}
}

func TestUIRoutes(t *testing.T) {
	ts, _ := newTestServer(t, "ok")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	rootRes, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := rootRes.Header.Get("Location"); got != "/ui/" {
		t.Fatalf("GET / location = %q, want %q", got, "/ui/")
	}

	uiRes, err := http.Get(ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	body, _ := io.ReadAll(uiRes.Body)
	if uiRes.StatusCode != http.StatusOK || !strings.Contains(string(body), `id="api-key"`) {
		t.Fatalf("GET /ui/ status = %d, body missing api key input", uiRes.StatusCode)
	}
}
