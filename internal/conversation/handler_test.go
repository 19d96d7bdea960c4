package conversation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozlistings/oz-ai-platform/internal/profile"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

func TestHandleChatSuccess(t *testing.T) {
	extractor := &scriptedExtractor{results: []map[string]any{{"role": "Investor"}}}
	svc := newTestChatService(t, extractor, &stubLLM{reply: "Welcome aboard!"})
	handler := NewHandler(svc, logging.Default())

	body := `{"user_id":"user-1","message":"I'm an investor"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleChat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Welcome aboard!", resp.Response)
	require.NotNil(t, resp.Profile.Role)
	assert.Equal(t, profile.RoleInvestor, *resp.Profile.Role)
	assert.Equal(t, 1, resp.Profile.MessageCount)
}

func TestHandleChatInvalidBody(t *testing.T) {
	svc := newTestChatService(t, &scriptedExtractor{}, &stubLLM{})
	handler := NewHandler(svc, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.HandleChat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatEmptyMessage(t *testing.T) {
	svc := newTestChatService(t, &scriptedExtractor{}, &stubLLM{})
	handler := NewHandler(svc, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_id":"u1","message":""}`))
	rec := httptest.NewRecorder()

	handler.HandleChat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message is required")
}

func TestHandleChatMessageTooLong(t *testing.T) {
	svc := newTestChatService(t, &scriptedExtractor{}, &stubLLM{})
	handler := NewHandler(svc, logging.Default())

	payload, err := json.Marshal(ChatRequest{
		UserID:  "user-1",
		Message: strings.Repeat("z", MaxMessageLength+1),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(string(payload)))
	rec := httptest.NewRecorder()

	handler.HandleChat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "1000 characters")
}
