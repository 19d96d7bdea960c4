package webchat

import (
	"context"
	"fmt"
	"time"

	"github.com/ozlistings/oz-ai-platform/internal/conversation"
	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

// ReplyMessenger implements conversation.ReplyMessenger for web chat.
// It pushes worker-produced replies back through the WebSocket connection.
type ReplyMessenger struct {
	handler *Handler
	logger  *logging.Logger
}

func NewReplyMessenger(handler *Handler, logger *logging.Logger) *ReplyMessenger {
	if handler == nil {
		panic("webchat: handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReplyMessenger{handler: handler, logger: logger}
}

// SendReply pushes the assistant response to the visitor's WebSocket.
func (m *ReplyMessenger) SendReply(_ context.Context, sessionID string, resp *conversation.ChatResponse) error {
	if resp == nil || resp.Response == "" {
		return nil
	}

	delivered := m.handler.SendToSession(sessionID, OutboundMessage{
		Type:      "message",
		Role:      conversation.ChatRoleAssistant,
		Text:      resp.Response,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if !delivered {
		return fmt.Errorf("webchat: no active session %s", sessionID)
	}

	m.logger.Info("webchat: reply delivered",
		"session_id", sessionID,
		"length", len(resp.Response),
	)
	return nil
}
