package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/ollamachat/internal/stream"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem only appears on the wire, never as a Session message.
	RoleSystem Role = "system"
)

// Message is one turn of the conversation. Only Content changes after
// creation, and only while an assistant reply is streaming into it.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Turn is the role/content pair sent to the server.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one outbound chat exchange.
type Request struct {
	Model    string
	Messages []Turn
}

// Transport carries a Request to the model server. It must call onEvent
// synchronously, in arrival order, for every record of the response and
// return nil once the stream ends cleanly or an error if it failed.
type Transport interface {
	Chat(ctx context.Context, req Request, onEvent func(stream.Event)) error
}
