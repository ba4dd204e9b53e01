package llm

import (
	"context"

	"github.com/comigor/ollamachat/internal/chat"
)

// Client is the model server as seen by the chat client: a streaming
// transport plus the model listing used once at startup.
type Client interface {
	chat.Transport
	ListModels(ctx context.Context) ([]string, error)
}
