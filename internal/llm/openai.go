package llm

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/ollamachat/internal/chat"
	"github.com/comigor/ollamachat/internal/config"
	"github.com/comigor/ollamachat/internal/stream"
)

// OpenAIClient talks to an OpenAI-compatible endpoint, such as the one
// Ollama serves under /v1. Deltas are converted to stream events so the
// session treats both providers alike.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL

	return &OpenAIClient{client: openai.NewClientWithConfig(oc)}
}

// Chat streams a chat completion and forwards each delta to onEvent.
func (c *OpenAIClient) Chat(ctx context.Context, req chat.Request, onEvent func(stream.Event)) error {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, t := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	st, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return openAIError(err)
	}
	defer st.Close()

	for {
		resp, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return transportError(ctx.Err())
			}
			return &ClientError{Type: ErrTypeStream, Message: "response stream interrupted", Cause: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		role := choice.Delta.Role
		if role == "" {
			role = openai.ChatMessageRoleAssistant
		}
		onEvent(stream.Event{
			Message: &stream.EventMessage{Role: role, Content: choice.Delta.Content},
			Done:    choice.FinishReason != "",
		})
	}
}

// ListModels returns the ids reported by GET /models.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, openAIError(err)
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

func openAIError(err error) *ClientError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		errType := ErrTypeInvalidResponse
		if apiErr.HTTPStatusCode == http.StatusNotFound {
			errType = ErrTypeModelNotFound
		}
		return &ClientError{Type: errType, Message: apiErr.Message, Cause: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		errType := ErrTypeInvalidResponse
		if reqErr.HTTPStatusCode == http.StatusNotFound {
			errType = ErrTypeModelNotFound
		}
		return &ClientError{Type: errType, Message: "request failed", Cause: err}
	}
	return transportError(err)
}
