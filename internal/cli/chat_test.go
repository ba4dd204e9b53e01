package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/ollamachat/internal/chat"
	"github.com/comigor/ollamachat/internal/history"
	"github.com/comigor/ollamachat/internal/stream"
)

type mockClient struct {
	ChatFunc       func(ctx context.Context, req chat.Request, onEvent func(stream.Event)) error
	ListModelsFunc func(ctx context.Context) ([]string, error)
}

func (m *mockClient) Chat(ctx context.Context, req chat.Request, onEvent func(stream.Event)) error {
	if m.ChatFunc == nil {
		return nil
	}
	return m.ChatFunc(ctx, req, onEvent)
}

func (m *mockClient) ListModels(ctx context.Context) ([]string, error) {
	if m.ListModelsFunc == nil {
		return nil, nil
	}
	return m.ListModelsFunc(ctx)
}

func fragment(s string) stream.Event {
	return stream.Event{Message: &stream.EventMessage{Role: "assistant", Content: s}}
}

func newTestChat(client *mockClient, store *history.Store, model string) (*Chat, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := New(client, store, Options{
		BaseURL: "http://localhost:11434",
		Model:   model,
		Out:     &out,
		Err:     &errOut,
	})
	return c, &out, &errOut
}

func TestStart_FallsBackToFirstInstalledModel(t *testing.T) {
	client := &mockClient{ListModelsFunc: func(context.Context) ([]string, error) {
		return []string{"mistral", "phi3"}, nil
	}}
	c, out, _ := newTestChat(client, nil, "llama2")

	c.Start(context.Background())

	assert.Equal(t, "mistral", c.Session().Model())
	assert.Contains(t, out.String(), `Model "llama2" is not installed; using "mistral".`)
}

func TestStart_KeepsPreferredModelWhenInstalled(t *testing.T) {
	client := &mockClient{ListModelsFunc: func(context.Context) ([]string, error) {
		return []string{"mistral", "llama3"}, nil
	}}
	c, out, _ := newTestChat(client, nil, "llama3")

	c.Start(context.Background())

	assert.Equal(t, "llama3", c.Session().Model())
	assert.Empty(t, out.String())
}

func TestStart_ListFailureWarns(t *testing.T) {
	client := &mockClient{ListModelsFunc: func(context.Context) ([]string, error) {
		return nil, errors.New("connection refused")
	}}
	c, _, errOut := newTestChat(client, nil, "")

	c.Start(context.Background())

	assert.Equal(t, "llama2", c.Session().Model())
	assert.Contains(t, errOut.String(), "Failed to load models. Make sure Ollama is running on http://localhost:11434")
}

func TestHandle_StreamsReplyAndRecordsTranscript(t *testing.T) {
	var gotReq chat.Request
	client := &mockClient{ChatFunc: func(_ context.Context, req chat.Request, onEvent func(stream.Event)) error {
		gotReq = req
		onEvent(fragment("Hel"))
		onEvent(fragment("lo"))
		return nil
	}}
	store := history.NewStore("")
	c, out, errOut := newTestChat(client, store, "llama2")

	assert.True(t, c.Handle(context.Background(), "  Hi  "))

	assert.Contains(t, out.String(), "Hello")
	assert.Empty(t, errOut.String())
	assert.Equal(t, "llama2", gotReq.Model)

	records := store.List(c.Session().ID())
	require.Len(t, records, 2)
	assert.Equal(t, "user", records[0].Role)
	assert.Equal(t, "Hi", records[0].Content)
	assert.Equal(t, "assistant", records[1].Role)
	assert.Equal(t, "Hello", records[1].Content)
}

func TestHandle_FailureRollsBackAndShowsError(t *testing.T) {
	client := &mockClient{ChatFunc: func(_ context.Context, _ chat.Request, onEvent func(stream.Event)) error {
		onEvent(fragment("par"))
		return errors.New("connection reset")
	}}
	store := history.NewStore("")
	c, out, errOut := newTestChat(client, store, "llama2")

	assert.True(t, c.Handle(context.Background(), "Hi"))

	assert.Contains(t, out.String(), "[partial reply discarded]")
	assert.Contains(t, errOut.String(), chat.ErrorText)

	msgs := c.Session().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)

	records := store.List(c.Session().ID())
	require.Len(t, records, 1, "failed replies are never recorded")
	assert.Equal(t, "user", records[0].Role)
}

func TestHandle_CanceledContextRollsBack(t *testing.T) {
	client := &mockClient{ChatFunc: func(ctx context.Context, _ chat.Request, onEvent func(stream.Event)) error {
		onEvent(fragment("a"))
		<-ctx.Done()
		return ctx.Err()
	}}
	c, _, errOut := newTestChat(client, nil, "llama2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, c.Handle(ctx, "Hi"))

	assert.False(t, c.Session().Loading())
	assert.Len(t, c.Session().Messages(), 1)
	assert.Contains(t, errOut.String(), chat.ErrorText)
}

func TestHandle_ExitWords(t *testing.T) {
	c, _, _ := newTestChat(&mockClient{}, nil, "")

	assert.False(t, c.Handle(context.Background(), "exit"))
	assert.False(t, c.Handle(context.Background(), "QUIT"))
	assert.False(t, c.Handle(context.Background(), "/quit"))
	assert.True(t, c.Handle(context.Background(), "   "))
	assert.Empty(t, c.Session().Messages())
}

func TestNew_MarkdownNeedsTerminal(t *testing.T) {
	var out bytes.Buffer
	c := New(&mockClient{}, nil, Options{Markdown: true, Out: &out, Err: &out})
	assert.Nil(t, c.markdown)
}
