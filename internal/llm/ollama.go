package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/comigor/ollamachat/internal/chat"
	"github.com/comigor/ollamachat/internal/config"
	"github.com/comigor/ollamachat/internal/logger"
	"github.com/comigor/ollamachat/internal/stream"
)

const defaultReadBuffer = 4096

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Model    string      `json:"model"`
	Messages []chat.Turn `json:"messages"`
	Stream   bool        `json:"stream"`
}

// OllamaClient speaks the native Ollama API, whose chat responses are
// newline-delimited JSON.
type OllamaClient struct {
	baseURL    string
	readBuffer int
	// httpClient has the configured timeout; streamClient has none and
	// is bounded by the caller's context only.
	httpClient   *http.Client
	streamClient *http.Client
}

// NewOllamaClient creates a client for the server at cfg.BaseURL.
func NewOllamaClient(cfg config.LLMConfig) *OllamaClient {
	readBuffer := cfg.ReadBuffer
	if readBuffer <= 0 {
		readBuffer = defaultReadBuffer
	}
	return &OllamaClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		readBuffer:   readBuffer,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
}

// Chat posts req with streaming enabled and hands every reassembled record
// to onEvent as the body arrives.
func (c *OllamaClient) Chat(ctx context.Context, req chat.Request, onEvent func(stream.Event)) error {
	body, err := json.Marshal(chatRequest{Model: req.Model, Messages: req.Messages, Stream: true})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "chat request failed")
	}

	r := stream.NewReassembler()
	buf := make([]byte, c.readBuffer)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := deliver(r.Feed(string(buf[:n])), onEvent); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return transportError(ctx.Err())
			}
			return &ClientError{Type: ErrTypeStream, Message: "response stream interrupted", Cause: readErr}
		}
	}
	return deliver(r.Finish(), onEvent)
}

// deliver forwards events until one reports a server-side failure.
func deliver(events []stream.Event, onEvent func(stream.Event)) error {
	for _, ev := range events {
		if ev.Error != "" {
			return &ClientError{Type: ErrTypeStream, Message: ev.Error}
		}
		onEvent(ev)
	}
	return nil
}

// ListModels returns the names of the locally available models.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "failed to list models")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read response", Cause: err}
	}
	if !gjson.ValidBytes(body) {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "model list is not valid JSON"}
	}

	var names []string
	for _, name := range gjson.GetBytes(body, "models.#.name").Array() {
		if n := name.String(); n != "" {
			names = append(names, n)
		}
	}
	logger.L.Debug("listed models", "count", len(names))
	return names, nil
}

// statusError turns a non-200 response into a ClientError, preferring the
// server's own {"error": "..."} text.
func statusError(resp *http.Response, prefix string) *ClientError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := prefix + ": " + resp.Status
	if e := gjson.GetBytes(body, "error"); e.Exists() && e.String() != "" {
		msg = e.String()
	}

	errType := ErrTypeInvalidResponse
	if resp.StatusCode == http.StatusNotFound {
		errType = ErrTypeModelNotFound
	}
	return &ClientError{Type: errType, Message: msg}
}
