// Package cli is the interactive terminal front end: it reads user input,
// drives a chat.Session and prints the conversation as it streams.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/comigor/ollamachat/internal/chat"
	"github.com/comigor/ollamachat/internal/history"
	"github.com/comigor/ollamachat/internal/llm"
	"github.com/comigor/ollamachat/internal/logger"
)

// Options configures a Chat.
type Options struct {
	BaseURL      string
	Model        string
	SystemPrompt string
	// Markdown renders finished replies with glamour when Out is a terminal.
	Markdown bool
	// InputHistory is the file liner loads and saves line history from.
	InputHistory string
	Out          io.Writer
	Err          io.Writer
}

// Chat connects a terminal to one chat.Session.
type Chat struct {
	client  llm.Client
	session *chat.Session
	store   *history.Store

	out          io.Writer
	errOut       io.Writer
	baseURL      string
	preferred    string
	inputHistory string
	markdown     *markdownRenderer

	mu     sync.Mutex
	models []string
	// streamed is set once a fragment of the current reply hit the screen.
	streamed bool
}

// New creates a Chat. store may be nil to disable the transcript.
func New(client llm.Client, store *history.Store, opts Options) *Chat {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	c := &Chat{
		client:       client,
		store:        store,
		out:          opts.Out,
		errOut:       opts.Err,
		baseURL:      opts.BaseURL,
		preferred:    opts.Model,
		inputHistory: opts.InputHistory,
	}
	if opts.Markdown && isTerminal(opts.Out) {
		r, err := newMarkdownRenderer(terminalWidth(opts.Out), "dark")
		if err != nil {
			logger.L.Warn("markdown renderer unavailable; printing raw replies", "error", err)
		} else {
			c.markdown = r
		}
	}

	sessionOpts := []chat.Option{
		chat.WithSystemPrompt(opts.SystemPrompt),
		chat.WithObserver(c.onUpdate),
	}
	if opts.Model != "" {
		sessionOpts = append(sessionOpts, chat.WithModel(opts.Model))
	}
	c.session = chat.New(client, sessionOpts...)
	return c
}

// Session exposes the underlying chat session.
func (c *Chat) Session() *chat.Session { return c.session }

// Start lists the available models once and selects the one to chat with.
// A listing failure is reported but not fatal.
func (c *Chat) Start(ctx context.Context) {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		logger.L.Warn("failed to list models", "base_url", c.baseURL, "error", err)
		fmt.Fprintln(c.errOut, warningStyle.Render(fmt.Sprintf("Failed to load models. Make sure Ollama is running on %s", c.baseURL)))
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()

	model := llm.PickModel(models, c.session.Model())
	if err := c.session.SetModel(model); err != nil {
		logger.L.Warn("could not select model", "model", model, "error", err)
	}
	if model != c.preferred && c.preferred != "" && len(models) > 0 {
		fmt.Fprintln(c.out, infoStyle.Render(fmt.Sprintf("Model %q is not installed; using %q.", c.preferred, model)))
	}
	logger.L.Info("chat session started", "session", c.session.ID(), "model", model, "models", len(models))
}

// Handle processes one line of input. It returns false when the user asked
// to leave.
func (c *Chat) Handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return false
	}
	if strings.HasPrefix(input, "/") {
		return c.command(ctx, input)
	}

	if !c.session.Submit(ctx, input) {
		fmt.Fprintln(c.errOut, warningStyle.Render("Still waiting for the previous reply."))
	}
	return true
}

// Run reads lines with liner until the user quits or input ends.
// Ctrl+C while a reply is streaming cancels that exchange only.
func (c *Chat) Run(ctx context.Context) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	c.loadInputHistory(line)
	defer c.saveInputHistory(line)

	c.printWelcome()
	for {
		input, err := line.Prompt(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		keepGoing := c.Handle(turnCtx, input)
		stop()
		if !keepGoing {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Chat) loadInputHistory(line *liner.State) {
	if c.inputHistory == "" {
		return
	}
	f, err := os.Open(c.inputHistory)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		logger.L.Debug("could not read input history", "path", c.inputHistory, "error", err)
	}
}

func (c *Chat) saveInputHistory(line *liner.State) {
	if c.inputHistory == "" {
		return
	}
	f, err := os.OpenFile(c.inputHistory, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		logger.L.Debug("could not save input history", "path", c.inputHistory, "error", err)
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		logger.L.Debug("could not save input history", "path", c.inputHistory, "error", err)
	}
}

func (c *Chat) printWelcome() {
	fmt.Fprintln(c.out, assistantStyle.Render("ollamachat"), infoStyle.Render("model "+c.session.Model()))
	fmt.Fprintln(c.out, infoStyle.Render("Type /help for commands, /quit to leave."))
}

// onUpdate prints session changes as they happen and records finished turns.
func (c *Chat) onUpdate(u chat.Update) {
	switch u.Kind {
	case chat.UpdateMessageAdded:
		if u.Message.Role == chat.RoleUser {
			c.record(u.Message)
			return
		}
		c.setStreamed(false)
		fmt.Fprint(c.out, assistantStyle.Render("assistant> "))
		if c.markdown != nil {
			fmt.Fprintln(c.out)
		}

	case chat.UpdateFragment:
		if c.markdown != nil {
			return
		}
		c.setStreamed(true)
		fmt.Fprint(c.out, u.Fragment)

	case chat.UpdateMessageRemoved:
		if c.isStreamed() {
			fmt.Fprintln(c.out)
			fmt.Fprintln(c.out, warningStyle.Render("[partial reply discarded]"))
		}

	case chat.UpdateExchangeCompleted:
		if c.markdown != nil {
			fmt.Fprint(c.out, c.markdown.Render(u.Message.Content))
		} else {
			fmt.Fprintln(c.out)
		}
		c.record(u.Message)

	case chat.UpdateExchangeFailed:
		if !c.isStreamed() {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintln(c.errOut, errorStyle.Render(c.session.LastError()))
		if llm.IsModelNotFound(u.Err) {
			fmt.Fprintln(c.errOut, infoStyle.Render(fmt.Sprintf("Model %q is not available. Use /models to list installed models.", c.session.Model())))
		}

	case chat.UpdateCleared:
		fmt.Fprintln(c.out, infoStyle.Render("Conversation cleared."))
	}
}

func (c *Chat) record(m chat.Message) {
	if c.store == nil {
		return
	}
	c.store.Save(history.Record{
		SessionID: c.session.ID(),
		MessageID: m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	})
}

func (c *Chat) setStreamed(v bool) {
	c.mu.Lock()
	c.streamed = v
	c.mu.Unlock()
}

func (c *Chat) isStreamed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamed
}

func (c *Chat) knownModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.models)
}
