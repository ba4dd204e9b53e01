package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/comigor/ollamachat/internal/chat"
)

type command struct {
	name  string
	usage string
	help  string
}

var commands = []command{
	{"/help", "/help", "show this help"},
	{"/clear", "/clear", "start a new conversation"},
	{"/model", "/model [name]", "show or switch the model"},
	{"/models", "/models", "list installed models"},
	{"/quit", "/quit", "leave (also: exit, quit)"},
}

// parseCommand splits "/name args..." into the lowercased name and the
// trimmed remainder.
func parseCommand(input string) (name, arg string) {
	name, arg, _ = strings.Cut(strings.TrimSpace(input), " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

// command runs a slash command and reports whether the REPL should go on.
func (c *Chat) command(ctx context.Context, input string) bool {
	name, arg := parseCommand(input)
	switch name {
	case "/quit", "/exit", "/q":
		return false

	case "/help", "/?":
		c.printHelp()

	case "/clear":
		if err := c.session.Clear(); err != nil {
			c.printError(err)
		}

	case "/model":
		if arg == "" {
			fmt.Fprintln(c.out, infoStyle.Render("Current model: ")+c.session.Model())
			return true
		}
		c.switchModel(arg)

	case "/models":
		c.listModels(ctx)

	default:
		fmt.Fprintln(c.errOut, warningStyle.Render(fmt.Sprintf("Unknown command %s. Type /help for the list.", name)))
	}
	return true
}

func (c *Chat) switchModel(name string) {
	if known := c.knownModels(); len(known) > 0 && !slices.Contains(known, name) {
		fmt.Fprintln(c.errOut, warningStyle.Render(fmt.Sprintf("Model %q is not installed. Use /models to list installed models.", name)))
		return
	}
	if err := c.session.SetModel(name); err != nil {
		c.printError(err)
		return
	}
	fmt.Fprintln(c.out, infoStyle.Render("Switched to ")+name)
}

// listModels refreshes the model list from the server and prints it.
func (c *Chat) listModels(ctx context.Context) {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintln(c.errOut, warningStyle.Render(fmt.Sprintf("Failed to load models. Make sure Ollama is running on %s", c.baseURL)))
		return
	}
	c.mu.Lock()
	c.models = models
	c.mu.Unlock()

	if len(models) == 0 {
		fmt.Fprintln(c.out, infoStyle.Render("No models installed."))
		return
	}
	current := c.session.Model()
	for _, m := range models {
		marker := "  "
		if m == current {
			marker = "* "
		}
		fmt.Fprintln(c.out, marker+m)
	}
}

func (c *Chat) printHelp() {
	var b strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&b, "  %s  %s\n", commandStyle.Render(fmt.Sprintf("%-14s", cmd.usage)), cmd.help)
	}
	fmt.Fprint(c.out, b.String())
}

func (c *Chat) printError(err error) {
	msg := err.Error()
	if errors.Is(err, chat.ErrBusy) {
		msg = "Wait for the current reply to finish."
	}
	fmt.Fprintln(c.errOut, errorStyle.Render(msg))
}
