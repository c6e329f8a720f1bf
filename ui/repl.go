// Package ui is the line-oriented terminal front end.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/atotto/clipboard"

	"tether/agent"
	"tether/model"
)

// errQuit ends Run without error.
var errQuit = errors.New("quit")

const searchLimit = 20

// Options configures a REPL.
type Options struct {
	Width int
	// Plain disables markdown rendering and ANSI styling of replies.
	Plain bool
	// Copy writes text to the clipboard. Defaults to the system clipboard.
	Copy   func(string) error
	Logger *slog.Logger
}

// REPL reads commands and prompts line by line.
type REPL struct {
	agent  *agent.Agent
	in     *bufio.Scanner
	out    io.Writer
	opts   Options
	logger *slog.Logger

	busy atomic.Bool
}

// NewREPL creates a REPL reading from in and writing to out.
func NewREPL(a *agent.Agent, in io.Reader, out io.Writer, opts Options) *REPL {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &REPL{
		agent:  a,
		in:     scanner,
		out:    out,
		opts:   opts,
		logger: logger.With("component", "ui"),
	}
}

// Interrupt aborts the running turn. It reports false when no turn is
// running, in which case the caller decides whether to exit.
func (r *REPL) Interrupt() bool {
	if !r.busy.Load() {
		return false
	}
	r.agent.Abort()
	return true
}

// Ask answers an extension's input request with the next input line.
func (r *REPL) Ask(_ context.Context, question string) (string, error) {
	fmt.Fprintln(r.out, SelectedStyle.Render("? "+question))
	fmt.Fprint(r.out, "> ")
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.in.Text(), nil
}

// Run processes input until /quit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, TitleStyle.Render("tether")+"  "+DimStyle.Render(r.agent.ActiveThread().Name))
	fmt.Fprintln(r.out, FormatFooter("/help", "Commands", "/quit", "Exit"))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, UserStyle.Render("> "))
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			if ctx.Err() != nil {
				return nil
			}
			return r.in.Err()
		}

		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		err := r.handle(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			r.logger.Debug("command failed", "line", line, "err", err)
			fmt.Fprintln(r.out, ErrorStyle.Render("Error: "+err.Error()))
		}
	}
}

func (r *REPL) handle(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		r.printHelp()
		return nil
	case "/new":
		t, err := r.agent.NewThread(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, DimStyle.Render("Started "+t.Name))
		return nil
	case "/threads":
		fmt.Fprintln(r.out, RenderThreadList(r.agent.ListThreads(), r.agent.ActiveThread().ID, r.opts.Width))
		return nil
	case "/switch":
		return r.switchThread(ctx, arg)
	case "/rename":
		if err := r.agent.RenameThread(ctx, r.agent.ActiveThread().ID, arg); err != nil {
			return err
		}
		fmt.Fprintln(r.out, DimStyle.Render("Renamed to "+arg))
		return nil
	case "/delete":
		old := r.agent.ActiveThread()
		if err := r.agent.DeleteThread(ctx, old.ID); err != nil {
			return err
		}
		fmt.Fprintln(r.out, DimStyle.Render("Deleted "+old.Name))
		return nil
	case "/reset":
		if err := r.agent.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.out, DimStyle.Render("All threads and files cleared"))
		return nil
	case "/files":
		r.printFiles(arg)
		return nil
	case "/search":
		return r.search(ctx, arg)
	case "/copy":
		return r.copyLastReply()
	case "/extensions":
		names := r.agent.ExtensionNames()
		if len(names) == 0 {
			fmt.Fprintln(r.out, DimStyle.Render("No extensions loaded"))
			return nil
		}
		fmt.Fprintln(r.out, strings.Join(names, "\n"))
		return nil
	}

	return r.prompt(ctx, line)
}

func (r *REPL) switchThread(ctx context.Context, query string) error {
	matches := r.agent.FindThreads(query)
	if len(matches) == 0 {
		return fmt.Errorf("no thread matches %q", query)
	}
	if err := r.agent.SwitchThread(ctx, matches[0].ID); err != nil {
		return err
	}
	fmt.Fprintln(r.out, DimStyle.Render("Switched to "+matches[0].Name))
	for _, msg := range r.agent.Messages() {
		switch msg.Role {
		case model.RoleUser:
			fmt.Fprintln(r.out, UserStyle.Render("> ")+msg.Content)
		case model.RoleAssistant:
			if msg.Content != "" {
				fmt.Fprintln(r.out, r.renderReply(msg.Content))
			}
		}
	}
	return nil
}

func (r *REPL) printFiles(prefix string) {
	paths := r.agent.FS().List(prefix)
	if len(paths) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No files"))
		return
	}
	for _, p := range paths {
		content, _ := r.agent.FS().Read(p)
		fmt.Fprintf(r.out, "%s  %s\n", fit(p, r.opts.Width-14), DimStyle.Render(fmt.Sprintf("%d bytes", len(content))))
	}
}

func (r *REPL) search(ctx context.Context, query string) error {
	if query == "" {
		return errors.New("usage: /search <text>")
	}
	matches, err := r.agent.SearchMessages(ctx, query, searchLimit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No matches"))
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(r.out, "%s %s\n", SelectedStyle.Render(m.ThreadName+":"), fit(m.Role+": "+m.Snippet, r.opts.Width-len(m.ThreadName)-2))
	}
	return nil
}

func (r *REPL) copyLastReply() error {
	msgs := r.agent.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant && msgs[i].Content != "" {
			if err := r.opts.Copy(msgs[i].Content); err != nil {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
			fmt.Fprintln(r.out, DimStyle.Render("Copied last reply"))
			return nil
		}
	}
	return errors.New("nothing to copy yet")
}

func (r *REPL) renderReply(text string) string {
	rendered := RenderMarkdown(text, r.opts.Width)
	if r.opts.Plain {
		return stripANSI(rendered)
	}
	return rendered
}

// prompt runs one turn. Assistant text is collected per segment and rendered
// when a tool call starts or the turn ends.
func (r *REPL) prompt(ctx context.Context, line string) error {
	r.busy.Store(true)
	defer r.busy.Store(false)

	var segment strings.Builder
	flush := func() {
		if segment.Len() == 0 {
			return
		}
		fmt.Fprintln(r.out, r.renderReply(segment.String()))
		segment.Reset()
	}

	turn := r.agent.Prompt(ctx, line)
	for ev, err := range turn.Events() {
		if err != nil {
			flush()
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(r.out, DimStyle.Render("Interrupted"))
				return nil
			}
			return err
		}

		switch ev.Type {
		case model.EventTextDelta:
			segment.WriteString(ev.Delta)
		case model.EventToolCallStart:
			flush()
		case model.EventToolCallEnd:
			fmt.Fprintln(r.out, FormatToolCall(ev.ToolCall, r.opts.Width))
		case model.EventError:
			flush()
			fmt.Fprintln(r.out, ErrorStyle.Render(ev.Error))
		case model.EventTurnEnd:
			flush()
		}
	}
	return nil
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, strings.Join([]string{
		FormatFooter("/new", "Start a new thread"),
		FormatFooter("/threads", "List threads"),
		FormatFooter("/switch <query>", "Switch to the best matching thread"),
		FormatFooter("/rename <name>", "Rename the current thread"),
		FormatFooter("/delete", "Delete the current thread"),
		FormatFooter("/reset", "Delete all threads and files"),
		FormatFooter("/files [dir]", "List files"),
		FormatFooter("/search <text>", "Search all threads"),
		FormatFooter("/copy", "Copy the last reply"),
		FormatFooter("/extensions", "List loaded extensions"),
		FormatFooter("/quit", "Exit"),
		DimStyle.Render("Other /name commands expand prompt templates."),
	}, "\n"))
}
