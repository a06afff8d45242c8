// Package console implements the interactive terminal front-end: a
// read-eval loop that forwards lines to the session and renders a few
// local commands for status and history.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/history"
)

// Session is the RCON surface the console drives.
type Session interface {
	Execute(ctx context.Context, command string) (string, error)
	Authenticate(ctx context.Context, password string) error
	Connect() error
	Disconnect() error
	IsConnected() bool
	IsAuthenticated() bool
	Address() string
}

// HistoryReader is the audit log surface the console reads.
type HistoryReader interface {
	Recent(limit int) ([]history.Entry, error)
	Count() (int64, error)
}

// Console is one interactive terminal session. Local commands start
// with a colon; every other line goes to the server verbatim.
type Console struct {
	session Session
	history HistoryReader
	in      io.Reader
	out     io.Writer
}

// New creates a console over the given streams. history may be nil when
// the audit log is disabled.
func New(session Session, hist HistoryReader, in io.Reader, out io.Writer) *Console {
	return &Console{
		session: session,
		history: hist,
		in:      in,
		out:     out,
	}
}

// Run reads lines until EOF, :quit, or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "Connected to %s. Type :help for local commands.\n", c.session.Address())

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(c.out, "rcon> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			quit, err := c.executeLocal(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := c.session.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			continue
		}
		if reply == "" {
			fmt.Fprintln(c.out, "(empty reply)")
			continue
		}
		fmt.Fprint(c.out, reply)
		if !strings.HasSuffix(reply, "\n") {
			fmt.Fprintln(c.out)
		}
	}
}

// executeLocal processes one colon-prefixed command. The bool result is
// true when the loop should exit.
func (c *Console) executeLocal(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case ":help", ":h", ":?":
		c.printHelp()
	case ":status", ":s":
		c.printStatus()
	case ":history":
		return false, c.printHistory(args)
	case ":reconnect":
		return false, c.reconnect(ctx)
	case ":quit", ":exit", ":q":
		fmt.Fprintln(c.out, "Bye.")
		return true, nil
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type :help for local commands.\n", cmd)
	}
	return false, nil
}

// printHelp displays the local commands.
func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\nLocal commands:")
	fmt.Fprintln(c.out, "  :status         Show session state")
	fmt.Fprintln(c.out, "  :history [n]    Show the last n recorded commands (default 10)")
	fmt.Fprintln(c.out, "  :reconnect      Drop and re-establish the session")
	fmt.Fprintln(c.out, "  :quit           Leave the console")
	fmt.Fprintln(c.out, "  :help           Show this help message")
	fmt.Fprintln(c.out, "\nEverything else is sent to the server as-is.")
	fmt.Fprintln(c.out)
}

// printStatus displays session state in a formatted table.
func (c *Console) printStatus() {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Server", "Connected", "Authenticated", "Recorded"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	recorded := "-"
	if c.history != nil {
		if n, err := c.history.Count(); err == nil {
			recorded = strconv.FormatInt(n, 10)
		}
	}

	tw.Append([]string{
		c.session.Address(),
		fmt.Sprintf("%v", c.session.IsConnected()),
		fmt.Sprintf("%v", c.session.IsAuthenticated()),
		recorded,
	})
	tw.Render()
}

// printHistory displays the most recent audit log entries.
func (c *Console) printHistory(args []string) error {
	if c.history == nil {
		return fmt.Errorf("history is disabled")
	}

	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	entries, err := c.history.Recent(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No history yet.")
		return nil
	}

	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Time", "Command", "Outcome", "Duration"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, e := range entries {
		outcome := "ok"
		if !e.OK() {
			outcome = e.Error
		}
		tw.Append([]string{
			e.ExecutedAt.Local().Format("15:04:05"),
			e.Command,
			outcome,
			fmt.Sprintf("%dms", e.DurationMs),
		})
	}
	tw.Render()
	return nil
}

// reconnect drops the session and brings it back up, handshake included.
func (c *Console) reconnect(ctx context.Context) error {
	fmt.Fprintf(c.out, "Reconnecting to %s...\n", c.session.Address())

	if err := c.session.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("disconnect during reconnect")
	}
	if err := c.session.Connect(); err != nil {
		return fmt.Errorf("reconnect failed: %w", err)
	}
	if err := c.session.Authenticate(ctx, ""); err != nil {
		return fmt.Errorf("re-authentication failed: %w", err)
	}

	fmt.Fprintln(c.out, "Reconnected.")
	return nil
}
