package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/myclaw/myclaw/internal/config"
	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/store"
)

func chatCmd() *cobra.Command {
	var (
		workspacePath string
		resume        string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent interactively",
		Long: `Start an interactive chat session with the agent.

Examples:
  myclaw chat                        # Fresh session in the configured workspace
  myclaw chat -w ~/src/app           # Fresh session in another workspace
  myclaw chat --resume latest        # Continue the newest persisted session
  myclaw chat --resume 2             # Continue by /sessions index

Type /help inside the chat for the slash commands.`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(workspacePath, resume)
		},
	}

	cmd.Flags().StringVarP(&workspacePath, "workspace", "w", "", "workspace directory (default: config workspace or current directory)")
	cmd.Flags().StringVar(&resume, "resume", "", `resume a persisted session: id, 1-based index or "latest"`)

	return cmd
}

func runChat(workspacePath, resume string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	a, err := newApp(ctx, approveDestructive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.shutdown(context.Background())

	if workspacePath == "" {
		workspacePath = a.cfg.WorkspacePath()
	} else {
		workspacePath = config.ExpandHome(workspacePath)
	}

	sess, err := openChatSession(ctx, a, workspacePath, resume)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitAfterShutdown(a, 1)
	}

	fmt.Fprintf(os.Stderr, "\nmyclaw interactive chat\n")
	fmt.Fprintf(os.Stderr, "Workspace: %s | Model: %s\n", sess.Workspace, sess.Model)
	fmt.Fprintf(os.Stderr, "Session: %s\n", sess.ID)
	fmt.Fprintf(os.Stderr, "Type /help for commands, /exit to quit\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			a.engine.CloseSession(sess.ID, "interrupt")
			return
		default:
		}

		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			next, quit := handleSlash(ctx, a, sess, input)
			sess = next
			if quit {
				fmt.Fprintln(os.Stderr, "Goodbye!")
				a.engine.CloseSession(sess.ID, "exit")
				return
			}
			continue
		}

		resp, err := a.engine.Run(ctx, sess.ID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", resp.Content)
	}

	a.engine.CloseSession(sess.ID, "exit")
}

// openChatSession creates a fresh session, or resumes a persisted one when a
// --resume specifier is given.
func openChatSession(ctx context.Context, a *app, workspacePath, resume string) (*sessions.Session, error) {
	if resume == "" {
		return a.engine.CreateSession(ctx, workspacePath)
	}
	summaries, err := a.engine.ListPersisted(workspacePath)
	if err != nil {
		return nil, err
	}
	picked, err := store.PickSession(summaries, resume)
	if err != nil {
		return nil, err
	}
	return a.engine.Resume(ctx, picked.SessionID)
}

// handleSlash executes one slash command. It returns the session to continue
// on (/clear and /use swap it) and whether the REPL should exit.
func handleSlash(ctx context.Context, a *app, sess *sessions.Session, input string) (*sessions.Session, bool) {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		printChatHelp()

	case "/exit", "/quit":
		return sess, true

	case "/clear":
		next, err := a.engine.CreateSession(ctx, sess.Workspace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return sess, false
		}
		a.engine.CloseSession(sess.ID, "cleared")
		fmt.Fprintf(os.Stderr, "New session: %s\n\n", next.ID)
		return next, false

	case "/history":
		printHistory(sess, argCount(args, 10))

	case "/config":
		printConfig(a.cfg)

	case "/session":
		printSessionInfo(sess)

	case "/summary":
		printSummaries(sess, argCount(args, 3))

	case "/sessions":
		printSessions(a, sess.Workspace, argCount(args, 10))

	case "/use":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "usage: /use <id|index|latest>")
			return sess, false
		}
		next, err := switchSession(ctx, a, sess, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return sess, false
		}
		return next, false

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %s (try /help)\n", name)
	}
	return sess, false
}

func printChatHelp() {
	fmt.Fprint(os.Stderr, `Commands:
  /help           show this help
  /exit, /quit    end the session and leave
  /clear          start a fresh session in the same workspace
  /history [n]    show the last n messages (default 10)
  /summary [n]    show the last n compression summaries (default 3)
  /session        show the active session
  /sessions [n]   list persisted sessions for this workspace (default 10)
  /use <session>  switch to a persisted session: id, index or "latest"
  /config         show the effective configuration
`)
}

// switchSession resumes another persisted session, then closes the current
// one. Pending log writes are flushed first so the replay sees everything.
func switchSession(ctx context.Context, a *app, sess *sessions.Session, specifier string) (*sessions.Session, error) {
	a.sessionLog.Flush()
	summaries, err := a.engine.ListPersisted(sess.Workspace)
	if err != nil {
		return nil, err
	}
	picked, err := store.PickSession(summaries, specifier)
	if err != nil {
		return nil, err
	}
	if picked.SessionID == sess.ID {
		fmt.Fprintln(os.Stderr, "Already on that session")
		return sess, nil
	}
	next, err := a.engine.Resume(ctx, picked.SessionID)
	if err != nil {
		return nil, err
	}
	a.engine.CloseSession(sess.ID, "switched")
	fmt.Fprintf(os.Stderr, "Resumed session %s (%d messages)\n\n", next.ID, len(next.Messages))
	return next, nil
}

// printHistory renders the last n conversation messages, one line each.
func printHistory(sess *sessions.Session, n int) {
	msgs := sess.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	if len(msgs) == 0 {
		fmt.Fprintln(os.Stderr, "(no messages yet)")
		return
	}
	for _, m := range msgs {
		line := m.Content
		if line == "" && len(m.ToolCalls) > 0 {
			names := make([]string, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				names[i] = tc.Name
			}
			line = "[tool calls: " + strings.Join(names, ", ") + "]"
		}
		role := m.Role
		if m.Role == "tool" && m.ToolName != "" {
			role = "tool/" + m.ToolName
		}
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", role+":", oneLineCell(line, 96))
	}
}

// printSummaries shows the newest n compression blocks.
func printSummaries(sess *sessions.Session, n int) {
	blocks := sess.Summaries
	if len(blocks) == 0 {
		fmt.Fprintln(os.Stderr, "(no summaries yet)")
		return
	}
	if len(blocks) > n {
		blocks = blocks[len(blocks)-n:]
	}
	for _, b := range blocks {
		fmt.Fprintf(os.Stderr, "  [%d-%d] %s\n", b.From, b.To, oneLineCell(b.Content, 104))
	}
}

func printSessionInfo(sess *sessions.Session) {
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Session:", sess.ID)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Workspace:", sess.Workspace)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Model:", sess.Model)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Log:", sess.LogPath)
	fmt.Fprintf(os.Stderr, "  %-12s %d messages, %d summaries, %d compressed\n",
		"State:", len(sess.Messages), len(sess.Summaries), sess.CompressedCount)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Started:", sess.StartedAt.Local().Format(time.RFC1123))
}

// printSessions lists persisted sessions for the workspace, newest first.
func printSessions(a *app, workspacePath string, n int) {
	a.sessionLog.Flush()
	summaries, err := a.engine.ListPersisted(workspacePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stderr, "(no persisted sessions for this workspace)")
		return
	}
	if len(summaries) > n {
		summaries = summaries[:n]
	}
	for i, s := range summaries {
		updated := s.LastUpdatedAt
		if updated.IsZero() {
			updated = s.StartedAt
		}
		fmt.Fprintf(os.Stderr, "  %2d. %s  %s  %4d msgs\n",
			i+1, s.SessionID, updated.Local().Format("2006-01-02 15:04"), s.MessageCount)
	}
}

// argCount parses an optional trailing count argument.
func argCount(args []string, fallback int) int {
	if len(args) == 0 {
		return fallback
	}
	if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
		return n
	}
	return fallback
}

// oneLineCell collapses whitespace and truncates to width terminal cells, so
// wide runes cannot break the listing alignment.
func oneLineCell(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

// approveDestructive asks the user to confirm a destructive shell command.
// Without an interactive terminal (pipes, CI) the answer is always no.
func approveDestructive(command string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	approved := false
	err := huh.NewConfirm().
		Title("Destructive command").
		Description(command).
		Affirmative("Allow").
		Negative("Deny").
		Value(&approved).
		Run()
	if err != nil {
		return false
	}
	return approved
}
