// Package chatcmder provides the chat command, a terminal client for a running
// chatrelay server.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

var chatFlags = config.FlagSet{
	config.FlagTarget: {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "Chatrelay server URL"},
}

type chatCommander struct {
	target     string
	session    string
	newSession bool
	forget     bool
	render     bool
	configDir  string
	debug      bool

	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool

	client *http.Client
	ddm    *dotdir.Manager
	logger *slog.Logger

	// stream is opened on demand when the server runs in broadcast mode.
	stream *eventStream
}

const chatLongDesc string = `Chat with a running chatrelay server from the terminal.

Each line read from stdin is sent as one message. The answer is printed as
it streams, whether the server delivers it in the response body (direct
mode) or on the session's event stream (broadcast mode).

The session ID is remembered in the .chatrelay/ directory and reused on the
next run against the same server. Use --new to start a fresh session, or
--forget to drop the remembered one without chatting.

Examples:
  chatrelay chat
  chatrelay chat --target http://relay.internal:8080
  echo "What is kanban replenishment?" | chatrelay chat --render`

const chatShortDesc string = "Chat with a running chatrelay server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, chatFlags, []string{config.FlagTarget})
			cmder.target = strings.TrimRight(v.GetString("client.target"), "/")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.interactive = isTerminal(cmder.in)

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagTarget, &cmder.target)
	cmd.Flags().StringVarP(&cmder.session, "session", "s", "", "Session ID to use (default: remembered or newly minted)")
	cmd.Flags().BoolVarP(&cmder.newSession, "new", "n", false, "Start a new session instead of resuming the remembered one")
	cmd.Flags().BoolVar(&cmder.forget, "forget", false, "Forget the remembered session and exit")
	cmd.Flags().BoolVarP(&cmder.render, "render", "r", false, "Render each complete answer as markdown")

	return cmd
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
		logger.WithComponent("chat"),
	)
	c.client = &http.Client{}
	c.ddm = dotdir.NewManager()
	defer c.closeStream()

	if c.forget {
		if err := c.ddm.ClearSession(c.configDir); err != nil {
			return fmt.Errorf("forgetting session: %w", err)
		}
		fmt.Fprintf(c.out, "  %s Forgot remembered session\n", cliui.SuccessMark)
		return nil
	}

	session, resumed, err := c.resolveSession(ctx)
	if err != nil {
		return err
	}
	c.session = session

	if c.interactive {
		state := "New session"
		if resumed {
			state = "Resuming session"
		}
		fmt.Fprintf(c.out, "\n  %s %s %s\n", cliui.SuccessMark, state, cliui.NameStyle.Render(session))
		fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Server:"), cliui.DimStyle.Render(c.target))
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
	}

	scanner := bufio.NewScanner(c.in)
	for {
		if c.interactive {
			fmt.Fprint(c.out, userPrompt)
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.turn(ctx, input); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

// resolveSession picks the session ID: the --session flag, then the
// remembered session for this server unless --new, then a fresh ID from the
// server. The chosen ID is remembered for next time.
func (c *chatCommander) resolveSession(ctx context.Context) (string, bool, error) {
	session := c.session
	resumed := false

	if session == "" && !c.newSession {
		state, err := c.ddm.LoadSession(c.configDir)
		if err != nil {
			c.logger.Warn("ignoring unreadable session state", "error", err)
		} else if state != nil && state.Target == c.target && state.SessionID != "" {
			session = state.SessionID
			resumed = true
		}
	}

	if session == "" {
		var err error
		session, err = c.newSessionID(ctx)
		if err != nil {
			return "", false, err
		}
	}

	err := c.ddm.SaveSession(&dotdir.SessionState{
		SessionID: session,
		Target:    c.target,
		UpdatedAt: time.Now().UTC(),
	}, c.configDir)
	if err != nil {
		c.logger.Warn("could not remember session", "error", err)
	}

	return session, resumed, nil
}

// turn sends one message and prints the answer.
func (c *chatCommander) turn(ctx context.Context, text string) error {
	resp, err := c.postMessage(ctx, text)
	if err != nil {
		return err
	}

	// Broadcast mode refuses messages until the session is subscribed.
	if resp.StatusCode == http.StatusServiceUnavailable && !c.stream.alive() {
		resp.Body.Close()
		c.closeStream()
		c.logger.Debug("no event stream for session, subscribing", "session", c.session)

		if c.stream, err = openEventStream(ctx, c.client, c.target, c.session, c.logger); err != nil {
			return err
		}
		if resp, err = c.postMessage(ctx, text); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	var answer io.ReadCloser
	switch resp.StatusCode {
	case http.StatusOK:
		answer = &fragmentReader{body: resp.Body}
	case http.StatusAccepted:
		if !c.stream.alive() {
			return errNoStream
		}
		answer = c.stream.answer(ctx)
	default:
		return statusError(resp)
	}
	defer answer.Close()

	return c.printAnswer(answer)
}

// printAnswer copies the answer to the output as it arrives, or renders it as
// markdown once complete.
func (c *chatCommander) printAnswer(answer io.Reader) error {
	if c.interactive {
		fmt.Fprint(c.out, assistantPrompt)
	}

	if c.render {
		raw, err := io.ReadAll(answer)
		if err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}
		rendered, err := cliui.RenderMarkdown(string(raw))
		if err != nil {
			c.logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprint(c.out, rendered)
		return nil
	}

	if _, err := io.Copy(c.out, answer); err != nil {
		return fmt.Errorf("reading answer: %w", err)
	}
	fmt.Fprintln(c.out)
	if c.interactive {
		fmt.Fprintln(c.out)
	}

	return nil
}

func (c *chatCommander) closeStream() {
	if c.stream != nil {
		c.stream.Close()
	}
}
