package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/chatops/plugin/ai/memory"
	"github.com/hrygo/chatops/plugin/ai/session"
	"github.com/hrygo/chatops/plugin/ai/timeout"
)

const (
	commandReset = "/reset"
	commandExit  = "/exit"
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, instanceProfile, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Warn("failed to close session store", "error", err)
				}
			}()

			if sessionID == "" {
				sessionID = session.NewID()
			}
			return runChat(ctx, a, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume a session by id (a new session when empty)")
	return cmd
}

// runChat reads queries line by line until EOF or /exit.
// A failed turn is reported and the loop continues with memory unchanged.
func runChat(ctx context.Context, a *app, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Session %s. Type %s to clear the conversation, %s to quit.\n", sessionID, commandReset, commandExit)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case commandExit:
			return nil
		case commandReset:
			if err := a.sessions.Reset(ctx, sessionID); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		answer, err := ask(ctx, a, sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", answer)
	}
}

func ask(ctx context.Context, a *app, sessionID, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.TurnTimeout)
	defer cancel()

	var answer string
	err := a.sessions.Do(ctx, sessionID, func(ctx context.Context, mem *memory.ConversationMemory) error {
		result, err := a.orchestrator.Answer(ctx, mem, query)
		if err != nil {
			return err
		}
		answer = result.Answer
		return nil
	})
	return answer, err
}
