package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/toolchat/toolchat/generation"
)

var (
	chatResume  string
	chatHistory int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat (type 'exit' or 'quit' to leave)",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatResume, "resume", "", "Continue a conversation stored by the libsql transcript backend")
	chatCmd.Flags().IntVar(&chatHistory, "history", 0, "With --resume, load only the last N turns (0 loads all)")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{persona: true, needsLLM: true})
	if err != nil {
		return err
	}
	defer a.Close()

	session := a.newSession()
	if chatResume != "" {
		session, err = generation.ResumeSession(ctx, a.orchestrator, chatResume, chatHistory, a.logger)
		if err != nil {
			return err
		}
	}

	return chatLoop(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatLoop reads one message per line until EOF or an exit command. Step
// failures are reported and the loop continues with the next message.
func chatLoop(ctx context.Context, session generation.Generator, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Chat with your AI assistant! Type 'exit' to quit.")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye!")
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		resp, err := session.Send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			fmt.Fprintf(out, "%s\n\n", friendlyError(err))
			continue
		}
		printReply(ctx, out, "Assistant", resp.Text)
	}
}
