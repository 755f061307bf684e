package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/toolchat/toolchat/config"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/adapters"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "List stored conversations, or print one (libsql backend only)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if a.db == nil {
			return &config.ConfigurationError{Key: "transcript.backend", Reason: "history needs the libsql backend"}
		}
		store := adapters.NewLibSQLConversationStore(a.db)
		if len(args) == 1 {
			return printConversation(cmd.Context(), store, cmd.OutOrStdout(), args[0], historyLimit)
		}
		return listConversations(cmd.Context(), store, cmd.OutOrStdout(), historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Conversations to list, or turns to print (0 for all)")
}

func listConversations(ctx context.Context, store *adapters.LibSQLConversationStore, out io.Writer, limit int) error {
	convs, err := store.Conversations(ctx, limit)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(out, "No stored conversations.")
		return nil
	}
	for _, c := range convs {
		fmt.Fprintf(out, "%s  %3d turns  %s .. %s\n", c.ID, c.Turns,
			c.StartedAt.Local().Format(time.DateTime), c.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func printConversation(ctx context.Context, store *adapters.LibSQLConversationStore, out io.Writer, id string, limit int) error {
	turns, err := store.LoadContext(ctx, id, limit)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("conversation %s not found", id)
	}
	for _, turn := range turns {
		fmt.Fprint(out, adapters.FormatTranscriptLine(turn))
	}
	return nil
}
