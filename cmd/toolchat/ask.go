package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a single message and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{persona: true, needsLLM: true})
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.newSession().Send(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printReply(cmd.Context(), cmd.OutOrStdout(), "Response", resp.Text)
		return nil
	},
}
