package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	demoCity      = "Hyderabad"
	demoLatitude  = 17.3850
	demoLongitude = 78.4867
	demoKBPrompt  = "Will Fanniemae aquire an ARM loan?"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the fixed weather and knowledge base queries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{needsLLM: true})
		if err != nil {
			return err
		}
		defer a.Close()
		return runDemo(cmd.Context(), a, cmd.OutOrStdout())
	},
}

func runDemo(ctx context.Context, a *app, out io.Writer) error {
	queries := []struct {
		title  string
		prompt string
	}{
		{"Weather Query", weatherPrompt(demoCity, demoLatitude, demoLongitude)},
		{"Knowledge Base Query", demoKBPrompt},
	}
	for _, q := range queries {
		fmt.Fprintf(out, "\n%s:\nPrompt: %s\n", q.title, q.prompt)
		resp, err := a.newSession().Send(ctx, q.prompt)
		if err != nil {
			fmt.Fprintln(out, friendlyError(err))
			continue
		}
		printReply(ctx, out, "Response", resp.Text)
	}
	return nil
}
