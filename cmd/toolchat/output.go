package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"
	"github.com/ZanzyTHEbar/toolchat/toolchat/config"
	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness"
)

const defaultPersona = internal.DefaultSystemPersona

var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
}

// friendlyError turns the failures a user can act on into short advice.
func friendlyError(err error) string {
	var gwErr *harness.GatewayError
	var cfgErr *config.ConfigurationError
	var timeoutErr *harness.TimeoutError
	switch {
	case errors.As(err, &gwErr) && gwErr.IsRateLimited():
		return "You're sending requests too quickly. Try again in a moment."
	case errors.As(err, &gwErr) && gwErr.IsAuth():
		return "Missing or invalid API key. Please check your environment settings."
	case errors.As(err, &cfgErr) && cfgErr.Key == "llm.api_key":
		return "Error: " + cfgErr.Reason + ". Set GOOGLE_API_KEY (or OPENAI_API_KEY for openai) in the environment or a .env file."
	case errors.As(err, &timeoutErr):
		return "The request timed out: " + timeoutErr.Error()
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return "Error: " + err.Error()
	}
}

// typewrite prints text one rune at a time. A zero delay prints it at once.
func typewrite(ctx context.Context, w io.Writer, text string, delay time.Duration) {
	if delay <= 0 {
		fmt.Fprint(w, text)
		return
	}
	for _, r := range text {
		fmt.Fprint(w, string(r))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func printReply(ctx context.Context, w io.Writer, label, text string) {
	if strings.TrimSpace(text) == "" {
		text = "(no answer)"
	}
	fmt.Fprintf(w, "\n%s: ", label)
	typewrite(ctx, w, text, streamDelay)
	fmt.Fprint(w, "\n\n")
}
