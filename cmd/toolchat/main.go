// Command toolchat is a tool-calling chat client for Gemini and
// OpenAI-compatible models.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/toolchat/toolchat"
)

const version = "0.1.0"

var (
	configPath  string
	logLevel    string
	logFormat   string
	streamDelay time.Duration
)

var rootCmd = &cobra.Command{
	Use:           internal.DefaultAppName,
	Short:         "Chat with an LLM that can call local tools",
	Long:          "toolchat drives a single-round tool-calling loop against Gemini or an OpenAI-compatible API, with get_weather and search_kb builtin tools.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search ./config.yaml, ../config.yaml, etc/toolchat, user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override app.log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override app.log_format (console, json)")
	rootCmd.PersistentFlags().DurationVar(&streamDelay, "stream-delay", 0, "Print replies one character at a time with this delay")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(weatherCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, friendlyError(err))
		os.Exit(1)
	}
}
