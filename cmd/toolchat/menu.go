package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"

	"github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/tools"
)

const (
	menuWeather = "Check weather for a city"
	menuKB      = "Search knowledge base"
	menuExit    = "Exit"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive menu: weather for a city or a knowledge base question",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{needsLLM: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ui := &input.UI{Writer: cmd.OutOrStdout(), Reader: cmd.InOrStdin()}
		return runMenu(cmd.Context(), a, ui, cmd.OutOrStdout())
	},
}

var weatherCmd = &cobra.Command{
	Use:   "weather <city>",
	Short: "Ask for the current weather in a city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{needsLLM: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ui := &input.UI{Writer: cmd.OutOrStdout(), Reader: cmd.InOrStdin()}
		return askWeather(cmd.Context(), a, ui, cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

var kbCmd = &cobra.Command{
	Use:   "kb <question>",
	Short: "Ask a question answered from the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{needsLLM: true})
		if err != nil {
			return err
		}
		defer a.Close()
		return askKnowledgeBase(cmd.Context(), a, cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

func runMenu(ctx context.Context, a *app, ui *input.UI, out io.Writer) error {
	for {
		choice, err := ui.Select("=== AI Assistant ===", []string{menuWeather, menuKB, menuExit}, &input.Options{
			Required: true,
			Loop:     true,
		})
		if err != nil {
			return promptError(err, out)
		}

		switch choice {
		case menuWeather:
			city, err := ui.Ask("Enter city name", &input.Options{Required: true, Loop: true})
			if err != nil {
				return promptError(err, out)
			}
			err = askWeather(ctx, a, ui, out, city)
			reportStepError(out, err)
		case menuKB:
			query, err := ui.Ask("Enter your question", &input.Options{Required: true, Loop: true})
			if err != nil {
				return promptError(err, out)
			}
			reportStepError(out, askKnowledgeBase(ctx, a, out, query))
		case menuExit:
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
	}
}

// askWeather geocodes city, lets the user pick when the name is ambiguous,
// then asks the model about the chosen coordinates.
func askWeather(ctx context.Context, a *app, ui *input.UI, out io.Writer, city string) error {
	fmt.Fprintln(out, "\nFetching weather information...")

	locations, err := a.geocoder.Search(ctx, city)
	if err != nil {
		return fmt.Errorf("error fetching city coordinates: %w", err)
	}
	loc, err := chooseLocation(ui, locations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nUsing location: %s\n", loc.DisplayName)

	resp, err := a.newSession().Send(ctx, weatherPrompt(city, loc.Latitude, loc.Longitude))
	if err != nil {
		return err
	}
	printReply(ctx, out, "Response", resp.Text)
	return nil
}

func askKnowledgeBase(ctx context.Context, a *app, out io.Writer, question string) error {
	fmt.Fprintln(out, "\nSearching knowledge base...")
	resp, err := a.newSession().Send(ctx, question)
	if err != nil {
		return err
	}
	printReply(ctx, out, "Response", resp.Text)
	return nil
}

func weatherPrompt(city string, latitude, longitude float64) string {
	return fmt.Sprintf("What is the weather like in %s whose latitude is %s and longitude is %s?",
		city, strconv.FormatFloat(latitude, 'f', -1, 64), strconv.FormatFloat(longitude, 'f', -1, 64))
}

// chooseLocation returns the only match, or asks the user to pick one.
func chooseLocation(ui *input.UI, locations []tools.Location) (tools.Location, error) {
	switch len(locations) {
	case 0:
		return tools.Location{}, tools.ErrNoLocations
	case 1:
		return locations[0], nil
	}

	labels := make([]string, len(locations))
	for i, loc := range locations {
		labels[i] = fmt.Sprintf("%s (%.4f, %.4f)", loc.DisplayName, loc.Latitude, loc.Longitude)
	}
	picked, err := ui.Select("Multiple locations found. Select a location", labels, &input.Options{
		Required: true,
		Loop:     true,
	})
	if err != nil {
		return tools.Location{}, err
	}
	for i, label := range labels {
		if label == picked {
			return locations[i], nil
		}
	}
	return tools.Location{}, fmt.Errorf("unknown selection %q", picked)
}

func promptError(err error, out io.Writer) error {
	if errors.Is(err, input.ErrInterrupted) {
		fmt.Fprintln(out, "\nGoodbye!")
		return nil
	}
	return err
}

func reportStepError(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(out, "\n%s\n", friendlyError(err))
	}
}
