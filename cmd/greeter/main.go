package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/cliform"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "greeter",
	Version: "1.2.3",
	Short:   "A builder example for cliform",
	Annotations: map[string]string{
		cliform.AnnotationAuthor: "CZERTAINLY",
	},
}

func main() {
	rootCmd.Flags().String("name", "Joe", "Your name")
	rootCmd.Flags().Bool("goodbye", false, "Say goodbye")

	opts := cliform.Options{
		Setup: func(m *cliform.Model) {
			m.Styles.Title = m.Styles.Title.
				Foreground(lipgloss.Color("#FF79C6")).
				Underline(true)
			// enter runs the form as well
			m.KeyMap.Run = key.NewBinding(
				key.WithKeys("ctrl+r", "enter"),
				key.WithHelp("enter", "run"),
			)
		},
	}
	if err := cliform.RunSetup(rootCmd, opts, greet); err != nil {
		slog.Error("greeter failed", "err", err)
		os.Exit(1)
	}
}

func greet(_ context.Context, inv *cliform.Invocation) {
	name, err := inv.String("name")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Printf("Hello, %s!\n", name)

	if goodbye, _ := inv.Bool("goodbye"); goodbye {
		fmt.Println("Goodbye!")
	}
}
