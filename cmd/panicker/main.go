package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/cliform"

	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:   "panicker",
		Short: "Shows what happens when the callback panics",
	}

	err := cliform.Run(cmd, func(context.Context, *cliform.Invocation) {
		panic("This is a panic message.")
	})
	if err != nil {
		slog.Error("panicker failed", "err", err)
		os.Exit(1)
	}
}
