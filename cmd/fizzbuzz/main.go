package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/cliform"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "fizzbuzz",
	Version: "1.2.3",
	Short:   "An example implementation of FizzBuzz for cliform",
	Long: `Fizz buzz is a group word game for children to teach them about division. ` +
		`Players take turns to count incrementally, replacing any number divisible by three ` +
		`with the word "fizz", and any number divisible by five with the word "buzz". ` +
		`This program plays the game on its own, printing out every number and playing along to the rules.`,
	Annotations: map[string]string{
		cliform.AnnotationAuthor: "CZERTAINLY",
	},
}

func main() {
	rootCmd.Flags().UintP("fizz", "f", 3, "Number to divide by for fizz")
	rootCmd.Flags().UintP("buzz", "b", 5, "Number to divide by for buzz")
	rootCmd.Flags().UintP("number", "n", 100, "Number to count to")
	rootCmd.Flags().DurationP("gap", "g", 100*time.Millisecond, "Gap between printing numbers")
	rootCmd.Flags().BoolP("verbose", "v", false, "Print all lines with their number")

	err := cliform.RunSetup(rootCmd, cliform.Options{WriteDefaultConfig: true}, run)
	if err != nil {
		slog.Error("fizzbuzz failed", "err", err)
		os.Exit(1)
	}
}

type game struct {
	fizz    uint
	buzz    uint
	number  uint
	gap     time.Duration
	verbose bool
}

func run(ctx context.Context, inv *cliform.Invocation) {
	var g game
	var err error
	if g.fizz, err = inv.Uint("fizz"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if g.buzz, err = inv.Uint("buzz"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if g.number, err = inv.Uint("number"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if g.gap, err = inv.Duration("gap"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if g.verbose, err = inv.Bool("verbose"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if err := g.play(ctx, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// play prints one line per number, waiting gap after each. It stops early
// when ctx is cancelled.
func (g game) play(ctx context.Context, w io.Writer) error {
	if g.fizz == 0 || g.buzz == 0 {
		return fmt.Errorf("fizz and buzz must be positive, got %d and %d", g.fizz, g.buzz)
	}
	for num := uint(1); num <= g.number; num++ {
		if _, err := fmt.Fprintln(w, g.line(num)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped at %d: %w", num, ctx.Err())
		case <-time.After(g.gap):
		}
	}
	return nil
}

func (g game) line(num uint) string {
	var sb strings.Builder
	if g.verbose {
		sb.WriteString(strconv.FormatUint(uint64(num), 10))
		sb.WriteString(": ")
	}
	switch {
	case num%g.fizz == 0 && num%g.buzz == 0:
		sb.WriteString("Fizz Buzz")
	case num%g.fizz == 0:
		sb.WriteString("Fizz")
	case num%g.buzz == 0:
		sb.WriteString("Buzz")
	default:
		sb.WriteString(strconv.FormatUint(uint64(num), 10))
	}
	return sb.String()
}
