// Command schoolair runs the Barcelona school air-quality exposure pipeline:
// it reshapes the municipal wide-format hourly export into long readings,
// matches every school to its nearest station, aggregates station days, and
// emits quality-controlled per-school daily exposure artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schoolair",
	Short: "School air-quality exposure pipeline",
	Long: `schoolair turns the municipal hourly air-quality export and the school
registry into per-school daily pollutant exposure estimates.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
