package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cordee/cordee-backend/internal/app"
)

var (
	migrateFirst bool

	rootCmd = &cobra.Command{
		Use:           "cordee",
		Short:         "Document versioning engine for the collaborative mountain guidebook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cordee: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&migrateFirst, "migrate", false, "run the schema migration before the command")
	rootCmd.AddCommand(
		migrateCmd,
		workerCmd,
		historyCmd,
		versionCmd,
		cacheKeyCmd,
		deleteCmd,
		reindexCmd,
	)
}

// withApp builds the application for one command and tears it down after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if migrateFirst {
		if err := a.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
