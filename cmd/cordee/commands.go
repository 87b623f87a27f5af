package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cordee/cordee-backend/internal/app"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
)

var (
	deleteUserID int64
	reindexBatch int

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the document tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app.App) error {
				if err := a.Migrate(); err != nil {
					return err
				}
				a.Log.Info("Migration complete")
				return nil
			})
		},
	}

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Drain the search retry queue and serve metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Services.RetryWorker == nil {
					return fmt.Errorf("search is not configured (WEAVIATE_URL)")
				}
				a.Start(ctx)
				return a.Services.RetryWorker.Run(ctx)
			})
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history <document_id> <lang>",
		Short: "List the versions of one locale of a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, lang, err := parseDocLang(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Services.History.GetHistory(ctx, id, lang)
				if err != nil {
					return err
				}
				return printJSON(cmd, view)
			})
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version <document_id> <lang> <version_id>",
		Short: "Show a document as recorded by one version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, lang, err := parseDocLang(args)
			if err != nil {
				return err
			}
			versionID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version id %q", args[2])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, err := a.Services.History.GetVersion(ctx, id, lang, versionID)
				if err != nil {
					return err
				}
				return printJSON(cmd, view)
			})
		},
	}

	cacheKeyCmd = &cobra.Command{
		Use:   "cache-key <document_id> <lang>",
		Short: "Print the cache key of a document locale",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, lang, err := parseDocLang(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				key, err := a.Services.History.GetCacheKey(ctx, id, lang)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
				return err
			})
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <document_id>",
		Short: "Delete a document, the documents redirecting to it and every row referencing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Documents.Delete(ctx, domainagg.DeleteDocumentInput{
					DocumentID: id,
					UserID:     deleteUserID,
				})
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					a.Log.Warn("Delete completed with warning", "document_id", id, "warning", w)
				}
				return printJSON(cmd, res)
			})
		},
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Push the current state of every document to the search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Services.Search == nil {
					return fmt.Errorf("search is not configured (WEAVIATE_URL)")
				}
				n, err := a.Services.Search.Reindex(ctx, reindexBatch)
				a.Log.Info("Reindex finished", "documents", n)
				return err
			})
		},
	}
)

func init() {
	deleteCmd.Flags().Int64Var(&deleteUserID, "user", 0, "id of the user performing the deletion")
	reindexCmd.Flags().IntVar(&reindexBatch, "batch", 500, "documents per index batch")
}

func parseDocLang(args []string) (int64, string, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid document id %q", args[0])
	}
	lang := args[1]
	if !documents.ValidLang(lang) {
		return 0, "", fmt.Errorf("unknown lang %q", lang)
	}
	return id, lang, nil
}
