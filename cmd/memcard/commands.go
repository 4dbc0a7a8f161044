package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oncetrange/memcard/internal/cards"
	"github.com/oncetrange/memcard/internal/importer"
	"github.com/oncetrange/memcard/internal/session"
	"github.com/oncetrange/memcard/internal/syncclient"
	"github.com/spf13/cobra"
)

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add FRONT BACK",
		Short: "Create a card that is due immediately",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				card, err := w.store.Create(ctx, args[0], args[1])
				if err != nil && !errors.Is(err, cards.ErrPersistence) {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", card.ID)
				return err
			})
		},
	}
}

func newEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID FRONT BACK",
		Short: "Replace the text of a card",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cards.NewCardID(args[0])
			if err != nil {
				return err
			}
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				card, err := w.store.Update(ctx, id, args[1], args[2])
				if err != nil && !errors.Is(err, cards.ErrPersistence) {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", card.ID)
				return err
			})
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a card permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cards.NewCardID(args[0])
			if err != nil {
				return err
			}
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				err := w.store.Delete(ctx, id)
				if err != nil && !errors.Is(err, cards.ErrPersistence) {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				return err
			})
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cards by next review date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				collection := w.store.All()
				if len(collection) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "empty, please create new cards")
					return nil
				}
				writeCardList(cmd.OutOrStdout(), collection, time.Now())
				return nil
			})
		},
	}
}

func newImportCommand() *cobra.Command {
	var (
		skipExisting bool
		noHeader     bool
		sheet        string
		frontColumn  string
		backColumn   string
	)
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Create cards from Markdown Q:/A: files or .xlsx workbooks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				cardImporter, err := importer.New(importer.Config{
					Store:        w.store,
					SkipExisting: skipExisting,
					Sheet: importer.SheetOptions{
						Sheet:       sheet,
						FrontColumn: frontColumn,
						BackColumn:  backColumn,
						SkipHeader:  !noHeader,
					},
					Logger: w.logger,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, path := range args {
					result, err := cardImporter.ImportFile(ctx, path)
					for _, rejected := range result.Rejected {
						fmt.Fprintf(out, "%s: skipped %s\n", path, rejected)
					}
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					fmt.Fprintf(out, "%s: %d created, %d already present, %d rejected\n",
						path, result.Created, result.Skipped, len(result.Rejected))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Skip cards whose front and back already exist")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "Treat the first spreadsheet row as a card")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Spreadsheet sheet name (defaults to the first sheet)")
	cmd.Flags().StringVar(&frontColumn, "front-column", "A", "Spreadsheet column holding the front")
	cmd.Flags().StringVar(&backColumn, "back-column", "B", "Spreadsheet column holding the back")
	return cmd
}

func newReviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review a shuffled batch of due cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				controller, err := session.NewController(session.ControllerConfig{
					Store:  w.store,
					Random: rand.New(rand.NewSource(time.Now().UnixNano())),
					Options: session.SelectOptions{
						Limit:           w.config.BatchLimit,
						MinimumRequired: w.config.MinimumDue,
					},
					Logger: w.logger,
				})
				if err != nil {
					return err
				}
				return runReview(ctx, controller, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func newSyncCommand() *cobra.Command {
	var register bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge local cards with the sync backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, w *workspace) error {
				if w.config.RemoteURL == "" || w.config.RemoteUsername == "" {
					return errors.New("sync needs remote.url and remote.username")
				}
				client, err := syncclient.NewClient(syncclient.Config{BaseURL: w.config.RemoteURL, Logger: w.logger})
				if err != nil {
					return err
				}
				if register {
					err := client.Register(ctx, w.config.RemoteUsername, w.config.RemotePassword)
					if err != nil && !errors.Is(err, syncclient.ErrUsernameTaken) {
						return err
					}
				}
				report, err := client.Sync(ctx, w.store, w.config.RemoteUsername, w.config.RemotePassword)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced: %d local, %d remote, %d after merge\n",
					report.Local, report.Remote, report.Merged)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&register, "register", false, "Create the remote account first if it does not exist")
	return cmd
}
