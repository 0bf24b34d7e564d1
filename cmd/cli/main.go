// Admin CLI for operational tasks that have no place on the HTTP
// surface: exporting a user's transactions to Notion and inspecting
// per-user record counts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iam-hbk/accounting-on-the-go/internal/archive"
	"github.com/iam-hbk/accounting-on-the-go/internal/config"
	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/export"
	"github.com/iam-hbk/accounting-on-the-go/internal/logger"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
	"github.com/iam-hbk/accounting-on-the-go/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "cli",
		Short:         "Admin tooling for accounting-on-the-go",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExportNotionCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newArchivesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newExportNotionCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "export-notion",
		Short: "Export a user's transactions to a Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New()
			cfg, st, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
				return fmt.Errorf("notion token and database id must be configured")
			}

			txs, err := allTransactions(cmd.Context(), st, userID)
			if err != nil {
				return err
			}
			categories, err := st.ListCategoriesByUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			names := make(map[string]string, len(categories))
			for _, c := range categories {
				names[c.ID] = c.Name
			}

			exporter := export.NewNotionExporter(cfg.Notion.Token, cfg.Notion.DatabaseID, log)
			created, err := exporter.ExportTransactions(cmd.Context(), txs, names)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d transaction(s)\n", created)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id whose transactions to export (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record counts for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			txCount, err := st.CountTransactions(cmd.Context(), store.TransactionFilter{UserID: userID})
			if err != nil {
				return err
			}
			uncategorized, err := st.CountTransactions(cmd.Context(), store.TransactionFilter{UserID: userID, Uncategorized: true})
			if err != nil {
				return err
			}
			categories, err := st.ListCategoriesByUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			statements, err := st.ListStatementsByUser(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Printf("Transactions:   %d (%d uncategorized)\n", txCount, uncategorized)
			fmt.Printf("Categories:     %d\n", len(categories))
			fmt.Printf("Statements:     %d\n", len(statements))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id to inspect (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newArchivesCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "archives",
		Short: "List archived statement files in the GCS bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Archive.Bucket == "" {
				return fmt.Errorf("archive bucket must be configured")
			}

			names, err := archive.NewGCS(cfg.Archive.Bucket).List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			fmt.Printf("%d object(s)\n", len(names))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "statements/", "Object name prefix to list under")
	return cmd
}

func connect(ctx context.Context) (*config.Config, *postgres.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database url must be configured")
	}
	st, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

// allTransactions walks every page of the user's transactions.
func allTransactions(ctx context.Context, st store.Store, userID string) ([]*domain.Transaction, error) {
	var (
		all    []*domain.Transaction
		cursor string
	)
	for {
		page, err := st.ListTransactions(ctx, store.TransactionFilter{UserID: userID},
			store.SortByDate, store.SortAsc, store.PageOptions{NumItems: 200, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.IsDone {
			return all, nil
		}
		cursor = page.ContinueCursor
	}
}
