package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipbridge/internal/storage"
	"github.com/berrythewa/clipbridge/pkg/format"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the payload cache",
	}
	cmd.AddCommand(newCacheListCmd(), newCacheClearCmd())
	return cmd
}

func openCache() (*storage.BoltStorage, error) {
	store, err := storage.Open(storage.Options{
		DBPath:    cfg.Storage.DBPath,
		KeepItems: cfg.Storage.KeepItems,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache (is the bridge running?): %w", err)
	}
	return store, nil
}

func newCacheListCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached payloads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List()
			if err != nil {
				return err
			}

			opts := format.DefaultOptions()
			if plain {
				opts = format.PlainOptions()
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.New(opts).FormatEntryList(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "no colors or icons")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cache cleared")
			return nil
		},
	}
}
