package convcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geniusai/genius/pkg/storage"
	"github.com/geniusai/genius/pkg/storage/sqlite"
)

const mergeLongDesc string = `Merge one or more source SQLite databases into the target.

Conversations missing from the target are copied. When both sides hold
the same conversation, the most recently updated copy wins.

Examples:
  genius conversations merge laptop.db phone.db
  genius conversations merge --sqlite /tmp/merged.db ~/alice/genius.db ~/bob/genius.db`

const mergeShortDesc string = "Merge conversation databases"

func newMergeCmd(cmder *conversationsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.merge(cmd.Context(), cmd, args)
		},
	}
}

func (c *conversationsCommander) merge(ctx context.Context, cmd *cobra.Command, sources []string) error {
	target, targetPath, err := c.open()
	if err != nil {
		return err
	}
	defer target.Close()

	var totalNew, totalUpdated, totalKept int

	for _, srcPath := range sources {
		source, err := sqlite.NewDriver(srcPath)
		if err != nil {
			return fmt.Errorf("could not open source database %s: %w", srcPath, err)
		}

		convs, err := source.List(ctx)
		source.Close()
		if err != nil {
			return fmt.Errorf("could not list conversations from %s: %w", srcPath, err)
		}

		var srcNew, srcUpdated, srcKept int
		for _, conv := range convs {
			existing, err := target.Get(ctx, conv.ID)
			var notFound storage.ErrNotFound
			switch {
			case errors.As(err, &notFound):
				if err := target.Create(ctx, conv); err != nil {
					return fmt.Errorf("could not copy conversation %s: %w", conv.ID, err)
				}
				srcNew++
			case err != nil:
				return fmt.Errorf("could not read conversation %s: %w", conv.ID, err)
			case conv.UpdatedAt.After(existing.UpdatedAt):
				if err := target.Update(ctx, conv); err != nil {
					return fmt.Errorf("could not update conversation %s: %w", conv.ID, err)
				}
				srcUpdated++
			default:
				srcKept++
			}
		}

		totalNew += srcNew
		totalUpdated += srcUpdated
		totalKept += srcKept

		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d new, %d updated, %d already current\n", srcPath, srcNew, srcUpdated, srcKept)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d new and %d updated conversations from %d sources (%d already current) into %s\n",
		totalNew, totalUpdated, len(sources), totalKept, targetPath)

	return nil
}
