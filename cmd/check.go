package main

import (
	"civic/internal/config"
	"civic/internal/mailinglist"
	"civic/pkg/logger"
	"civic/pkg/storage"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// checkCommand constructs the 'check' subcommand comparing every mailing list
// with the users following its tag. It fails when the lists drifted, unless
// --repair is given, in which case the drift is fixed in the same transaction.
func checkCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verifies mailing lists against user interests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			repair, _ := cmd.Flags().GetBool("repair")

			strg, closeStorage := getStorage(ctx, cfg)
			defer closeStorage()

			var drifts []mailinglist.Drift
			err := strg.WithTx(ctx, func(tx storage.AllStorage) error {
				var err error
				if drifts, err = mailinglist.Verify(ctx, tx); err != nil || !repair {
					return err
				}

				return mailinglist.Repair(ctx, tx, drifts)
			})
			if err != nil {
				logger.Error(ctx, "could not verify mailing lists", zap.Error(err))

				return err
			}

			for _, drift := range drifts {
				logger.Warn(ctx, "mailing list drift",
					zap.Stringer("tag", drift.Tag),
					zap.Bool("missingList", drift.MissingList),
					zap.Bool("orphanList", drift.OrphanList),
					zap.Stringers("unsubscribed", drift.Unsubscribed),
					zap.Stringers("stale", drift.Stale),
				)
			}

			if len(drifts) == 0 {
				logger.Info(ctx, "mailing lists are consistent")

				return nil
			}
			if repair {
				logger.Info(ctx, "mailing lists repaired", zap.Int("drifts", len(drifts)))

				return nil
			}

			return fmt.Errorf("%d mailing lists drifted", len(drifts))
		},
	}

	cmd.Flags().Bool("repair", false, "Fixes the drifted mailing lists")

	return cmd
}
