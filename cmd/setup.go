package main

import (
	"civic/internal/config"
	"civic/internal/user"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// setupCommand constructs the 'setup' subcommand. It makes sure the default
// municipality exists and registers a validated administrator account.
// Running it twice is harmless: an existing administrator is kept as is.
func setupCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Creates the default municipality and the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")

			strg, closeStorage := getStorage(ctx, cfg)
			defer closeStorage()
			deps := newDeps(cfg, strg)

			municipality, err := deps.Municipalities.GetOrCreateDefault(ctx, cfg.Community.DefaultMunicipality)
			if err != nil {
				logger.Error(ctx, "could not create default municipality", zap.Error(err))

				return err
			}
			logger.Info(ctx, "default municipality ready",
				zap.String("name", municipality.Municipality), zap.Stringer("id", municipality.ID))

			admin, err := deps.Users.Register(ctx, user.RegisterInfo{
				FirstName: firstName,
				LastName:  lastName,
				Email:     email,
				Password:  password,
			}, true, true)
			if errors.Is(err, serrors.ErrConflict) {
				logger.Info(ctx, "administrator already exists", zap.String("email", email))

				return nil
			}
			if err != nil {
				logger.Error(ctx, "could not register administrator", zap.Error(err))

				return err
			}

			logger.Info(ctx, "administrator registered", zap.String("email", admin.Email))

			return nil
		},
	}

	cmd.Flags().String("email", "", "Administrator email")
	cmd.Flags().String("password", "", "Administrator password")
	cmd.Flags().String("first-name", "admin", "Administrator first name")
	cmd.Flags().String("last-name", "admin", "Administrator last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
