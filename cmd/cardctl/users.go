package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/padraicbc/mtgvault/handlers"
	"github.com/padraicbc/mtgvault/models"
)

var (
	flagUsername string
	flagPassword string
)

var addUserCmd = &cobra.Command{
	Use:   "adduser",
	Short: "Create or update an API user",
	Long: `Adduser stores a bcrypt hash of the password, replacing the password of an
existing user with the same name.

Example:
  cardctl adduser --username admin --password s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagUsername == "" || flagPassword == "" {
			return errors.New("both --username and --password are required")
		}
		hash, err := handlers.HashPasswordForUser(flagUsername, flagPassword)
		if err != nil {
			return err
		}

		user := &models.User{Username: flagUsername, Password: hash}
		_, err = bdb.NewInsert().Model(user).
			On("CONFLICT (username) DO UPDATE").
			Set("password = EXCLUDED.password").
			Exec(cmd.Context())
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "user %q saved\n", flagUsername)
		return nil
	},
}

func init() {
	addUserCmd.Flags().StringVar(&flagUsername, "username", "", "username (required)")
	addUserCmd.Flags().StringVar(&flagPassword, "password", "", "plain-text password (required)")
}
