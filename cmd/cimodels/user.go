package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/models"
)

const userTokenEnv = "CIMODELS_USER_TOKEN"

var (
	userUsername string
	userToken    string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user or replace their SCM token",
	Long: `Create a user holding an SCM token. The token is sealed before it is
stored. It is read from --token or the ` + userTokenEnv + ` environment variable.`,
	RunE: runUserCreate,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "user name")
	userCreateCmd.Flags().StringVar(&userToken, "token", "", "SCM access token")
	_ = userCreateCmd.MarkFlagRequired("username")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	plain := userToken
	if plain == "" {
		plain = os.Getenv(userTokenEnv)
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.registry.UserFactory(nil)
	if err != nil {
		return err
	}

	user, err := users.GetByUsername(ctx, userUsername)
	if errors.Is(err, datastore.ErrNotFound) {
		user, err = users.Create(ctx, map[string]any{"username": userUsername})
	}

	if err != nil {
		return fmt.Errorf("loading user %s: %w", userUsername, err)
	}

	if plain != "" {
		if err := user.SealToken(plain); err != nil {
			return fmt.Errorf("sealing token: %w", err)
		}
	}

	if err := user.Update(ctx); err != nil {
		return fmt.Errorf("saving user %s: %w", userUsername, err)
	}

	log.WithField("user", user.Username()).Info("Saved user")

	fmt.Println(redacted(user))

	return nil
}

// redacted prints a user without their sealed token.
func redacted(u *models.User) string {
	return fmt.Sprintf(`{"id":%q,"username":%q}`, u.ID(), u.Username())
}
