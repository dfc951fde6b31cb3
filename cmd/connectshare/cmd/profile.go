package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alinasr783/connect-share/baas"
	"github.com/alinasr783/connect-share/session"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and change account profiles",
}

var (
	profileEmail  string
	profileID     string
	profileStatus string
	profileType   string
	profileName   string
)

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change profile fields of an account",
	Long: `Changes profile fields of an account. Open portal browsers of that
account see the change through the realtime channel without signing in again.`,
	Example: `  connectshare profile set --email doc@example.com --status inactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (profileEmail == "") == (profileID == "") {
			return errors.New("exactly one of --email or --id is required")
		}
		update := baas.ProfileUpdate{
			FullName: profileName,
			UserType: session.UserType(profileType),
			Status:   session.AccountStatus(profileStatus),
		}
		if update == (baas.ProfileUpdate{}) {
			return errors.New("nothing to change: set --status, --type or --name")
		}

		backend, closeBackend, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer closeBackend()

		id := profileID
		if id == "" {
			id, err = backend.LookupUser(cmd.Context(), profileEmail)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", profileEmail, err)
			}
		}

		row, err := backend.UpdateProfile(cmd.Context(), id, update)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		logger.Info("profile updated", "user_id", row.ID, "status", string(row.Status), "user_type", string(row.UserType))
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s type=%s status=%s\n", row.ID, row.Email, row.UserType, row.Status)
		return nil
	},
}

func init() {
	f := profileSetCmd.Flags()
	f.StringVar(&profileEmail, "email", "", "Account email")
	f.StringVar(&profileID, "id", "", "Account id")
	f.StringVar(&profileStatus, "status", "", "Account status: active, inactive")
	f.StringVar(&profileType, "type", "", "Account type: provider, doctor, admin")
	f.StringVar(&profileName, "name", "", "Full name")

	profileCmd.AddCommand(profileSetCmd)
}
