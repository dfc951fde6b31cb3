package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alinasr783/connect-share/baas"
	"github.com/alinasr783/connect-share/session"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var (
	signupEmail    string
	signupPassword string
	signupName     string
	signupType     string
)

var userSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Creates an account. Unlike the portal's sign-up form this can create
administrators.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closeBackend, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer closeBackend()

		client := backend.NewClient()
		defer client.Close()

		s, err := client.SignUp(cmd.Context(), baas.SignUpParams{
			Email:    signupEmail,
			Password: signupPassword,
			FullName: signupName,
			UserType: session.UserType(signupType),
		})
		if err != nil {
			return fmt.Errorf("sign up: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", s.User.UserType(), s.User.Email, s.User.ID)
		return nil
	},
}

func init() {
	f := userSignupCmd.Flags()
	f.StringVar(&signupEmail, "email", "", "Account email")
	f.StringVar(&signupPassword, "password", "", "Account password")
	f.StringVar(&signupName, "name", "", "Full name")
	f.StringVar(&signupType, "type", string(session.UserTypeProvider), "Account type: provider, doctor, admin")
	_ = userSignupCmd.MarkFlagRequired("email")
	_ = userSignupCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userSignupCmd)
}
