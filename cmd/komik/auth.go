package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"komikverse/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Sign in, sign up and manage the stored session."}
	cmd.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newGoogleCmd(),
		newResetCmd(),
		&cobra.Command{
			Use:   "logout",
			Short: "Revoke the session and forget the stored token.",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := appFrom(cmd).Session.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("✅ logged out")
				return nil
			},
		},
		&cobra.Command{
			Use:   "me",
			Short: "Show the signed-in user.",
			RunE: func(cmd *cobra.Command, _ []string) error {
				u := appFrom(cmd).Session.User()
				if u == nil {
					return errNotLoggedIn
				}
				return printJSON(u)
			},
		},
	)
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := appFrom(cmd).Session.LoginWithEmail(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("✅ logged in as %s\n", u.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := appFrom(cmd).Session.RegisterWithEmail(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			fmt.Printf("✅ registered and logged in as %s\n", u.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newGoogleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "google",
		Short: "Sign in with Google through the browser.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompt := func(startURL string) (string, error) {
				fmt.Println("Open this URL in a browser and finish signing in:")
				fmt.Println("  " + startURL)
				fmt.Print("Paste the token shown on the callback page (empty to cancel): ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return "", nil
				}
				return strings.TrimSpace(line), nil
			}
			u, err := appFrom(cmd).Session.LoginWithGoogle(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			fmt.Printf("✅ logged in as %s\n", u.DisplayName)
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Send a password reset link.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := appFrom(cmd).Session.ResetPassword(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Println(auth.ResetSentMessage)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
