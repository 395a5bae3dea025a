package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AhmadRadith/jycc-sub001/internal/service"
)

var tokenFlags struct {
	username string
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an existing account",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.username, "username", "", "Account login name (required)")
	_ = tokenCmd.MarkFlagRequired("username")
}

func runToken(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.close()

	authService := service.NewAuthService(*e.cfg, service.AuthDependencies{AccountRepo: e.stores.Accounts})
	account, err := authService.Account(cmd.Context(), tokenFlags.username)
	if err != nil {
		return err
	}
	issued, err := authService.IssueToken(account.Identity())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, issued.Token)
	fmt.Fprintf(out, "expires %s\n", issued.ExpiresAt.Format(time.RFC3339))
	return nil
}
