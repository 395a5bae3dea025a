package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AhmadRadith/jycc-sub001/internal/service"
)

var accountFlags service.AccountInput

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Create a login for one of the actor roles",
	RunE:  runCreateAccount,
}

func init() {
	f := createAccountCmd.Flags()
	f.StringVar(&accountFlags.Username, "username", "", "Login name (required)")
	f.StringVar(&accountFlags.Password, "password", "", "Password, at least 8 characters (required)")
	f.StringVar(&accountFlags.Role, "role", "", "pusat, daerah, sekolah, murid or mitra (required)")
	f.StringVar(&accountFlags.Name, "name", "", "Display name")
	f.StringVar(&accountFlags.SchoolID, "school-id", "", "School id")
	f.StringVar(&accountFlags.SchoolName, "school-name", "", "School name (required for sekolah)")
	f.StringVar(&accountFlags.District, "district", "", "District")

	_ = createAccountCmd.MarkFlagRequired("username")
	_ = createAccountCmd.MarkFlagRequired("password")
	_ = createAccountCmd.MarkFlagRequired("role")
}

func runCreateAccount(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.close()

	authService := service.NewAuthService(*e.cfg, service.AuthDependencies{AccountRepo: e.stores.Accounts})
	account, err := authService.CreateAccount(cmd.Context(), accountFlags)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", account.Username, account.Role, account.ID)
	return nil
}
