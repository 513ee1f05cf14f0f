package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	passkeyOrgID  string
	passkeyUserID string
)

var passkeyCmd = &cobra.Command{
	Use:   "passkey",
	Short: "Passkey administration",
}

var passkeyRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Start a passkey registration for a user",
	Long: `Requests a registration code for the user and starts a passkey registration in ZITADEL.
Prints the passkey id and the WebAuthn creation options exactly as ZITADEL returned them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := buildServices(cfg, logger)
		if err != nil {
			return err
		}

		reg, err := svcs.passkeys.BeginRegistration(cmd.Context(), passkeyOrgID, passkeyUserID)
		if err != nil {
			return fmt.Errorf("failed to start passkey registration: %w", err)
		}

		out, err := json.Marshal(reg)
		if err != nil {
			return fmt.Errorf("failed to encode registration: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	passkeyRegisterCmd.Flags().StringVar(&passkeyOrgID, "org-id", "", "Organization of the user (required)")
	passkeyRegisterCmd.Flags().StringVar(&passkeyUserID, "user-id", "", "User to register the passkey for (required)")
	_ = passkeyRegisterCmd.MarkFlagRequired("org-id")
	_ = passkeyRegisterCmd.MarkFlagRequired("user-id")

	passkeyCmd.AddCommand(passkeyRegisterCmd)
	rootCmd.AddCommand(passkeyCmd)
}
