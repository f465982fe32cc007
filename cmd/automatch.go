package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// autoMatchCommands runs one provider or bank auto-match for a tenant and
// prints the result as JSON.
func autoMatchCommands(r *reconInstance) *cobra.Command {
	var tenantID, matchedBy string
	var bank bool

	cmd := &cobra.Command{
		Use:   "automatch",
		Short: "auto-match provider settlement reports, or bank transactions with --bank, for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}

			run := r.recon.RunProviderAutoMatch
			if bank {
				run = r.recon.RunBankAutoMatch
			}
			result, err := run(context.Background(), tenantID, matchedBy)
			if err != nil && result == nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(result); encErr != nil {
				return encErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to auto-match")
	cmd.Flags().StringVar(&matchedBy, "by", "", "recorded as matched_by on every committed match")
	cmd.Flags().BoolVar(&bank, "bank", false, "run the bank pass over unmatched bank transactions")
	return cmd
}
