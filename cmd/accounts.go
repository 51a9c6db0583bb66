package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var accountsCreditCount int

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect and adjust usage accounts",
}

var accountsShowCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "Print an account's plan, quota, and credit balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		gate, _, err := initGate(st)
		if err != nil {
			return err
		}

		acct, err := gate.Account(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(acct)
	},
}

var accountsCreditCmd = &cobra.Command{
	Use:   "credit <account-id>",
	Short: "Grant prepaid enrichment credits to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if accountsCreditCount <= 0 {
			return eris.New("credit count must be positive")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		gate, _, err := initGate(st)
		if err != nil {
			return err
		}

		// Ensure the account exists before crediting it.
		if _, err := gate.Account(ctx, args[0]); err != nil {
			return err
		}
		if err := st.AddCredits(ctx, args[0], accountsCreditCount); err != nil {
			return err
		}

		zap.L().Info("credits granted",
			zap.String("account_id", args[0]),
			zap.Int("credits", accountsCreditCount),
		)
		return nil
	},
}

func init() {
	accountsCreditCmd.Flags().IntVar(&accountsCreditCount, "count", 10, "number of credits to grant")

	accountsCmd.AddCommand(accountsShowCmd, accountsCreditCmd)
	rootCmd.AddCommand(accountsCmd)
}
