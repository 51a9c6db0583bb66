package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/ingest"
	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/store"
)

var (
	recordsImportAccount string
	recordsListAccount   string
	recordsListStatus    string
	recordsListLimit     int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage contact records",
}

var recordsImportCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Import contact records from a CSV or XLSX file",
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

		res, err := ingest.ImportFile(ctx, st, recordsImportAccount, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("created", res.Created),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Print one record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("record %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records, optionally filtered by account or status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRecords(ctx, store.RecordFilter{
			AccountID: recordsListAccount,
			Status:    model.RecordStatus(recordsListStatus),
			Limit:     recordsListLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

func init() {
	recordsImportCmd.Flags().StringVar(&recordsImportAccount, "account", "", "account id to attach records to (required)")
	_ = recordsImportCmd.MarkFlagRequired("account")

	recordsListCmd.Flags().StringVar(&recordsListAccount, "account", "", "filter by account id")
	recordsListCmd.Flags().StringVar(&recordsListStatus, "status", "", "filter by status")
	recordsListCmd.Flags().IntVar(&recordsListLimit, "limit", 50, "max records to return")

	recordsCmd.AddCommand(recordsImportCmd, recordsShowCmd, recordsListCmd)
	rootCmd.AddCommand(recordsCmd)
}
