package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/enrich"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <record-id>",
	Short: "Run one enrichment attempt for a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		attempt, err := env.Orchestrator.Enrich(ctx, args[0])
		if err != nil {
			if eris.Is(err, enrich.ErrNotAllowed) {
				zap.L().Warn("enrichment refused", zap.String("record_id", args[0]))
			}
			return err
		}

		rec, err := env.Store.GetRecord(ctx, attempt.RecordID)
		if err != nil {
			return eris.Wrap(err, "reload record")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
