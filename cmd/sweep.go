package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/cache"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired provider cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := cache.New(cfg.Cache)
		if err != nil {
			return eris.Wrap(err, "init cache")
		}
		defer c.Close() //nolint:errcheck

		n, err := c.SweepExpired(ctx)
		if err != nil {
			return eris.Wrap(err, "sweep cache")
		}

		zap.L().Info("cache sweep complete", zap.Int("removed", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
