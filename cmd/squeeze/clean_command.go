package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squeeze/internal/config"
	"squeeze/internal/logging"
	"squeeze/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean DEST_DIR",
		Short: "Remove leftover staging files under a destination tree",
		Long: "Sweeps the destination tree for staging files left behind by an " +
			"interrupted or crashed run. Published files are never touched; " +
			"running the sweep twice is a no-op the second time.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			result := staging.Sweep(root, logging.NewNop())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d staging file(s)\n", len(result.Removed))
			for _, sweepErr := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: %s: %v\n", sweepErr.Path, sweepErr.Error)
			}
			return nil
		},
	}
}
