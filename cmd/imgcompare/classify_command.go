package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xswordsx/imgcompare"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify LABEL...",
		Short: "Check labels against the special-case triggers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			classifier := cfg.Classifier()

			rows := make([][]string, 0, len(args))
			for _, label := range args {
				rows = append(rows, []string{
					label,
					imgcompare.NormalizeLabel(label),
					yesNo(classifier.Classify(label)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Label", "Normalized", "Special case"},
				rows,
			))
			return nil
		},
	}
}
