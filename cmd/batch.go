package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/validator-cli/internal/batch"
)

var (
	batchInput   string
	batchOutput  string
	batchCharset string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Validate phone numbers from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		in, err := os.Open(batchInput)
		if err != nil {
			return eris.Wrapf(err, "open %s", batchInput)
		}
		defer in.Close()

		rows, err := batch.ReadFile(batchInput, batchCharset, in)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("no phone numbers found in %s", batchInput)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("starting batch validation",
			zap.String("input", batchInput),
			zap.Int("rows", len(rows)),
		)

		results := batch.Process(ctx, env.Pipeline, rows)
		env.Recorder.Flush()

		out, err := os.Create(batchOutput)
		if err != nil {
			return eris.Wrapf(err, "create %s", batchOutput)
		}
		defer out.Close()

		if err := batch.WriteResults(out, results); err != nil {
			return err
		}

		zap.L().Info("batch validation complete",
			zap.Int("processed", len(results)),
			zap.String("output", batchOutput),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "input CSV or XLSX file (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "validation_results.csv", "output CSV file")
	batchCmd.Flags().StringVar(&batchCharset, "charset", "", "input charset for CSV files (default UTF-8)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}
