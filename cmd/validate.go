package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/validator-cli/internal/model"
)

var (
	validateNumber  string
	validateCountry string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a single phone number",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		resp := env.Pipeline.Validate(ctx, model.ValidationRequest{
			PhoneNumber: validateNumber,
			CountryCode: validateCountry,
		})

		// Drain the recorder so the outcome is persisted before exit.
		env.Recorder.Flush()

		zap.L().Info("validation complete",
			zap.String("phone", resp.PhoneNumber),
			zap.String("strategy", string(resp.ValidationStrategy)),
			zap.Float64("confidence", resp.ConfidenceScore),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateNumber, "number", "", "phone number in international format (required)")
	validateCmd.Flags().StringVar(&validateCountry, "country", "", "ISO country code (default US)")
	_ = validateCmd.MarkFlagRequired("number")
	rootCmd.AddCommand(validateCmd)
}
