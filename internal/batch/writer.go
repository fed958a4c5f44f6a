package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/validator-cli/internal/model"
)

// Validator runs one validation pass; satisfied by pipeline.Pipeline.
type Validator interface {
	Validate(ctx context.Context, req model.ValidationRequest) *model.ValidationResponse
}

// maxReasoningLen caps the reasoning column so one verbose trace can't blow
// up the output file.
const maxReasoningLen = 100

// Process validates rows sequentially and returns one response per input row,
// in input order.
func Process(ctx context.Context, p Validator, rows []Row) []*model.ValidationResponse {
	results := make([]*model.ValidationResponse, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("batch cancelled", zap.Int("processed", i))
			break
		}
		results = append(results, p.Validate(ctx, model.ValidationRequest{
			PhoneNumber: row.PhoneNumber,
			CountryCode: row.CountryCode,
		}))
	}
	return results
}

var resultHeader = []string{
	"phone_number", "formatted_number", "country_code", "carrier", "line_type",
	"valid_format", "whatsapp_available", "confidence_score", "classification",
	"strategy", "provider", "reasoning",
}

// WriteResults writes the result CSV, one row per response in order.
func WriteResults(w io.Writer, results []*model.ValidationResponse) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(resultHeader); err != nil {
		return eris.Wrap(err, "batch: write header")
	}
	for _, r := range results {
		validFormat := "false"
		if r.Confidence.Breakdown["format"] > 0 {
			validFormat = "true"
		}
		rec := []string{
			escapePhoneCell(r.PhoneNumber),
			escapePhoneCell(r.FormattedNumber),
			r.CountryCode,
			r.Carrier,
			r.LineType,
			validFormat,
			fmt.Sprintf("%t", r.WhatsAppAvailable),
			fmt.Sprintf("%.1f", r.ConfidenceScore),
			r.Confidence.Classification,
			string(r.ValidationStrategy),
			r.RetryMetadata.Provider,
			truncateReasoning(r.Reasoning),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "batch: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "batch: flush")
}

// escapePhoneCell prefixes numeric-looking phones with an apostrophe so
// spreadsheet applications keep them as text instead of collapsing them to
// scientific notation.
func escapePhoneCell(phone string) string {
	if phone == "" {
		return phone
	}
	rest := phone
	if strings.HasPrefix(rest, "+") {
		rest = rest[1:]
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return phone
		}
	}
	return "'" + phone
}

func truncateReasoning(reasoning string) string {
	if len(reasoning) <= maxReasoningLen {
		return reasoning
	}
	return reasoning[:maxReasoningLen-3] + "..."
}
