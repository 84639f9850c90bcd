package planner

import (
	"fmt"
	"strings"

	"github.com/voltaicdata/voltaic/pkg/catalog"
)

const promptHeader = `You translate questions about global energy into a chart plan. Respond with a single JSON object and nothing else.`

const promptContract = `
Plan JSON shape:
{
  "dataset_id": "<dataset id>",
  "question": "<the user question, 5-500 characters>",
  "metric_id": "<one metric id from the list above>",
  "countries": ["<ISO 3166-1 alpha-3 code, e.g. DEU>"],
  "year_start": <year, 1800-2500>,
  "year_end": <year, 1800-2500>,
  "views": [{"view_id": "timeseries", "type": "line"}],
  "notes": "<optional caveat, max 500 characters>"
}

Rules:
- Pick the single metric that best answers the question.
- Countries: 1 to 3 ISO3 codes, no duplicates.
- year_start must not be after year_end, and year_end must not be in the future.
- The first view is always the line view. Append {"view_id": "summary", "type": "bar", "mode": "latest_year"} (or "mode": "delta" for change over the range) only when a summary comparison helps. "mode" is required on the bar view.
- Omit "views" for the default line chart. Omit "notes" unless a caveat matters.`

// systemPrompt enumerates the catalog so the model only drafts plans over
// metrics that actually exist.
func systemPrompt(cat *catalog.Catalog) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	for _, ds := range cat.DatasetIDs() {
		specs, err := cat.Metrics(ds)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\n\nDataset %q metrics:\n", ds)
		for _, m := range specs {
			fmt.Fprintf(&sb, "- %s (%s; %s): %s\n", m.ID, m.Unit, m.Category, m.Description)
		}
	}
	sb.WriteString(promptContract)
	return sb.String()
}

func userPrompt(question string) string {
	return fmt.Sprintf("Question: %s", question)
}

// repairPrompt feeds a rejected draft back to the model along with the
// validation error so it can correct the plan.
func repairPrompt(question, rejected string, cause error) string {
	return fmt.Sprintf(
		"Question: %s\n\nYour previous plan was rejected:\n%s\n\nValidation error: %s\n\nRespond with a corrected JSON object and nothing else.",
		question, rejected, cause,
	)
}
