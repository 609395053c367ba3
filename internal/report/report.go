// Package report formats stored benchmark records into tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seantiz/benchkit/internal/model"
)

// Generate writes a markdown table of the given records.
func Generate(w io.Writer, records []*model.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no records to report")
	}

	fastest := fastestByName(records)
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Outcome]++
	}

	// Header.
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d record(s): %d succeeded, %d timed out, %d failed\n",
		len(records),
		counts[model.OutcomeSuccess],
		counts[model.OutcomeTimeout],
		counts[model.OutcomeFailure],
	)
	fmt.Fprintln(w)

	// Table.
	fmt.Fprintln(w, "| Benchmark | Outcome | Duration | Relative | Run | Recorded |")
	fmt.Fprintln(w, "|-----------|---------|----------|----------|-----|----------|")

	for _, r := range records {
		relative := "-"
		if r.Duration != nil && fastest[r.Name] > 0 {
			relative = fmt.Sprintf("%.2fx", float64(*r.Duration)/float64(fastest[r.Name]))
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
			escapeCell(Label(r)),
			escapeCell(r.Outcome),
			formatDuration(r.Duration),
			relative,
			escapeCell(r.RunID),
			r.RecordedAt.UTC().Format(time.RFC3339),
		)
	}

	return nil
}

// GenerateJSON writes records as JSON to w.
func GenerateJSON(w io.Writer, records []*model.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(records)
}

// Label renders a record's benchmark for humans. Keys that do not decode as
// identifiers fall back to the record name.
func Label(r *model.Record) string {
	var id model.Identifier
	if err := json.Unmarshal([]byte(r.Key), &id); err != nil || id.Name == "" {
		return r.Name
	}
	return id.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

// escapeCell keeps s inside a single markdown table cell.
func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// fastestByName returns the shortest successful duration per benchmark name.
func fastestByName(records []*model.Record) map[string]time.Duration {
	fastest := make(map[string]time.Duration)
	for _, r := range records {
		if r.Duration == nil || *r.Duration <= 0 {
			continue
		}
		if cur, ok := fastest[r.Name]; !ok || *r.Duration < cur {
			fastest[r.Name] = *r.Duration
		}
	}
	return fastest
}

func formatDuration(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	if *d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}
