package tally

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ReportOptions controls WriteReport.
type ReportOptions struct {
	Format  ReportFormat
	Verbose bool
}

// ParseFormat validates a format name.
func ParseFormat(s string) (ReportFormat, error) {
	switch f := ReportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or csv)", s)
	}
}

// WriteReport renders rep to w in the requested format.
func WriteReport(w io.Writer, rep Report, opts ReportOptions) error {
	switch opts.Format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatCSV:
		return writeCSV(w, rep)
	default:
		return writeText(w, rep, opts.Verbose)
	}
}

// reportCategories lists the categories to summarize: the tracked list when
// known, otherwise whatever has a best record.
func reportCategories(rep Report) []string {
	if len(rep.Tracked) > 0 {
		return rep.Tracked
	}
	return rep.Results.BestCategories()
}

func writeText(w io.Writer, rep Report, verbose bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "The tagger supports %d tags:\n", len(rep.Tags))
	for _, t := range rep.Tags {
		fmt.Fprintf(&b, "   %s\n", t)
	}
	fmt.Fprintf(&b, "\nNumber of named entities detected: %d\n", len(rep.Detections))
	if verbose {
		for _, d := range rep.Detections {
			fmt.Fprintf(&b, "   Tag %s: Score: %0.3f: %s\n", d.Category, d.Score, d.Text)
		}
	}

	if len(rep.Results.Records) > 0 {
		b.WriteString("\nOccurrences:\n")
		width := 1
		for _, rec := range rep.Results.Records {
			if n := len(strconv.Itoa(rec.Count)); n > width {
				width = n
			}
		}
		for _, rec := range rep.Results.Records {
			fmt.Fprintf(&b, "   %*d  %-12s %s\n", width, rec.Count, rec.Category, rec.Text)
		}
	}

	b.WriteString("\n")
	for _, c := range reportCategories(rep) {
		best, ok := rep.Results.Best[c]
		if !ok {
			fmt.Fprintf(&b, "Tag %s: (none)\n", c)
			continue
		}
		line := fmt.Sprintf("Tag %s: %s (%d occurrences)", c, best.Text, best.Count)
		if top, ok := rep.Results.TopScore[c]; ok {
			line += fmt.Sprintf(", top score %0.3f: %s", top.Score, top.Text)
		}
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, rep Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"text", "category", "count", "best"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range rep.Results.Records {
		best := "no"
		if b, ok := rep.Results.Best[rec.Category]; ok && b == rec {
			best = "yes"
		}
		row := []string{rec.Text, rec.Category, strconv.Itoa(rec.Count), best}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// WriteHistory renders stored runs and the all-time totals as text.
func WriteHistory(w io.Writer, runs []RunSummary, totals []OccurrenceRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Stored runs: %d\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(&b, "   %s  %s  %s  %d tokens, %d detections\n",
			r.CreatedAt.Format(time.RFC3339), r.ID, r.Source, r.Tokens, r.Detections)
	}
	fmt.Fprintf(&b, "\nTotals over all runs:\n")
	if len(totals) == 0 {
		b.WriteString("   (none)\n")
	}
	width := 1
	for _, rec := range totals {
		if n := len(strconv.Itoa(rec.Count)); n > width {
			width = n
		}
	}
	for _, rec := range totals {
		fmt.Fprintf(&b, "   %*d  %-12s %s\n", width, rec.Count, rec.Category, rec.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
