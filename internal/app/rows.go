package app

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"yashubustudio/nertally/tally"
)

type recordRow struct {
	Text     string
	Category string
	Count    int
	Best     bool
}

// recordRows flattens a report into table rows in first-seen order.
func recordRows(rep tally.Report) []recordRow {
	rows := make([]recordRow, 0, len(rep.Results.Records))
	for _, rec := range rep.Results.Records {
		best, ok := rep.Results.Best[rec.Category]
		rows = append(rows, recordRow{
			Text:     rec.Text,
			Category: rec.Category,
			Count:    rec.Count,
			Best:     ok && best.Text == rec.Text,
		})
	}
	return rows
}

// bestSummary renders one line per tracked category.
func bestSummary(rep tally.Report) string {
	cats := rep.Tracked
	if cats == nil {
		cats = rep.Results.BestCategories()
	}
	if len(cats) == 0 {
		return "検出なし"
	}
	var b strings.Builder
	for _, c := range cats {
		rec, ok := rep.Results.Best[c]
		if !ok {
			fmt.Fprintf(&b, "%s: (なし)\n", c)
			continue
		}
		fmt.Fprintf(&b, "%s: %s (%d件)", c, rec.Text, rec.Count)
		if top, ok := rep.Results.TopScore[c]; ok {
			fmt.Fprintf(&b, " / 最高スコア %.3f: %s", top.Score, top.Text)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseCategoryList splits user input on commas, ideographic commas and
// newlines, uppercases each entry and drops duplicates.
func parseCategoryList(s string) []string {
	s = norm.NFKC.String(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '、' || r == '\n' || r == '\r'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToUpper(strings.Join(strings.Fields(f), " "))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}

// logWriter feeds log.Logger output into the UI log pane line by line.
type logWriter struct {
	appendLine func(string)
}

func (l logWriter) Write(p []byte) (int, error) {
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	for _, part := range strings.Split(text, "\n") {
		if part == "" {
			continue
		}
		l.appendLine(part)
	}
	return len(p), nil
}
