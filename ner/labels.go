package ner

import (
	"math"
	"sort"
	"strings"
)

// DefaultTagAliases maps the short CoNLL categories to the long names used in reports.
var DefaultTagAliases = map[string]string{
	"PER":  "PERSON",
	"LOC":  "LOCATION",
	"ORG":  "ORGANIZATION",
	"MISC": "MISC",
}

type wordLabel struct {
	Label string
	Score float64
}

// splitBIO separates a label into its scheme prefix and category. Labels
// without a prefix are treated as inside tags.
func splitBIO(label string) (prefix, category string) {
	label = strings.TrimSpace(label)
	if label == "" || label == "O" {
		return "O", ""
	}
	if len(label) > 2 && label[1] == '-' {
		switch p := strings.ToUpper(label[:1]); p {
		case "B", "I", "E", "S":
			return p, label[2:]
		}
	}
	return "I", label
}

func aliasTag(category string, aliases map[string]string) string {
	if v, ok := aliases[category]; ok {
		return v
	}
	if v, ok := DefaultTagAliases[category]; ok {
		return v
	}
	return category
}

// decodeEntities groups per-word labels into entities. B starts a span, I
// continues a span of the same category, O closes the open span.
func decodeEntities(words []wordLabel, aliases map[string]string) []Entity {
	var out []Entity
	var cur *Entity
	var sum float64
	flush := func() {
		if cur != nil {
			cur.Score = sum / float64(cur.Length)
			out = append(out, *cur)
			cur = nil
			sum = 0
		}
	}
	for i, w := range words {
		prefix, category := splitBIO(w.Label)
		if prefix == "O" {
			flush()
			continue
		}
		tag := aliasTag(category, aliases)
		if cur != nil && cur.Tag == tag && (prefix == "I" || prefix == "E") {
			cur.Length++
			sum += w.Score
		} else {
			flush()
			cur = &Entity{Start: i, Length: 1, Tag: tag}
			sum = w.Score
		}
		if prefix == "E" || prefix == "S" {
			flush()
		}
	}
	flush()
	return out
}

// tagsFromLabels returns the sorted distinct categories behind a label set.
func tagsFromLabels(labels []string, aliases map[string]string) []string {
	seen := make(map[string]struct{})
	for _, l := range labels {
		prefix, category := splitBIO(l)
		if prefix == "O" {
			continue
		}
		seen[aliasTag(category, aliases)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type window struct {
	Start, End int // word range, end exclusive
}

// packWindows groups consecutive words so that each group's piece count
// stays within budget. A word larger than the budget gets its own window.
func packWindows(pieceCounts []int, budget int) []window {
	if budget <= 0 {
		budget = 1
	}
	var out []window
	start, used := 0, 0
	for i, n := range pieceCounts {
		if i > start && used+n > budget {
			out = append(out, window{Start: start, End: i})
			start, used = i, 0
		}
		used += n
	}
	if start < len(pieceCounts) {
		out = append(out, window{Start: start, End: len(pieceCounts)})
	}
	return out
}

// argmaxSoftmax returns the index of the largest logit and its softmax probability.
func argmaxSoftmax(logits []float32) (int, float64) {
	if len(logits) == 0 {
		return -1, 0
	}
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	maxv := float64(logits[best])
	var denom float64
	for _, v := range logits {
		denom += math.Exp(float64(v) - maxv)
	}
	return best, 1 / denom
}
