package ner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jdkato/prose/tag"
)

const (
	properNounTag   = "MISC"
	properNounScore = 0.5
)

var (
	posOnce   sync.Once
	posTagger *tag.PerceptronTagger
)

func perceptron() *tag.PerceptronTagger {
	posOnce.Do(func() {
		posTagger = tag.NewPerceptronTagger()
	})
	return posTagger
}

// GazetteerExtractor detects entities by dictionary lookup, optionally
// tagging uncovered proper-noun runs as MISC.
type GazetteerExtractor struct {
	name        string
	entries     map[string]string
	maxLen      int
	tags        []string
	properNouns bool
}

// NewGazetteerExtractor reads a TSV gazetteer of "surface<TAB>CATEGORY" lines.
func NewGazetteerExtractor(cfg Config) (*GazetteerExtractor, error) {
	f, err := os.Open(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCantOpen, err)
	}
	defer f.Close()

	g := &GazetteerExtractor{
		name:        filepath.Base(cfg.ModelPath),
		entries:     make(map[string]string),
		properNouns: cfg.ProperNouns,
	}
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %s:%d: expected surface<TAB>category", ErrCantOpen, g.name, line)
		}
		words := Tokenize(parts[0])
		category := aliasTag(strings.TrimSpace(parts[1]), cfg.TagAliases)
		if len(words) == 0 || category == "" {
			continue
		}
		g.entries[gazetteerKey(words)] = category
		if len(words) > g.maxLen {
			g.maxLen = len(words)
		}
		seen[category] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCantOpen, g.name, err)
	}
	if g.properNouns {
		seen[properNounTag] = struct{}{}
	}
	for t := range seen {
		g.tags = append(g.tags, t)
	}
	sort.Strings(g.tags)
	return g, nil
}

func gazetteerKey(words []string) string {
	return strings.ToLower(strings.Join(words, " "))
}

// Name identifies the gazetteer file.
func (g *GazetteerExtractor) Name() string {
	return "gazetteer:" + g.name
}

// Tags lists the categories found in the gazetteer.
func (g *GazetteerExtractor) Tags() []string {
	return append([]string(nil), g.tags...)
}

// Close is a no-op.
func (g *GazetteerExtractor) Close() error {
	return nil
}

// Extract scans left to right, preferring the longest gazetteer match.
func (g *GazetteerExtractor) Extract(ctx context.Context, tokens []string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Entity
	covered := make([]bool, len(tokens))
	for i := 0; i < len(tokens); {
		n := g.maxLen
		if rest := len(tokens) - i; n > rest {
			n = rest
		}
		matched := 0
		for ; n > 0; n-- {
			if category, ok := g.entries[gazetteerKey(tokens[i:i+n])]; ok {
				out = append(out, Entity{Start: i, Length: n, Tag: category, Score: 1})
				matched = n
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}
		for j := i; j < i+matched; j++ {
			covered[j] = true
		}
		i += matched
	}
	if g.properNouns && len(tokens) > 0 {
		out = append(out, properNounRuns(perceptron().Tag(tokens), covered)...)
		sort.SliceStable(out, func(a, b int) bool { return out[a].Start < out[b].Start })
	}
	return out, nil
}

// properNounRuns turns consecutive NNP/NNPS tokens not already covered into entities.
func properNounRuns(tagged []tag.Token, covered []bool) []Entity {
	var out []Entity
	start := -1
	closeRun := func(end int) {
		if start >= 0 {
			out = append(out, Entity{Start: start, Length: end - start, Tag: properNounTag, Score: properNounScore})
			start = -1
		}
	}
	for i, tok := range tagged {
		proper := (tok.Tag == "NNP" || tok.Tag == "NNPS") && (i >= len(covered) || !covered[i])
		if proper {
			if start < 0 {
				start = i
			}
			continue
		}
		closeRun(i)
	}
	closeRun(len(tagged))
	return out
}
