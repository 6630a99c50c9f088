package ner

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/text/unicode/norm"
)

var tokenRE = regexp.MustCompile(
	`\p{N}+(?:[.,]\p{N}+)+` + // 1,200.50
		`|\p{L}(?:\.\p{L})+\.?` + // U.S.
		`|\p{Lu}\p{Ll}{0,3}\.` + // Mr. Dr. Mrs.
		`|[\p{L}\p{N}_]+(?:['’\-][\p{L}\p{N}_]+)*` +
		`|[^\s\p{L}\p{N}_]`)

var (
	sentenceOnce      sync.Once
	sentenceTokenizer *sentences.DefaultSentenceTokenizer
)

func splitter() *sentences.DefaultSentenceTokenizer {
	sentenceOnce.Do(func() {
		tk, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			sentenceTokenizer = tk
		}
	})
	return sentenceTokenizer
}

// NormalizeText performs Unicode normalization and strips control characters.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

// Sentences splits text into sentences. When the sentence model is not
// available the whole text is returned as a single sentence.
func Sentences(text string) []string {
	tk := splitter()
	if tk == nil {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	var out []string
	for _, s := range tk.Tokenize(text) {
		if strings.TrimSpace(s.Text) != "" {
			out = append(out, s.Text)
		}
	}
	return out
}

// Tokenize turns text into word and punctuation tokens.
func Tokenize(text string) []string {
	text = NormalizeText(text)
	tokens := make([]string, 0, len(text)/5+1)
	for _, sent := range Sentences(text) {
		tokens = append(tokens, tokenizeSentence(sent)...)
	}
	return tokens
}

// TokenizeFile reads path and tokenizes its contents.
func TokenizeFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	return Tokenize(string(data)), nil
}

// tokenizeSentence keeps abbreviation periods except where the period
// closes a clause: on the last word, or on a word followed only by
// punctuation or by a closing quote or bracket.
func tokenizeSentence(sent string) []string {
	tokens := tokenRE.FindAllString(sent, -1)
	out := make([]string, 0, len(tokens)+1)
	for i, tok := range tokens {
		if len(tok) > 1 && strings.HasSuffix(tok, ".") && endsClause(tokens[i+1:]) {
			out = append(out, strings.TrimSuffix(tok, "."), ".")
			continue
		}
		out = append(out, tok)
	}
	return out
}

func endsClause(rest []string) bool {
	if len(rest) > 0 && isPunct(rest[0]) && strings.ContainsAny(rest[0], closers) {
		return true
	}
	for _, t := range rest {
		if !isPunct(t) {
			return false
		}
	}
	return true
}

const closers = "\")]}'”’»"

func isPunct(tok string) bool {
	return strings.IndexFunc(tok, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r)
	}) < 0
}
