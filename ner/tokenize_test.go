package ner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	ts := Tokenize("I am a precious snowflake")
	if len(ts) != 5 {
		t.Errorf("Expected 5 tokens, have: %d (%q)", len(ts), ts)
	}
}

func TestTokenizePunctuation(t *testing.T) {
	got := Tokenize("Paris, France is nice")
	assert.Equal(t, []string{"Paris", ",", "France", "is", "nice"}, got)

	got = Tokenize("She doesn't like well-known places")
	assert.Equal(t, []string{"She", "doesn't", "like", "well-known", "places"}, got)
}

func TestTokenizeSentenceAbbreviations(t *testing.T) {
	got := tokenizeSentence("Mr. Smith moved to the U.S. in 1,200.50 days.")
	assert.Equal(t, []string{"Mr.", "Smith", "moved", "to", "the", "U.S.", "in", "1,200.50", "days", "."}, got)

	got = tokenizeSentence("He met Tom.")
	assert.Equal(t, []string{"He", "met", "Tom", "."}, got)

	got = tokenizeSentence("Dr. O'Brien left.")
	assert.Equal(t, []string{"Dr.", "O'Brien", "left", "."}, got)
}

func TestTokenizeSentenceClosingMarks(t *testing.T) {
	got := tokenizeSentence(`He said "I love Rome."`)
	assert.Equal(t, []string{"He", "said", `"`, "I", "love", "Rome", ".", `"`}, got)

	got = tokenizeSentence("They met Ann (and Bob.) later.")
	assert.Equal(t, []string{"They", "met", "Ann", "(", "and", "Bob", ".", ")", "later", "."}, got)

	got = tokenizeSentence("It was Rome.)\"")
	assert.Equal(t, []string{"It", "was", "Rome", ".", ")", `"`}, got)

	tokens := Tokenize(`He said "I love Rome." Then Rome fell. They met Ann (and Bob.) later.`)
	assert.NotContains(t, tokens, "Rome.")
	assert.NotContains(t, tokens, "Bob.")
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \n\t "))
}

func TestNormalizeText(t *testing.T) {
	// full-width letters fold to ASCII, control characters are dropped
	assert.Equal(t, "ABC\tx\n", NormalizeText("ＡＢＣ\t\x07x\n"))
}

func TestTokenizeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("Boston is big"), 0o644))

	tokens, err := TokenizeFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boston", "is", "big"}, tokens)

	_, err = TokenizeFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestEntityText(t *testing.T) {
	tokens := []string{"Benjamin", "Franklin", "was", "born"}
	assert.Equal(t, "Benjamin Franklin", Entity{Start: 0, Length: 2}.Text(tokens))
	assert.Equal(t, "born", Entity{Start: 3, Length: 5}.Text(tokens))
	assert.Equal(t, "", Entity{Start: 2, Length: 0}.Text(tokens))
	assert.Equal(t, "", Entity{Start: 9, Length: 1}.Text(tokens))
	assert.Equal(t, "Benjamin", Entity{Start: -1, Length: 2}.Text(tokens))
}
