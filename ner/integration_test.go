//go:build integration

// Needs the onnxruntime shared library and an exported NER model, so it
// stays out of the default test run. Set NERTALLY_MODEL and NERTALLY_ORT_LIB.
package ner_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/nertally/ner"
)

const txt = `From wikipedia we learn that Josiah Franklin's son, Benjamin Franklin was born
in Boston.  Since wikipedia allows anyone to edit it, you could change the
entry to say that Philadelphia is the birthplace of Benjamin Franklin.`

func TestOrtSmoke(t *testing.T) {
	model := os.Getenv("NERTALLY_MODEL")
	if model == "" {
		t.Skip("NERTALLY_MODEL not set")
	}
	ext, err := ner.Load(ner.Config{
		Engine:    ner.EngineONNX,
		ModelPath: model,
		OrtLib:    os.Getenv("NERTALLY_ORT_LIB"),
	})
	require.NoError(t, err)
	defer ext.Close()

	assert.Contains(t, ext.Tags(), "PERSON")

	tokens := ner.Tokenize(txt)
	es, err := ext.Extract(context.Background(), tokens)
	require.NoError(t, err)
	require.NotEmpty(t, es)

	var names []string
	for _, e := range es {
		names = append(names, e.Text(tokens))
	}
	assert.Contains(t, names, "Benjamin Franklin")
}
