package ner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrCantOpen is returned when a model cannot be loaded.
	ErrCantOpen = errors.New("unable to open model file")
	// ErrExtract is returned when the engine fails while detecting entities.
	ErrExtract = errors.New("entity extraction failed")
)

// Engine kinds accepted by Config.Engine.
const (
	EngineAuto      = "auto"
	EngineONNX      = "onnx"
	EngineGazetteer = "gazetteer"
)

// Entity is one detection addressed by token index.
type Entity struct {
	Start  int
	Length int
	Tag    string
	Score  float64
}

// End returns the exclusive end token index.
func (e Entity) End() int {
	return e.Start + e.Length
}

// Text joins the tokens covered by the entity with single spaces. Spans
// outside the token slice are clamped, so a bad span yields "".
func (e Entity) Text(tokens []string) string {
	start, end := e.Start, e.End()
	if start < 0 {
		start = 0
	}
	if end > len(tokens) {
		end = len(tokens)
	}
	if start >= end {
		return ""
	}
	return strings.Join(tokens[start:end], " ")
}

// ProgressFunc reports how many units of work are done out of total.
type ProgressFunc func(done, total int)

// Extractor is the engine surface used by the tally service.
type Extractor interface {
	Name() string
	Tags() []string
	Extract(ctx context.Context, tokens []string) ([]Entity, error)
	Close() error
}

// ProgressReporter is implemented by extractors that can report per-window progress.
type ProgressReporter interface {
	SetProgress(fn ProgressFunc)
}

// Config selects and configures an engine.
type Config struct {
	Engine        string
	ModelPath     string
	TokenizerPath string
	LabelsPath    string
	OrtLib        string
	MaxSeqLen     int
	TagAliases    map[string]string
	ProperNouns   bool
}

// Load opens the engine described by cfg.
func Load(cfg Config) (Extractor, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrCantOpen)
	}
	switch resolveEngine(cfg) {
	case EngineGazetteer:
		return NewGazetteerExtractor(cfg)
	case EngineONNX:
		return NewOrtExtractor(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrCantOpen, cfg.Engine)
	}
}

func resolveEngine(cfg Config) string {
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if engine != "" && engine != EngineAuto {
		return engine
	}
	switch strings.ToLower(filepath.Ext(cfg.ModelPath)) {
	case ".tsv", ".txt":
		return EngineGazetteer
	default:
		return EngineONNX
	}
}
