package tally

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"yashubustudio/nertally/ner"
)

// Service wires an NER engine to the aggregator.
type Service struct {
	extractor ner.Extractor

	cfgMu sync.RWMutex
	cfg   Config

	logger *log.Logger
}

// Open loads the engine described by cfg and returns a service around it.
func Open(cfg Config, logger *log.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	extractor, err := ner.Load(cfg.Engine.nerConfig())
	if err != nil {
		return nil, stepErr(StepLoad, err)
	}
	s, err := NewService(extractor, cfg, logger)
	if err != nil {
		_ = extractor.Close()
		return nil, err
	}
	s.logf("Loaded %s (%d tags)", extractor.Name(), len(extractor.Tags()))
	return s, nil
}

// NewService constructs a service with the given extractor and configuration.
func NewService(extractor ner.Extractor, cfg Config, logger *log.Logger) (*Service, error) {
	if extractor == nil {
		return nil, stepErr(StepLoad, errors.New("extractor is required"))
	}
	cfg.ApplyDefaults()
	return &Service{
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Close releases engine resources.
func (s *Service) Close() error {
	if s.extractor != nil {
		return s.extractor.Close()
	}
	return nil
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig replaces the configuration. Engine settings only take effect
// on the next Open.
func (s *Service) UpdateConfig(cfg Config) Config {
	cfg.ApplyDefaults()
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	return cfg.Clone()
}

// Tags lists the categories the engine can emit.
func (s *Service) Tags() []string {
	return s.extractor.Tags()
}

// EngineName identifies the loaded engine.
func (s *Service) EngineName() string {
	return s.extractor.Name()
}

// SetProgress forwards fn to the engine when it supports progress reporting.
func (s *Service) SetProgress(fn ner.ProgressFunc) bool {
	p, ok := s.extractor.(ner.ProgressReporter)
	if ok {
		p.SetProgress(fn)
	}
	return ok
}

// Tokenize reads and tokenizes the text file at path.
func (s *Service) Tokenize(path string) ([]string, error) {
	tokens, err := ner.TokenizeFile(path)
	if err != nil {
		return nil, stepErr(StepTokenize, err)
	}
	s.logf("Tokenized %s into %d tokens", path, len(tokens))
	return tokens, nil
}

// Extract runs the engine and rebuilds each detection's text from tokens.
func (s *Service) Extract(ctx context.Context, tokens []string) ([]Detection, error) {
	entities, err := s.extractor.Extract(ctx, tokens)
	if err != nil {
		return nil, stepErr(StepExtract, err)
	}
	out := make([]Detection, len(entities))
	for i, e := range entities {
		out[i] = Detection{
			Text:     e.Text(tokens),
			Category: e.Tag,
			Score:    e.Score,
			Start:    e.Start,
			Length:   e.Length,
		}
	}
	s.logf("Number of named entities detected: %d", len(out))
	return out, nil
}

// NewAggregator builds an aggregator from the current configuration.
func (s *Service) NewAggregator(obs Observer) *Aggregator {
	return NewAggregator(s.Config().AggregatorOptions(obs))
}

// Analyze extracts entities from tokens and tallies them. source labels the
// report and is not read.
func (s *Service) Analyze(ctx context.Context, source string, tokens []string, obs Observer) (Report, error) {
	cfg := s.Config()
	detections, err := s.Extract(ctx, tokens)
	if err != nil {
		return Report{}, err
	}
	agg := NewAggregator(cfg.AggregatorOptions(obs))
	agg.RecordAll(detections)

	rep := Report{
		RunID:      uuid.NewString(),
		Model:      cfg.Engine.ModelPath,
		Engine:     s.extractor.Name(),
		Source:     source,
		Tags:       s.extractor.Tags(),
		TokenCount: len(tokens),
		Detections: detections,
		Results:    agg.Results(),
		CreatedAt:  time.Now().UTC(),
	}
	if !cfg.TrackAll {
		rep.Tracked = append([]string(nil), cfg.Categories...)
	}
	return rep, nil
}

// AnalyzeFile tokenizes path, then analyzes the tokens.
func (s *Service) AnalyzeFile(ctx context.Context, path string, obs Observer) (Report, error) {
	tokens, err := s.Tokenize(path)
	if err != nil {
		return Report{}, err
	}
	return s.Analyze(ctx, path, tokens, obs)
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
