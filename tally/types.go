package tally

import (
	"encoding/json"
	"sort"
	"time"

	"yashubustudio/nertally/ner"
)

// DefaultCategories are the categories tracked for best-match selection.
var DefaultCategories = []string{"PERSON", "LOCATION", "ORGANIZATION", "MISC"}

// KeyMode decides what makes two detections the same occurrence.
type KeyMode string

const (
	// KeyByCategory keys records by category and exact text.
	KeyByCategory KeyMode = "category"
	// KeyByText keys records by exact text alone; the first sighting's category sticks.
	KeyByText KeyMode = "text"
)

// ReportFormat selects the report writer.
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
)

// Detection is one recognized entity span with its reconstructed text.
type Detection struct {
	Text     string  `json:"text"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Start    int     `json:"start"`
	Length   int     `json:"length"`
}

// OccurrenceRecord counts sightings of one distinct text.
type OccurrenceRecord struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Results is a snapshot of an aggregation.
type Results struct {
	Records  []OccurrenceRecord          `json:"records"`
	Best     map[string]OccurrenceRecord `json:"best"`
	TopScore map[string]Detection        `json:"topScore"`
	Total    int                         `json:"total"`
}

// CountByCategory sums record counts per category.
func (r Results) CountByCategory() map[string]int {
	out := make(map[string]int)
	for _, rec := range r.Records {
		out[rec.Category] += rec.Count
	}
	return out
}

// BestCategories returns the categories present in Best, sorted.
func (r Results) BestCategories() []string {
	out := make([]string, 0, len(r.Best))
	for c := range r.Best {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID      string      `json:"runId"`
	Model      string      `json:"model"`
	Engine     string      `json:"engine"`
	Source     string      `json:"source"`
	Tags       []string    `json:"tags"`
	Tracked    []string    `json:"tracked,omitempty"`
	TokenCount int         `json:"tokenCount"`
	Detections []Detection `json:"detections"`
	Results    Results     `json:"results"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// EngineConfig wraps the configuration for the NER engine.
type EngineConfig struct {
	Kind          string            `json:"kind"`
	ModelPath     string            `json:"modelPath"`
	TokenizerPath string            `json:"tokenizerPath"`
	LabelsPath    string            `json:"labelsPath"`
	OrtLib        string            `json:"ortLib"`
	MaxSeqLen     int               `json:"maxSeqLen"`
	TagAliases    map[string]string `json:"tagAliases,omitempty"`
	ProperNouns   bool              `json:"properNouns"`
}

func (e EngineConfig) nerConfig() ner.Config {
	return ner.Config{
		Engine:        e.Kind,
		ModelPath:     e.ModelPath,
		TokenizerPath: e.TokenizerPath,
		LabelsPath:    e.LabelsPath,
		OrtLib:        e.OrtLib,
		MaxSeqLen:     e.MaxSeqLen,
		TagAliases:    e.TagAliases,
		ProperNouns:   e.ProperNouns,
	}
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	Engine     EngineConfig `json:"engine"`
	Categories []string     `json:"categories"`
	TrackAll   bool         `json:"trackAll"`
	KeyMode    KeyMode      `json:"keyMode"`
	Format     ReportFormat `json:"format"`
	Verbose    bool         `json:"verbose"`
	StorePath  string       `json:"storePath"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Engine.Kind == "" {
		c.Engine.Kind = ner.EngineAuto
	}
	if c.Engine.MaxSeqLen == 0 {
		c.Engine.MaxSeqLen = 512
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), DefaultCategories...)
	}
	if c.KeyMode == "" {
		c.KeyMode = KeyByCategory
	}
	if c.Format == "" {
		c.Format = FormatText
	}
}

// AggregatorOptions returns the aggregator settings implied by the config.
func (c Config) AggregatorOptions(obs Observer) AggregatorOptions {
	return AggregatorOptions{
		Categories: c.Categories,
		TrackAll:   c.TrackAll,
		KeyMode:    c.KeyMode,
		Observer:   obs,
	}
}
