package tally

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	// Categories tracked for best-match selection. Empty means DefaultCategories.
	Categories []string
	// TrackAll tracks every category seen, ignoring Categories.
	TrackAll bool
	// KeyMode defaults to KeyByCategory, so "Washington" as PERSON and as
	// LOCATION are two records. KeyByText gives one record per text, the
	// plain per-text tally, with the first sighting's category.
	KeyMode  KeyMode
	Observer Observer
}

type recordKey struct {
	category string
	text     string
}

// Aggregator tallies detections into occurrence records and keeps the most
// frequent record per tracked category. It is not safe for concurrent use.
type Aggregator struct {
	keyMode  KeyMode
	trackAll bool
	tracked  map[string]struct{}
	observer Observer

	records []OccurrenceRecord
	index   map[recordKey]int
	best    map[string]int
	top     map[string]Detection
	total   int
}

// NewAggregator returns an empty aggregator.
func NewAggregator(opts AggregatorOptions) *Aggregator {
	cats := opts.Categories
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	tracked := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		tracked[c] = struct{}{}
	}
	mode := opts.KeyMode
	if mode != KeyByText {
		mode = KeyByCategory
	}
	return &Aggregator{
		keyMode:  mode,
		trackAll: opts.TrackAll,
		tracked:  tracked,
		observer: opts.Observer,
		index:    make(map[recordKey]int),
		best:     make(map[string]int),
		top:      make(map[string]Detection),
	}
}

func (a *Aggregator) key(d Detection) recordKey {
	if a.keyMode == KeyByText {
		return recordKey{text: d.Text}
	}
	return recordKey{category: d.Category, text: d.Text}
}

// Tracks reports whether category takes part in best-match selection.
func (a *Aggregator) Tracks(category string) bool {
	if a.trackAll {
		return true
	}
	_, ok := a.tracked[category]
	return ok
}

// Record counts one detection.
func (a *Aggregator) Record(d Detection) {
	k := a.key(d)
	idx, ok := a.index[k]
	if ok {
		a.records[idx].Count++
	} else {
		idx = len(a.records)
		a.records = append(a.records, OccurrenceRecord{Text: d.Text, Category: d.Category, Count: 1})
		a.index[k] = idx
	}
	a.total++

	// best competes within the record's category, which under KeyByText
	// is the category of the first sighting
	promoted := false
	if cat := a.records[idx].Category; a.Tracks(cat) {
		cur, has := a.best[cat]
		if !has || a.records[idx].Count > a.records[cur].Count {
			a.best[cat] = idx
			promoted = !has || cur != idx
		}
	}
	if a.Tracks(d.Category) {
		if top, has := a.top[d.Category]; !has || d.Score > top.Score {
			a.top[d.Category] = d
		}
	}
	if a.observer != nil {
		a.observer.Recorded(d, a.records[idx], promoted)
	}
}

// RecordAll counts every detection in order.
func (a *Aggregator) RecordAll(ds []Detection) {
	for _, d := range ds {
		a.Record(d)
	}
}

// Len returns the number of distinct records.
func (a *Aggregator) Len() int {
	return len(a.records)
}

// Reset drops all state but keeps the options.
func (a *Aggregator) Reset() {
	a.records = nil
	a.index = make(map[recordKey]int)
	a.best = make(map[string]int)
	a.top = make(map[string]Detection)
	a.total = 0
}

// Results returns a copy of the current state.
func (a *Aggregator) Results() Results {
	res := Results{
		Records:  make([]OccurrenceRecord, len(a.records)),
		Best:     make(map[string]OccurrenceRecord, len(a.best)),
		TopScore: make(map[string]Detection, len(a.top)),
		Total:    a.total,
	}
	copy(res.Records, a.records)
	for c, idx := range a.best {
		res.Best[c] = a.records[idx]
	}
	for c, d := range a.top {
		res.TopScore[c] = d
	}
	return res
}
