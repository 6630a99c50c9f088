package tally

import "log"

// Observer is notified after each detection is recorded. promoted is true
// when the record became the new best for its category.
type Observer interface {
	Recorded(d Detection, rec OccurrenceRecord, promoted bool)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(d Detection, rec OccurrenceRecord, promoted bool)

// Recorded calls f.
func (f ObserverFunc) Recorded(d Detection, rec OccurrenceRecord, promoted bool) {
	f(d, rec, promoted)
}

type multiObserver []Observer

func (m multiObserver) Recorded(d Detection, rec OccurrenceRecord, promoted bool) {
	for _, o := range m {
		o.Recorded(d, rec, promoted)
	}
}

// MultiObserver fans a notification out to every non-nil observer.
func MultiObserver(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// NewLogObserver prints one line per recorded detection.
func NewLogObserver(logger *log.Logger) Observer {
	if logger == nil {
		return nil
	}
	return ObserverFunc(func(d Detection, rec OccurrenceRecord, promoted bool) {
		mark := ""
		if promoted {
			mark = " *best"
		}
		logger.Printf("Tag %s: Score: %0.3f: %q (count=%d)%s", d.Category, d.Score, d.Text, rec.Count, mark)
	})
}
