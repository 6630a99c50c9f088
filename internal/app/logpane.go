package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2/data/binding"
)

const (
	logFlushInterval = 150 * time.Millisecond
	logLineLimit     = 200
)

// logPane keeps the newest log lines and pushes them to the bound entry
// on a ticker, so bursts of detections cost one redraw per tick.
type logPane struct {
	mu    sync.Mutex
	lines []string
	dirty bool
	limit int
	bind  binding.String
	clock func() time.Time
}

func newLogPane(bind binding.String) *logPane {
	return &logPane{bind: bind, limit: logLineLimit, clock: time.Now}
}

func (p *logPane) Append(msg string) {
	line := fmt.Sprintf("[%s] %s", p.clock().Format("15:04:05"), msg)
	p.mu.Lock()
	p.lines = append(p.lines, line)
	if over := len(p.lines) - p.limit; over > 0 {
		p.lines = append(p.lines[:0], p.lines[over:]...)
	}
	p.dirty = true
	p.mu.Unlock()
}

// take returns the pane text and whether it changed since the last take.
func (p *logPane) take() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty {
		return "", false
	}
	p.dirty = false
	return strings.Join(p.lines, "\n"), true
}

// run flushes pending lines every interval for the life of the app.
func (p *logPane) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if text, ok := p.take(); ok {
			_ = p.bind.Set(text)
		}
	}
}
