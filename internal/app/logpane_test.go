package app

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedPane(limit int) *logPane {
	p := newLogPane(nil)
	p.limit = limit
	p.clock = func() time.Time { return time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC) }
	return p
}

func TestLogPaneTakeOnlyWhenDirty(t *testing.T) {
	p := fixedPane(10)
	_, ok := p.take()
	assert.False(t, ok)

	p.Append("loaded")
	p.Append("done")
	text, ok := p.take()
	assert.True(t, ok)
	assert.Equal(t, "[09:30:00] loaded\n[09:30:00] done", text)

	_, ok = p.take()
	assert.False(t, ok)
}

func TestLogPaneKeepsNewestLines(t *testing.T) {
	p := fixedPane(3)
	for i := 0; i < 5; i++ {
		p.Append(fmt.Sprintf("line %d", i))
	}
	text, ok := p.take()
	assert.True(t, ok)
	lines := strings.Split(text, "\n")
	assert.Equal(t, []string{"[09:30:00] line 2", "[09:30:00] line 3", "[09:30:00] line 4"}, lines)
}
