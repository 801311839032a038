package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mj1618/deskmirror/internal/output"
)

func stamps(records []output.EventRecord) []int64 {
	var out []int64
	for _, r := range records {
		out = append(out, r.TS)
	}
	return out
}

func TestEventLogKeepsNewest(t *testing.T) {
	l := NewEventLog(3)
	assert.Empty(t, l.Recent(0))

	for ts := int64(1); ts <= 2; ts++ {
		l.Add(output.EventRecord{TS: ts})
	}
	assert.Equal(t, []int64{1, 2}, stamps(l.Recent(0)))

	for ts := int64(3); ts <= 5; ts++ {
		l.Add(output.EventRecord{TS: ts})
	}
	assert.Equal(t, []int64{3, 4, 5}, stamps(l.Recent(0)))
	assert.Equal(t, []int64{4, 5}, stamps(l.Recent(2)))
	assert.Equal(t, []int64{3, 4, 5}, stamps(l.Recent(10)))
	assert.Equal(t, 5, l.Total())
}

func TestEventLogDefaultSize(t *testing.T) {
	l := NewEventLog(0)
	for i := 0; i < DefaultEventLogSize+10; i++ {
		l.Add(output.EventRecord{TS: int64(i)})
	}
	got := l.Recent(0)
	assert.Len(t, got, DefaultEventLogSize)
	assert.Equal(t, int64(10), got[0].TS)
}
