package serialport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedClock(t int64) func() int64 {
	return func() int64 { return t }
}

func TestHistoryRecordAndSnapshot(t *testing.T) {
	h := NewHistory(fixedClock(1000))
	h.Record(Sent, "STATUS")
	h.Record(Received, "STATUS:READY")

	snap := h.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, Sent, snap[0].Direction)
	require.Equal(t, "STATUS", snap[0].Text)
	require.Equal(t, Received, snap[1].Direction)
}

func TestHistoryWrapsAtCapacity(t *testing.T) {
	h := NewHistory(fixedClock(1))
	for i := 0; i < defaultCapacity+10; i++ {
		h.Record(System, "line")
	}
	snap := h.Snapshot()
	require.Len(t, snap, defaultCapacity)
}

func TestHistoryPreservesOrderAfterWrap(t *testing.T) {
	h := NewHistory(fixedClock(1))
	for i := 0; i < defaultCapacity+3; i++ {
		h.Record(System, string(rune('a'+i%26)))
	}
	snap := h.Snapshot()
	require.Len(t, snap, defaultCapacity)
	// the three oldest entries should have rolled off
	require.Equal(t, string(rune('a'+3%26)), snap[0].Text)
}
