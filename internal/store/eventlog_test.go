package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismoguard/quake-ingest/internal/domain"
)

func TestEventLog(t *testing.T) {
	t.Run("prepend keeps newest first", func(t *testing.T) {
		l := NewEventLog(10)
		l.Prepend(domain.QuakeEvent{ID: "older"})
		l.Prepend(domain.QuakeEvent{ID: "newer"})

		got := l.Snapshot()
		require.Len(t, got, 2)
		assert.Equal(t, "newer", got[0].ID)
		assert.Equal(t, "older", got[1].ID)
	})

	t.Run("capacity trims the tail", func(t *testing.T) {
		l := NewEventLog(3)
		for i := 0; i < 5; i++ {
			l.Prepend(domain.QuakeEvent{ID: fmt.Sprintf("q%d", i)})
		}
		got := l.Snapshot()
		require.Len(t, got, 3)
		assert.Equal(t, "q4", got[0].ID)
		assert.Equal(t, "q2", got[2].ID)
	})

	t.Run("snapshot is isolated from later writes", func(t *testing.T) {
		l := NewEventLog(10)
		l.Prepend(domain.QuakeEvent{ID: "first"})
		snap := l.Snapshot()
		l.Prepend(domain.QuakeEvent{ID: "second"})

		require.Len(t, snap, 1)
		assert.Equal(t, "first", snap[0].ID)
		assert.Equal(t, 2, l.Len())
	})
}
