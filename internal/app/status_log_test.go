package app

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLog_AppendAndSnapshot(t *testing.T) {
	log := NewStatusLog(10)
	log.Append("first")
	log.Append("second")

	lines := log.Snapshot()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")
}

func TestStatusLog_EvictsOldestAtCapacity(t *testing.T) {
	log := NewStatusLog(100)
	for i := 0; i < 150; i++ {
		log.Append(fmt.Sprintf("line %d", i))
	}

	lines := log.Snapshot()
	require.Len(t, lines, 100)
	assert.True(t, strings.HasSuffix(lines[0], "line 50"))
	assert.True(t, strings.HasSuffix(lines[99], "line 149"))
}

func TestStatusLog_AppendAllBatch(t *testing.T) {
	log := NewStatusLog(3)
	log.AppendAll([]string{"a", "b", "c", "d", "e"})

	lines := log.Snapshot()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "c")
	assert.Contains(t, lines[2], "e")
}

func TestStatusLog_SnapshotIsCopy(t *testing.T) {
	log := NewStatusLog(10)
	log.Append("original")

	lines := log.Snapshot()
	lines[0] = "mutated"

	assert.Contains(t, log.Snapshot()[0], "original")
}
