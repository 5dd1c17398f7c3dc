package waitlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AddAndPosition(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "alice", 0.9)
	store.Add("CS101", "bob", 0.8)
	store.Add("CS101", "carol", 0.95)

	pos, ok := store.Position("CS101", "carol")
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	pos, _ = store.Position("CS101", "alice")
	assert.Equal(t, 2, pos)

	pos, _ = store.Position("CS101", "bob")
	assert.Equal(t, 3, pos)

	assert.Equal(t, 3, store.Size("CS101"))
}

func TestMemoryStore_AddIsIdempotentPerStudent(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "alice", 0.5)
	store.Add("CS101", "alice", 0.9)

	assert.Equal(t, 1, store.Size("CS101"))
	score, ok := store.Score("CS101", "alice")
	require.True(t, ok)
	assert.Equal(t, 0.9, score)
}

func TestMemoryStore_TiesRankByInsertionOrder(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "first", 0.8)
	store.Add("CS101", "second", 0.8)
	store.Add("CS101", "third", 0.8)

	pos, _ := store.Position("CS101", "first")
	assert.Equal(t, 1, pos)
	pos, _ = store.Position("CS101", "second")
	assert.Equal(t, 2, pos)
	pos, _ = store.Position("CS101", "third")
	assert.Equal(t, 3, pos)

	// Position equals 1 + count of strictly better or earlier-equal entries.
	store.Add("CS101", "late-high", 0.9)
	pos, _ = store.Position("CS101", "first")
	assert.Equal(t, 2, pos)
}

func TestMemoryStore_OverwriteKeepsTieOrder(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "first", 0.8)
	store.Add("CS101", "second", 0.8)

	// Re-adding at the same score does not move the entry behind its tie.
	store.Add("CS101", "first", 0.8)
	pos, _ := store.Position("CS101", "first")
	assert.Equal(t, 1, pos)

	// An equal-score update keeps the original insertion rank too.
	require.True(t, store.UpdateScore("CS101", "first", 0.8))
	pos, _ = store.Position("CS101", "first")
	assert.Equal(t, 1, pos)

	// Dropping and regaining the same score still ranks by first insertion.
	require.True(t, store.UpdateScore("CS101", "second", 0.9))
	require.True(t, store.UpdateScore("CS101", "second", 0.8))
	pos, _ = store.Position("CS101", "second")
	assert.Equal(t, 2, pos)
}

func TestMemoryStore_TopKAndAll(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "alice", 0.7)
	store.Add("CS101", "bob", 0.9)
	store.Add("CS101", "carol", 0.8)

	top := store.TopK("CS101", 2)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].StudentID)
	assert.Equal(t, "carol", top[1].StudentID)

	all := store.All("CS101")
	require.Len(t, all, 3)
	assert.Equal(t, "alice", all[2].StudentID)

	// k beyond size clamps.
	assert.Len(t, store.TopK("CS101", 10), 3)
}

func TestMemoryStore_PopTop(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "alice", 0.7)
	store.Add("CS101", "bob", 0.9)

	entry, ok := store.PopTop("CS101")
	require.True(t, ok)
	assert.Equal(t, "bob", entry.StudentID)
	assert.Equal(t, 0.9, entry.Score)
	assert.Equal(t, 1, store.Size("CS101"))

	entry, ok = store.PopTop("CS101")
	require.True(t, ok)
	assert.Equal(t, "alice", entry.StudentID)

	_, ok = store.PopTop("CS101")
	assert.False(t, ok)
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "alice", 0.7)
	assert.True(t, store.Remove("CS101", "alice"))
	assert.False(t, store.Remove("CS101", "alice"))
	assert.Equal(t, 0, store.Size("CS101"))
}

func TestMemoryStore_UpdateScorePresentOnly(t *testing.T) {
	store := NewMemoryStore()

	assert.False(t, store.UpdateScore("CS101", "ghost", 0.5))

	store.Add("CS101", "alice", 0.5)
	store.Add("CS101", "bob", 0.6)

	assert.True(t, store.UpdateScore("CS101", "alice", 0.9))
	pos, _ := store.Position("CS101", "alice")
	assert.Equal(t, 1, pos)
}

func TestMemoryStore_UnknownCourseLookups(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Score("ghost", "alice")
	assert.False(t, ok)
	_, ok = store.Position("ghost", "alice")
	assert.False(t, ok)
	assert.Nil(t, store.TopK("ghost", 5))
	assert.Nil(t, store.All("ghost"))
	assert.Equal(t, 0, store.Size("ghost"))
	assert.False(t, store.Remove("ghost", "alice"))
}

func TestMemoryStore_StudentPositions(t *testing.T) {
	store := NewMemoryStore()

	store.Add("CS101", "alice", 0.9)
	store.Add("CS102", "alice", 0.7)
	store.Add("CS102", "bob", 0.8)

	positions := store.StudentPositions("alice", []string{"CS101", "CS102", "CS103"})
	assert.Equal(t, map[string]int{"CS101": 1, "CS102": 2}, positions)
}

func TestMemoryStore_LockIsFailFast(t *testing.T) {
	store := NewMemoryStore()

	require.True(t, store.AcquireLock("CS101", time.Minute))
	assert.False(t, store.AcquireLock("CS101", time.Minute))

	// Independent courses lock independently.
	assert.True(t, store.AcquireLock("CS102", time.Minute))

	store.ReleaseLock("CS101")
	assert.True(t, store.AcquireLock("CS101", time.Minute))
}

func TestLockTable_TTLExpiry(t *testing.T) {
	table := newLockTable()

	now := time.Now()
	table.now = func() time.Time { return now }

	require.True(t, table.tryAcquire("CS101", 30*time.Second))
	assert.False(t, table.tryAcquire("CS101", 30*time.Second))

	// A crashed holder frees the course after the TTL.
	now = now.Add(31 * time.Second)
	assert.True(t, table.tryAcquire("CS101", 30*time.Second))
}
