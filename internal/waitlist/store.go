// Package waitlist maintains per-course priority indices of scored
// applicants. The reference backend is the in-memory MemoryStore; the
// RedisStore backs the same contract with a Redis sorted set per course
// for multi-process deployments.
package waitlist

import "time"

// Entry is one (student, score) pair in a course's waitlist.
type Entry struct {
	StudentID string
	Score     float64
}

// DefaultLockTTL bounds how long a crashed holder can block a course.
const DefaultLockTTL = 30 * time.Second

// Store is the per-course priority index contract. Ordering is by
// descending score; equal scores rank by insertion order. Lookups on an
// unknown course return zero values, never fail; Add creates the
// course's waitlist lazily.
type Store interface {
	// Add inserts or overwrites the student's entry. Idempotent per
	// (course, student).
	Add(courseID, studentID string, score float64)

	// Remove deletes the student's entry if present, reporting whether
	// anything was removed.
	Remove(courseID, studentID string) bool

	// UpdateScore changes the score of an existing entry. Returns false
	// without side effects when the student is not waitlisted.
	UpdateScore(courseID, studentID string, newScore float64) bool

	// Score returns the student's stored score, or ok=false.
	Score(courseID, studentID string) (float64, bool)

	// Position returns the student's 1-based rank (highest score = 1),
	// or ok=false when not waitlisted.
	Position(courseID, studentID string) (int, bool)

	// TopK returns up to k entries in descending priority order.
	TopK(courseID string, k int) []Entry

	// All returns the full waitlist in descending priority order.
	All(courseID string) []Entry

	// PopTop atomically removes and returns the highest-priority entry,
	// or ok=false when the waitlist is empty.
	PopTop(courseID string) (Entry, bool)

	// Size returns the number of waitlisted students.
	Size(courseID string) int

	// StudentPositions reports the student's 1-based position for each
	// of the given courses; absent courses are omitted.
	StudentPositions(studentID string, courseIDs []string) map[string]int

	// AcquireLock tries to take the course's advisory lock with the
	// given TTL. Fail-fast: returns false when already held.
	AcquireLock(courseID string, ttl time.Duration) bool

	// ReleaseLock releases the course's advisory lock.
	ReleaseLock(courseID string)
}
