package waitlist

import (
	"sort"
	"sync"
	"time"
)

// memoryEntry augments an Entry with the insertion sequence used for
// stable tie-breaking.
type memoryEntry struct {
	studentID string
	score     float64
	seq       uint64
}

// courseIndex is one course's priority index: a slice ordered by
// (-score, seq) plus a hash from student to its entry.
type courseIndex struct {
	ordered []memoryEntry
	byID    map[string]memoryEntry
}

// MemoryStore is the in-process reference backend. Entries are kept in
// an ordered slice keyed by (-score, insertion_seq) with a hash index
// by student, giving O(log N) rank queries and deterministic tie order.
type MemoryStore struct {
	mu      sync.RWMutex
	courses map[string]*courseIndex
	nextSeq uint64
	locks   *lockTable
}

// NewMemoryStore creates an empty in-memory waitlist store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses: make(map[string]*courseIndex),
		locks:   newLockTable(),
	}
}

var _ Store = (*MemoryStore)(nil)

// before reports whether a ranks ahead of b: higher score first, then
// earlier insertion.
func (e memoryEntry) before(other memoryEntry) bool {
	if e.score != other.score {
		return e.score > other.score
	}
	return e.seq < other.seq
}

// rankOf locates the entry's slot in the ordered slice.
func (c *courseIndex) rankOf(entry memoryEntry) int {
	return sort.Search(len(c.ordered), func(i int) bool {
		return !c.ordered[i].before(entry)
	})
}

func (c *courseIndex) insert(entry memoryEntry) {
	at := c.rankOf(entry)
	c.ordered = append(c.ordered, memoryEntry{})
	copy(c.ordered[at+1:], c.ordered[at:])
	c.ordered[at] = entry
	c.byID[entry.studentID] = entry
}

func (c *courseIndex) delete(entry memoryEntry) {
	at := c.rankOf(entry)
	c.ordered = append(c.ordered[:at], c.ordered[at+1:]...)
	delete(c.byID, entry.studentID)
}

func (s *MemoryStore) course(courseID string) *courseIndex {
	idx, ok := s.courses[courseID]
	if !ok {
		idx = &courseIndex{byID: make(map[string]memoryEntry)}
		s.courses[courseID] = idx
	}
	return idx
}

// Add inserts or overwrites the student's entry. Overwriting keeps the
// original insertion sequence, so a re-scored entry still ranks by its
// first insertion among equal scores.
func (s *MemoryStore) Add(courseID, studentID string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.course(courseID)
	seq := s.nextSeq + 1
	if existing, ok := idx.byID[studentID]; ok {
		seq = existing.seq
		idx.delete(existing)
	} else {
		s.nextSeq++
	}

	idx.insert(memoryEntry{studentID: studentID, score: score, seq: seq})
}

func (s *MemoryStore) Remove(courseID, studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.courses[courseID]
	if !ok {
		return false
	}
	entry, ok := idx.byID[studentID]
	if !ok {
		return false
	}

	idx.delete(entry)
	return true
}

func (s *MemoryStore) UpdateScore(courseID, studentID string, newScore float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.courses[courseID]
	if !ok {
		return false
	}
	entry, ok := idx.byID[studentID]
	if !ok {
		return false
	}

	idx.delete(entry)
	idx.insert(memoryEntry{studentID: studentID, score: newScore, seq: entry.seq})
	return true
}

func (s *MemoryStore) Score(courseID, studentID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.courses[courseID]
	if !ok {
		return 0, false
	}
	entry, ok := idx.byID[studentID]
	if !ok {
		return 0, false
	}
	return entry.score, true
}

func (s *MemoryStore) Position(courseID, studentID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.courses[courseID]
	if !ok {
		return 0, false
	}
	entry, ok := idx.byID[studentID]
	if !ok {
		return 0, false
	}
	return idx.rankOf(entry) + 1, true
}

func (s *MemoryStore) TopK(courseID string, k int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.courses[courseID]
	if !ok || k <= 0 {
		return nil
	}
	if k > len(idx.ordered) {
		k = len(idx.ordered)
	}

	top := make([]Entry, 0, k)
	for _, entry := range idx.ordered[:k] {
		top = append(top, Entry{StudentID: entry.studentID, Score: entry.score})
	}
	return top
}

func (s *MemoryStore) All(courseID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.courses[courseID]
	if !ok {
		return nil
	}

	all := make([]Entry, 0, len(idx.ordered))
	for _, entry := range idx.ordered {
		all = append(all, Entry{StudentID: entry.studentID, Score: entry.score})
	}
	return all
}

func (s *MemoryStore) PopTop(courseID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.courses[courseID]
	if !ok || len(idx.ordered) == 0 {
		return Entry{}, false
	}

	top := idx.ordered[0]
	idx.delete(top)
	return Entry{StudentID: top.studentID, Score: top.score}, true
}

func (s *MemoryStore) Size(courseID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.courses[courseID]
	if !ok {
		return 0
	}
	return len(idx.ordered)
}

func (s *MemoryStore) StudentPositions(studentID string, courseIDs []string) map[string]int {
	positions := make(map[string]int, len(courseIDs))
	for _, courseID := range courseIDs {
		if pos, ok := s.Position(courseID, studentID); ok {
			positions[courseID] = pos
		}
	}
	return positions
}

func (s *MemoryStore) AcquireLock(courseID string, ttl time.Duration) bool {
	return s.locks.tryAcquire(courseID, ttl)
}

func (s *MemoryStore) ReleaseLock(courseID string) {
	s.locks.release(courseID)
}
