package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/einstein-academy/course-registration/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// RedisStore backs the Store contract with one Redis sorted set per
// course, scored by composite score. Per-course locks use SET NX with
// expiry so a crashed holder cannot block vacancy fills.
//
// Key schema:
//
//	waitlist:course:<course_id>   ZSET  student_id -> composite score
//	waitlist:student:<student_id> SET   course_ids the student waits on
//	lock:course:<course_id>       string, NX + TTL
//
// Redis orders equal scores lexicographically by member, so exact
// insertion-order ties are only guaranteed by the MemoryStore. Redis
// failures are logged and surfaced as empty results, matching the
// contract that lookups never fail.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

func courseKey(courseID string) string {
	return fmt.Sprintf("waitlist:course:%s", courseID)
}

func studentKey(studentID string) string {
	return fmt.Sprintf("waitlist:student:%s", studentID)
}

func lockKey(courseID string) string {
	return fmt.Sprintf("lock:course:%s", courseID)
}

func (s *RedisStore) Add(courseID, studentID string, score float64) {
	ctx := context.Background()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, courseKey(courseID), &redis.Z{Score: score, Member: studentID})
	pipe.SAdd(ctx, studentKey(studentID), courseID)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("Failed to add %s to waitlist for %s: %v", studentID, courseID, err)
	}
}

func (s *RedisStore) Remove(courseID, studentID string) bool {
	ctx := context.Background()

	removed, err := s.client.ZRem(ctx, courseKey(courseID), studentID).Result()
	if err != nil {
		logger.Error("Failed to remove %s from waitlist for %s: %v", studentID, courseID, err)
		return false
	}
	if removed > 0 {
		s.client.SRem(ctx, studentKey(studentID), courseID)
	}
	return removed > 0
}

func (s *RedisStore) UpdateScore(courseID, studentID string, newScore float64) bool {
	ctx := context.Background()

	// Present-only: XX prevents creating an entry for an absent student.
	updated, err := s.client.ZAddXXCh(ctx, courseKey(courseID), &redis.Z{
		Score:  newScore,
		Member: studentID,
	}).Result()
	if err != nil {
		logger.Error("Failed to update score for %s in %s: %v", studentID, courseID, err)
		return false
	}
	if updated > 0 {
		return true
	}
	_, exists := s.Score(courseID, studentID)
	return exists
}

func (s *RedisStore) Score(courseID, studentID string) (float64, bool) {
	score, err := s.client.ZScore(context.Background(), courseKey(courseID), studentID).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Error("Failed to read score for %s in %s: %v", studentID, courseID, err)
		}
		return 0, false
	}
	return score, true
}

func (s *RedisStore) Position(courseID, studentID string) (int, bool) {
	rank, err := s.client.ZRevRank(context.Background(), courseKey(courseID), studentID).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Error("Failed to read rank for %s in %s: %v", studentID, courseID, err)
		}
		return 0, false
	}
	return int(rank) + 1, true
}

func (s *RedisStore) TopK(courseID string, k int) []Entry {
	if k <= 0 {
		return nil
	}
	return s.revRange(courseID, 0, int64(k)-1)
}

func (s *RedisStore) All(courseID string) []Entry {
	return s.revRange(courseID, 0, -1)
}

func (s *RedisStore) revRange(courseID string, start, stop int64) []Entry {
	members, err := s.client.ZRevRangeWithScores(context.Background(), courseKey(courseID), start, stop).Result()
	if err != nil {
		logger.Error("Failed to read waitlist for %s: %v", courseID, err)
		return nil
	}

	entries := make([]Entry, 0, len(members))
	for _, z := range members {
		studentID, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{StudentID: studentID, Score: z.Score})
	}
	return entries
}

func (s *RedisStore) PopTop(courseID string) (Entry, bool) {
	ctx := context.Background()

	popped, err := s.client.ZPopMax(ctx, courseKey(courseID), 1).Result()
	if err != nil {
		logger.Error("Failed to pop waitlist head for %s: %v", courseID, err)
		return Entry{}, false
	}
	if len(popped) == 0 {
		return Entry{}, false
	}

	studentID, ok := popped[0].Member.(string)
	if !ok {
		return Entry{}, false
	}
	s.client.SRem(ctx, studentKey(studentID), courseID)
	return Entry{StudentID: studentID, Score: popped[0].Score}, true
}

func (s *RedisStore) Size(courseID string) int {
	count, err := s.client.ZCard(context.Background(), courseKey(courseID)).Result()
	if err != nil {
		logger.Error("Failed to read waitlist size for %s: %v", courseID, err)
		return 0
	}
	return int(count)
}

func (s *RedisStore) StudentPositions(studentID string, courseIDs []string) map[string]int {
	positions := make(map[string]int, len(courseIDs))
	for _, courseID := range courseIDs {
		if pos, ok := s.Position(courseID, studentID); ok {
			positions[courseID] = pos
		}
	}
	return positions
}

func (s *RedisStore) AcquireLock(courseID string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	acquired, err := s.client.SetNX(context.Background(), lockKey(courseID), "locked", ttl).Result()
	if err != nil {
		logger.Error("Failed to acquire lock for %s: %v", courseID, err)
		return false
	}
	return acquired
}

func (s *RedisStore) ReleaseLock(courseID string) {
	if err := s.client.Del(context.Background(), lockKey(courseID)).Err(); err != nil {
		logger.Error("Failed to release lock for %s: %v", courseID, err)
	}
}
