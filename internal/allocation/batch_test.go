package allocation

import (
	"fmt"
	"math/rand"
	"testing"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/waitlist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancedAllocation_ScoreOrdered(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())

	course := makeCourse("C", 3, domain.BookingOpen)

	scores := map[string]float64{
		"S1": 0.95, "S2": 0.92, "S3": 0.88, "S4": 0.85, "S5": 0.78,
	}
	prefs := make(map[string]*domain.StudentCoursePreferences)
	for _, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		store.Add("C", id, scores[id])
		prefs[id] = prefsFor(id, "C")
	}

	results := engine.RunBatchAllocation([]*domain.Course{course}, prefs)

	for _, id := range []string{"S1", "S2", "S3"} {
		require.Len(t, results[id], 1, id)
		assert.Equal(t, domain.StatusRegistered, results[id][0].Status, id)
	}
	for _, id := range []string{"S4", "S5"} {
		require.Len(t, results[id], 1, id)
		assert.Equal(t, domain.StatusWaitlisted, results[id][0].Status, id)
		assert.False(t, results[id][0].Success)
	}

	assert.Equal(t, 3, course.CurrentEnrollment)
	assert.Equal(t, 2, store.Size("C"))

	pos, _ := store.Position("C", "S4")
	assert.Equal(t, 1, pos)
	pos, _ = store.Position("C", "S5")
	assert.Equal(t, 2, pos)
}

func TestBalancedAllocation_TieBrokenByStudentPriority(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())

	course := makeCourse("C", 1, domain.BookingOpen)

	store.Add("C", "second-choice", 0.9)
	store.Add("C", "first-choice", 0.9)

	prefs := map[string]*domain.StudentCoursePreferences{
		"second-choice": prefsFor("second-choice", "other", "C"),
		"first-choice":  prefsFor("first-choice", "C"),
	}

	results := engine.RunBatchAllocation([]*domain.Course{course}, prefs)

	assert.Equal(t, domain.StatusRegistered, results["first-choice"][0].Status)
	assert.Equal(t, domain.StatusWaitlisted, results["second-choice"][0].Status)
}

func TestBalancedAllocation_OneAllocationPerStudentPerBatch(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())

	courseA := makeCourse("A", 5, domain.BookingOpen)
	courseB := makeCourse("B", 5, domain.BookingOpen)

	store.Add("A", "alice", 0.9)
	store.Add("B", "alice", 0.8)

	prefs := map[string]*domain.StudentCoursePreferences{
		"alice": prefsFor("alice", "A", "B"),
	}

	results := engine.RunBatchAllocation([]*domain.Course{courseA, courseB}, prefs)

	require.Len(t, results["alice"], 1)
	assert.Equal(t, domain.StatusRegistered, results["alice"][0].Status)
	assert.Equal(t, "A", results["alice"][0].CourseID)

	// The losing application stays on B's waitlist for the next batch.
	assert.Equal(t, 1, store.Size("B"))
	assert.Equal(t, 0, store.Size("A"))
}

func TestBalancedAllocation_RespectsOversubscription(t *testing.T) {
	config := DefaultConfig()
	config.AllowOversubscription = 0.5
	engine, store := newTestEngine(t, config)

	course := makeCourse("C", 2, domain.BookingOpen) // effective cap 3

	prefs := make(map[string]*domain.StudentCoursePreferences)
	for i, id := range []string{"S1", "S2", "S3", "S4"} {
		store.Add("C", id, 0.9-float64(i)*0.1)
		prefs[id] = prefsFor(id, "C")
	}

	engine.RunBatchAllocation([]*domain.Course{course}, prefs)

	assert.Equal(t, 3, course.CurrentEnrollment)
	assert.Equal(t, 1, store.Size("C"))
}

func TestBalancedAllocation_SkipsIneligibleStates(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())

	started := makeCourse("S", 5, domain.CourseStarted)
	completed := makeCourse("D", 5, domain.CourseCompleted)
	store.Add("S", "alice", 0.9)
	store.Add("D", "bob", 0.9)

	results := engine.RunBatchAllocation(
		[]*domain.Course{started, completed},
		map[string]*domain.StudentCoursePreferences{},
	)

	assert.Empty(t, results)
	assert.Equal(t, 0, started.CurrentEnrollment)
	assert.Equal(t, 1, store.Size("S"))
}

func TestGreedyAllocation_SharesBalancedImplementation(t *testing.T) {
	config := DefaultConfig()
	config.Strategy = StrategyGreedy
	engine, store := newTestEngine(t, config)

	course := makeCourse("C", 1, domain.BookingOpen)
	store.Add("C", "low", 0.5)
	store.Add("C", "high", 0.9)

	results := engine.RunBatchAllocation([]*domain.Course{course},
		map[string]*domain.StudentCoursePreferences{
			"low":  prefsFor("low", "C"),
			"high": prefsFor("high", "C"),
		})

	assert.Equal(t, domain.StatusRegistered, results["high"][0].Status)
	assert.Equal(t, domain.StatusWaitlisted, results["low"][0].Status)
}

// blockingPair reports whether any (student, course) pair both strictly
// prefer each other over their allocated outcome.
func blockingPair(
	t *testing.T,
	store waitlist.Store,
	courses map[string]*domain.Course,
	prefs map[string]*domain.StudentCoursePreferences,
	assigned map[string]string, // student -> allocated course ("" = none)
	scores map[string]map[string]float64, // student -> course -> score
	seats map[string][]string, // course -> allocated students
) bool {
	t.Helper()

	rank := func(studentID, courseID string) int {
		return prefs[studentID].GetPriority(courseID)
	}

	for studentID := range prefs {
		for _, courseID := range prefs[studentID].CourseIDs {
			if _, scored := scores[studentID][courseID]; !scored {
				continue
			}
			// Student strictly prefers courseID over their assignment?
			current := assigned[studentID]
			if current != "" && rank(studentID, courseID) >= rank(studentID, current) {
				continue
			}
			// Course strictly prefers this student: either a free seat or
			// an admitted student with a lower score.
			course := courses[courseID]
			admitted := seats[courseID]
			if len(admitted) < course.Capacity {
				return true
			}
			for _, seated := range admitted {
				if scores[studentID][courseID] > scores[seated][courseID] {
					return true
				}
			}
		}
	}
	return false
}

func TestStudentOptimalAllocation_Stable(t *testing.T) {
	config := DefaultConfig()
	config.Strategy = StrategyStudentOptimal
	engine, store := newTestEngine(t, config)

	courses := map[string]*domain.Course{
		"A": makeCourse("A", 1, domain.BookingOpen),
		"B": makeCourse("B", 1, domain.BookingOpen),
		"C": makeCourse("C", 1, domain.BookingOpen),
	}

	scores := map[string]map[string]float64{
		"s1": {"A": 0.9, "B": 0.8, "C": 0.7},
		"s2": {"A": 0.85, "B": 0.9, "C": 0.6},
		"s3": {"A": 0.7, "B": 0.75, "C": 0.9},
	}
	prefs := map[string]*domain.StudentCoursePreferences{
		"s1": prefsFor("s1", "A", "B", "C"),
		"s2": prefsFor("s2", "A", "B", "C"),
		"s3": prefsFor("s3", "B", "C", "A"),
	}

	for studentID, byCourse := range scores {
		for courseID, score := range byCourse {
			store.Add(courseID, studentID, score)
		}
	}

	courseList := []*domain.Course{courses["A"], courses["B"], courses["C"]}
	results := engine.RunBatchAllocation(courseList, prefs)

	assigned := map[string]string{}
	seats := map[string][]string{}
	registeredCount := 0
	for studentID, studentResults := range results {
		require.Len(t, studentResults, 1, studentID)
		result := studentResults[0]
		assert.Equal(t, domain.StatusRegistered, result.Status)
		assigned[studentID] = result.CourseID
		seats[result.CourseID] = append(seats[result.CourseID], studentID)
		registeredCount++
	}

	assert.Equal(t, 3, registeredCount)
	for _, course := range courseList {
		assert.LessOrEqual(t, course.CurrentEnrollment, course.Capacity)
	}

	assert.False(t, blockingPair(t, store, courses, prefs, assigned, scores, seats),
		"allocation must contain no blocking pair")
}

func TestStudentOptimalAllocation_RejectedStudentsStayWaitlisted(t *testing.T) {
	config := DefaultConfig()
	config.Strategy = StrategyStudentOptimal
	engine, store := newTestEngine(t, config)

	course := makeCourse("A", 1, domain.BookingOpen)

	store.Add("A", "strong", 0.9)
	store.Add("A", "weak", 0.5)

	prefs := map[string]*domain.StudentCoursePreferences{
		"strong": prefsFor("strong", "A"),
		"weak":   prefsFor("weak", "A"),
	}

	results := engine.RunBatchAllocation([]*domain.Course{course}, prefs)

	assert.Equal(t, domain.StatusRegistered, results["strong"][0].Status)
	assert.Empty(t, results["weak"])
	assert.Equal(t, 1, store.Size("A"))

	pos, ok := store.Position("A", "weak")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestCourseOptimalAllocation_FillsSeatsFromWaitlists(t *testing.T) {
	config := DefaultConfig()
	config.Strategy = StrategyCourseOptimal
	engine, store := newTestEngine(t, config)

	courseA := makeCourse("A", 1, domain.BookingOpen)
	courseB := makeCourse("B", 1, domain.BookingOpen)

	// Both courses rank alice first, but alice prefers A; bob backfills B.
	store.Add("A", "alice", 0.95)
	store.Add("B", "alice", 0.9)
	store.Add("B", "bob", 0.7)

	prefs := map[string]*domain.StudentCoursePreferences{
		"alice": prefsFor("alice", "A", "B"),
		"bob":   prefsFor("bob", "B"),
	}

	results := engine.RunBatchAllocation([]*domain.Course{courseA, courseB}, prefs)

	require.Len(t, results["alice"], 1)
	assert.Equal(t, "A", results["alice"][0].CourseID)
	require.Len(t, results["bob"], 1)
	assert.Equal(t, "B", results["bob"][0].CourseID)

	assert.Equal(t, 1, courseA.CurrentEnrollment)
	assert.Equal(t, 1, courseB.CurrentEnrollment)
}

func TestBatchAllocation_HighContentionStress(t *testing.T) {
	const (
		numStudents = 800
		capacity    = 200
	)

	engine, store := newTestEngine(t, DefaultConfig())
	course := makeCourse("ML500", capacity, domain.BookingClosed)

	// Score strictly monotone in GPA: every other factor held constant.
	rng := rand.New(rand.NewSource(7))
	gpaByStudent := make(map[string]float64, numStudents)
	prefs := make(map[string]*domain.StudentCoursePreferences, numStudents)

	for i := 0; i < numStudents; i++ {
		studentID := fmt.Sprintf("STU%04d", i)
		gpa := 2.0 + rng.Float64()*2.0
		gpaByStudent[studentID] = gpa

		// gpa_weight * normalized gpa dominates; the rest is constant.
		score := 0.35*(gpa/4.0) + 0.5
		store.Add("ML500", studentID, score)
		prefs[studentID] = prefsFor(studentID, "ML500")
	}

	results := engine.RunBatchAllocation([]*domain.Course{course}, prefs)

	assert.Equal(t, capacity, course.CurrentEnrollment)
	assert.Equal(t, numStudents-capacity, store.Size("ML500"))

	enrolledGPA, waitingGPA := 0.0, 0.0
	minEnrolledScore := 2.0
	for studentID, studentResults := range results {
		require.Len(t, studentResults, 1)
		result := studentResults[0]
		if result.Status == domain.StatusRegistered {
			enrolledGPA += gpaByStudent[studentID]
			if *result.Score < minEnrolledScore {
				minEnrolledScore = *result.Score
			}
		} else {
			waitingGPA += gpaByStudent[studentID]
		}
	}
	enrolledGPA /= float64(capacity)
	waitingGPA /= float64(numStudents - capacity)

	assert.Greater(t, enrolledGPA, waitingGPA,
		"enrolled cohort must out-GPA the remaining waitlist")

	// Monotone cut: no remaining waiter outscores any enrolled student.
	remaining := store.All("ML500")
	require.NotEmpty(t, remaining)
	assert.GreaterOrEqual(t, minEnrolledScore, remaining[0].Score)
}
