package allocation

import (
	"fmt"
	"sort"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/waitlist"
	"github.com/einstein-academy/course-registration/pkg/logger"
)

// RunBatchAllocation converts waitlist entries into enrollments for the
// given courses under the configured strategy.
//
// Invariants across strategies:
//   - each student receives at most one new allocation per batch
//   - no course exceeds floor(capacity * (1 + oversubscription))
//   - capacity accounting is shared across the whole batch
//   - students already enrolled in a course are never re-enrolled by it
func (e *Engine) RunBatchAllocation(courses []*domain.Course, preferences map[string]*domain.StudentCoursePreferences) map[string][]domain.AllocationResult {
	switch e.config.Strategy {
	case StrategyStudentOptimal:
		return e.studentOptimalAllocation(courses, preferences)
	case StrategyCourseOptimal:
		return e.courseOptimalAllocation(courses, preferences)
	default: // balanced and greedy share one implementation
		return e.balancedAllocation(courses, preferences)
	}
}

// batchEntry is one (student, course) tuple gathered from a waitlist.
type batchEntry struct {
	studentID string
	courseID  string
	score     float64
	priority  int
}

// eligibleForBatch reports whether a course's waitlist participates in
// batch allocation.
func eligibleForBatch(course *domain.Course) bool {
	return course.BookingState == domain.BookingOpen || course.BookingState == domain.BookingClosed
}

// balancedAllocation processes all waitlist entries globally ordered by
// (-score, priority): the best matches win regardless of which course
// they wait on, with the student's own ranking breaking score ties.
func (e *Engine) balancedAllocation(courses []*domain.Course, preferences map[string]*domain.StudentCoursePreferences) map[string][]domain.AllocationResult {
	results := make(map[string][]domain.AllocationResult)

	var entries []batchEntry
	for _, course := range courses {
		if !eligibleForBatch(course) {
			continue
		}
		for _, entry := range e.waitlist.All(course.CourseID) {
			priority := domain.NoPreferenceRank
			if prefs, ok := preferences[entry.StudentID]; ok {
				priority = prefs.GetPriority(course.CourseID)
			}
			entries = append(entries, batchEntry{
				studentID: entry.StudentID,
				courseID:  course.CourseID,
				score:     entry.Score,
				priority:  priority,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].priority < entries[j].priority
	})

	courseMap := make(map[string]*domain.Course, len(courses))
	for _, course := range courses {
		courseMap[course.CourseID] = course
	}

	allocated := make(map[string]string) // student_id -> course_id this batch

	for _, entry := range entries {
		if _, done := allocated[entry.studentID]; done {
			continue
		}

		course, ok := courseMap[entry.courseID]
		if !ok {
			continue
		}

		if e.IsEnrolled(entry.studentID, entry.courseID) {
			continue
		}

		// commitAllocation bumps CurrentEnrollment, so the counter already
		// includes the seats filled earlier in this batch.
		effectiveCap := course.EffectiveCapacity(e.config.AllowOversubscription)
		if e.currentEnrollment(course) >= effectiveCap {
			score := entry.score
			result := waitlisted(entry.studentID, entry.courseID,
				"Course capacity reached. Remaining on waitlist.", &score)
			result.Success = false
			if pos, ok := e.waitlist.Position(entry.courseID, entry.studentID); ok {
				result.WaitlistPosition = &pos
			}
			results[entry.studentID] = append(results[entry.studentID], result)
			continue
		}

		allocated[entry.studentID] = entry.courseID

		e.commitAllocation(entry.studentID, course)

		score := entry.score
		results[entry.studentID] = append(results[entry.studentID],
			registered(entry.studentID, entry.courseID, allocationMessage(entry.priority), &score))

		logger.LogAllocation(entry.studentID, entry.courseID, string(domain.StatusRegistered), entry.score)
	}

	return results
}

// studentOptimalAllocation runs student-proposing deferred acceptance
// (Gale-Shapley). Students propose down their preference lists; courses
// tentatively hold the best-scored proposers up to effective capacity
// and reject the rest, who propose again. The outcome is stable within
// the preference/scoring model.
func (e *Engine) studentOptimalAllocation(courses []*domain.Course, preferences map[string]*domain.StudentCoursePreferences) map[string][]domain.AllocationResult {
	results := make(map[string][]domain.AllocationResult)

	courseMap := make(map[string]*domain.Course, len(courses))
	for _, course := range courses {
		if eligibleForBatch(course) {
			courseMap[course.CourseID] = course
		}
	}

	// Scores come from the waitlists: a student can only propose to a
	// course it has applied to.
	studentScores := make(map[string]map[string]float64)
	for courseID := range courseMap {
		for _, entry := range e.waitlist.All(courseID) {
			if studentScores[entry.StudentID] == nil {
				studentScores[entry.StudentID] = make(map[string]float64)
			}
			studentScores[entry.StudentID][courseID] = entry.Score
		}
	}

	proposalIdx := make(map[string]int)
	tentative := make(map[string][]waitlist.Entry) // course_id -> held proposals

	active := make(map[string]bool)
	for studentID := range preferences {
		active[studentID] = true
	}

	for len(active) > 0 {
		nextActive := make(map[string]bool)

		// Deterministic round order.
		proposers := make([]string, 0, len(active))
		for studentID := range active {
			proposers = append(proposers, studentID)
		}
		sort.Strings(proposers)

		for _, studentID := range proposers {
			prefs := preferences[studentID]
			if prefs == nil {
				continue
			}

			// Advance to the next preference the student has a computed
			// score for; exhausting the list deactivates the student.
			for proposalIdx[studentID] < len(prefs.CourseIDs) {
				courseID := prefs.CourseIDs[proposalIdx[studentID]]
				proposalIdx[studentID]++

				score, scored := studentScores[studentID][courseID]
				if !scored {
					continue
				}
				if _, ok := courseMap[courseID]; !ok {
					continue
				}
				if e.IsEnrolled(studentID, courseID) {
					continue
				}

				tentative[courseID] = append(tentative[courseID], waitlist.Entry{StudentID: studentID, Score: score})
				break
			}
		}

		// Each course keeps the best proposals up to effective capacity.
		for courseID, proposals := range tentative {
			course := courseMap[courseID]
			seats := course.EffectiveCapacity(e.config.AllowOversubscription) - e.currentEnrollment(course)
			if seats < 0 {
				seats = 0
			}

			sort.SliceStable(proposals, func(i, j int) bool {
				return proposals[i].Score > proposals[j].Score
			})

			if len(proposals) > seats {
				for _, loser := range proposals[seats:] {
					nextActive[loser.StudentID] = true
				}
				tentative[courseID] = proposals[:seats]
			} else {
				tentative[courseID] = proposals
			}
		}

		active = nextActive
	}

	// Commit tentative acceptances; everyone else stays waitlisted.
	courseIDs := make([]string, 0, len(tentative))
	for courseID := range tentative {
		courseIDs = append(courseIDs, courseID)
	}
	sort.Strings(courseIDs)

	for _, courseID := range courseIDs {
		course := courseMap[courseID]
		for _, accepted := range tentative[courseID] {
			e.commitAllocation(accepted.StudentID, course)

			priority := domain.NoPreferenceRank
			if prefs, ok := preferences[accepted.StudentID]; ok {
				priority = prefs.GetPriority(courseID)
			}

			score := accepted.Score
			results[accepted.StudentID] = append(results[accepted.StudentID],
				registered(accepted.StudentID, courseID, allocationMessage(priority), &score))

			logger.LogAllocation(accepted.StudentID, courseID, string(domain.StatusRegistered), accepted.Score)
		}
	}

	return results
}

// courseOptimalAllocation is the proposing dual: courses offer their
// open seats to their best-scored waitlisted applicants; a student holds
// the offer from the course they rank highest and releases any worse
// hold, which frees that seat for the course's next candidate.
func (e *Engine) courseOptimalAllocation(courses []*domain.Course, preferences map[string]*domain.StudentCoursePreferences) map[string][]domain.AllocationResult {
	results := make(map[string][]domain.AllocationResult)

	type courseState struct {
		course     *domain.Course
		candidates []waitlist.Entry
		nextIdx    int
		seats      int
		holds      map[string]float64 // student_id -> score
	}

	rank := func(studentID, courseID string) int {
		if prefs, ok := preferences[studentID]; ok {
			return prefs.GetPriority(courseID)
		}
		return domain.NoPreferenceRank
	}

	states := make(map[string]*courseState)
	holding := make(map[string]string) // student_id -> course_id holding their acceptance

	pending := make([]string, 0, len(courses))
	for _, course := range courses {
		if !eligibleForBatch(course) {
			continue
		}
		seats := course.EffectiveCapacity(e.config.AllowOversubscription) - e.currentEnrollment(course)
		if seats <= 0 {
			continue
		}
		states[course.CourseID] = &courseState{
			course:     course,
			candidates: e.waitlist.All(course.CourseID),
			seats:      seats,
			holds:      make(map[string]float64),
		}
		pending = append(pending, course.CourseID)
	}
	sort.Strings(pending)

	for len(pending) > 0 {
		courseID := pending[0]
		pending = pending[1:]
		state := states[courseID]

		for len(state.holds) < state.seats && state.nextIdx < len(state.candidates) {
			candidate := state.candidates[state.nextIdx]
			state.nextIdx++

			if e.IsEnrolled(candidate.StudentID, courseID) {
				continue
			}

			current, held := holding[candidate.StudentID]
			if !held {
				state.holds[candidate.StudentID] = candidate.Score
				holding[candidate.StudentID] = courseID
				continue
			}

			// The student keeps whichever offer they rank better; score
			// breaks rank ties.
			newRank, curRank := rank(candidate.StudentID, courseID), rank(candidate.StudentID, current)
			better := newRank < curRank
			if newRank == curRank {
				curScore := states[current].holds[candidate.StudentID]
				better = candidate.Score > curScore
			}
			if !better {
				continue
			}

			prevState := states[current]
			delete(prevState.holds, candidate.StudentID)
			pending = append(pending, current)

			state.holds[candidate.StudentID] = candidate.Score
			holding[candidate.StudentID] = courseID
		}
	}

	committed := make([]string, 0, len(holding))
	for studentID := range holding {
		committed = append(committed, studentID)
	}
	sort.Strings(committed)

	for _, studentID := range committed {
		courseID := holding[studentID]
		state := states[courseID]
		score := state.holds[studentID]

		e.commitAllocation(studentID, state.course)

		results[studentID] = append(results[studentID],
			registered(studentID, courseID, allocationMessage(rank(studentID, courseID)), &score))

		logger.LogAllocation(studentID, courseID, string(domain.StatusRegistered), score)
	}

	return results
}

// commitAllocation enrolls the student, bumps the counter and clears
// the waitlist entry in one step.
func (e *Engine) commitAllocation(studentID string, course *domain.Course) {
	e.enroll(studentID, course)
	e.waitlist.Remove(course.CourseID, studentID)
}

func allocationMessage(priority int) string {
	if priority == domain.NoPreferenceRank {
		return "Allocated to course"
	}
	return fmt.Sprintf("Allocated to course (priority #%d)", priority)
}
