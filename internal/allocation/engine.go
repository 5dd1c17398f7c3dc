// Package allocation translates scored applications into registration
// outcomes: apply routing by course state, batch allocation under a
// configurable strategy, and dropout-triggered vacancy fills.
package allocation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/scoring"
	"github.com/einstein-academy/course-registration/internal/waitlist"
	"github.com/einstein-academy/course-registration/pkg/logger"
)

// Strategy selects the batch allocation algorithm.
type Strategy string

const (
	StrategyBalanced       Strategy = "balanced"
	StrategyGreedy         Strategy = "greedy"
	StrategyStudentOptimal Strategy = "student_optimal"
	StrategyCourseOptimal  Strategy = "course_optimal"
)

// Config tunes batch allocation behavior.
type Config struct {
	Strategy                    Strategy
	MaxCoursesPerStudent        int
	AllowOversubscription       float64
	PrioritizeStudentTopChoices bool
}

// DefaultConfig returns the standard allocation configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:                    StrategyBalanced,
		MaxCoursesPerStudent:        5,
		AllowOversubscription:       0.0,
		PrioritizeStudentTopChoices: true,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.AllowOversubscription < 0 {
		return fmt.Errorf("allow_oversubscription must be >= 0, got %.2f", c.AllowOversubscription)
	}
	switch c.Strategy {
	case StrategyBalanced, StrategyGreedy, StrategyStudentOptimal, StrategyCourseOptimal:
		return nil
	default:
		return fmt.Errorf("unknown allocation strategy: %s", c.Strategy)
	}
}

// Engine owns the enrollment maps and drives every state change that
// turns a waitlisted applicant into an enrolled student.
type Engine struct {
	waitlist waitlist.Store
	scoring  *scoring.Engine
	config   Config

	mu             sync.RWMutex
	enrollments    map[string]map[string]bool // course_id -> student_ids
	studentCourses map[string]map[string]bool // student_id -> course_ids
}

// NewEngine builds an allocation engine over the given waitlist store
// and scoring engine.
func NewEngine(store waitlist.Store, scorer *scoring.Engine, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid allocation config: %w", err)
	}

	return &Engine{
		waitlist:       store,
		scoring:        scorer,
		config:         config,
		enrollments:    make(map[string]map[string]bool),
		studentCourses: make(map[string]map[string]bool),
	}, nil
}

// Config returns the engine's allocation configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ApplyForCourse scores the application, runs the gating checks and
// routes by course state. All admissible applications land on the
// waitlist; actual enrollment happens in batch or via ManualRegister.
func (e *Engine) ApplyForCourse(student *domain.Student, course *domain.Course, preferences *domain.StudentCoursePreferences, appliedAt time.Time) domain.AllocationResult {
	priorityRank := domain.NoPreferenceRank
	if preferences != nil {
		priorityRank = preferences.GetPriority(course.CourseID)
	}

	application := e.scoring.ComputeScore(student, course, appliedAt, priorityRank)
	score := application.CompositeScore

	if e.IsEnrolled(student.StudentID, course.CourseID) {
		return rejected(student.StudentID, course.CourseID, "Already enrolled in this course.", &score)
	}

	if student.GPA < course.MinGPA {
		msg := fmt.Sprintf("GPA %.2f below minimum %.2f", student.GPA, course.MinGPA)
		return rejected(student.StudentID, course.CourseID, msg, &score)
	}

	if !prerequisitesMet(student, course) {
		return rejected(student.StudentID, course.CourseID, "Prerequisites not met", &score)
	}

	var message string
	switch course.BookingState {
	case domain.BookingClosed:
		message = "Added to waitlist. Booking not yet open."
	case domain.BookingOpen:
		if e.hasVacancy(course) {
			message = "Application received. Allocation will be processed in next batch."
		} else {
			message = "Course full. Added to waitlist."
		}
	case domain.CourseStarted:
		if e.hasVacancy(course) {
			message = "Added to waitlist for late enrollment."
		} else {
			message = "Course full and started. Added to waitlist for dropout fill."
		}
	default: // CourseCompleted
		return rejected(student.StudentID, course.CourseID, "Course registration is closed.", &score)
	}

	e.waitlist.Add(course.CourseID, student.StudentID, score)
	logger.LogWaitlist("add", course.CourseID, student.StudentID, e.waitlist.Size(course.CourseID))

	result := waitlisted(student.StudentID, course.CourseID, message, &score)
	if pos, ok := e.waitlist.Position(course.CourseID, student.StudentID); ok {
		result.WaitlistPosition = &pos
	}
	return result
}

// ManualRegister attempts immediate enrollment, bypassing the batch.
// Admissible only while booking is open with a vacancy; the vacancy is
// re-checked under the course lock. Losing the race parks the student
// on the waitlist.
func (e *Engine) ManualRegister(student *domain.Student, course *domain.Course, preferences *domain.StudentCoursePreferences) domain.AllocationResult {
	if course.BookingState != domain.BookingOpen {
		return rejected(student.StudentID, course.CourseID,
			"Manual registration not available. Use apply instead.", nil)
	}

	if !e.hasVacancy(course) {
		return rejected(student.StudentID, course.CourseID,
			"No vacancy available for manual registration.", nil)
	}

	if !prerequisitesMet(student, course) {
		return rejected(student.StudentID, course.CourseID, "Prerequisites not met.", nil)
	}

	if !e.waitlist.AcquireLock(course.CourseID, waitlist.DefaultLockTTL) {
		busy := waitlisted(student.StudentID, course.CourseID, "System busy. Please try again.", nil)
		busy.Success = false
		return busy
	}
	defer e.waitlist.ReleaseLock(course.CourseID)

	if !e.hasVacancy(course) {
		// Lost the race: keep the student in contention for the batch.
		priorityRank := domain.NoPreferenceRank
		if preferences != nil {
			priorityRank = preferences.GetPriority(course.CourseID)
		}
		application := e.scoring.ComputeScore(student, course, time.Now().UTC(), priorityRank)
		e.waitlist.Add(course.CourseID, student.StudentID, application.CompositeScore)

		result := waitlisted(student.StudentID, course.CourseID,
			"Vacancy filled while processing. Added to waitlist.", &application.CompositeScore)
		result.Success = false
		if pos, ok := e.waitlist.Position(course.CourseID, student.StudentID); ok {
			result.WaitlistPosition = &pos
		}
		return result
	}

	e.enroll(student.StudentID, course)
	e.waitlist.Remove(course.CourseID, student.StudentID)

	logger.LogAllocation(student.StudentID, course.CourseID, string(domain.StatusRegistered), 0)
	return registered(student.StudentID, course.CourseID, "Successfully registered!", nil)
}

// FillVacancy pops the top waitlisted student into a freed seat, under
// the course lock. Returns nil when there is no vacancy, no waiter, or
// the lock is contended.
func (e *Engine) FillVacancy(course *domain.Course) *domain.AllocationResult {
	if e.currentEnrollment(course) >= course.EffectiveCapacity(e.config.AllowOversubscription) {
		return nil
	}

	if !e.waitlist.AcquireLock(course.CourseID, waitlist.DefaultLockTTL) {
		logger.Warn("Could not acquire lock for course %s", course.CourseID)
		return nil
	}
	defer e.waitlist.ReleaseLock(course.CourseID)

	top, ok := e.waitlist.PopTop(course.CourseID)
	if !ok {
		logger.Debug("No candidates in waitlist for %s", course.CourseID)
		return nil
	}

	e.enroll(top.StudentID, course)

	logger.LogAllocation(top.StudentID, course.CourseID, string(domain.StatusRegistered), top.Score)

	score := top.Score
	result := registered(top.StudentID, course.CourseID, "Auto-registered from waitlist!", &score)
	return &result
}

// ProcessDropout removes the student's enrollment and fills the freed
// seat from the waitlist. A nil result means no waiter was available;
// that is not an error.
func (e *Engine) ProcessDropout(studentID string, course *domain.Course) *domain.AllocationResult {
	e.mu.Lock()
	if !e.enrollments[course.CourseID][studentID] {
		e.mu.Unlock()
		return nil
	}
	delete(e.enrollments[course.CourseID], studentID)
	delete(e.studentCourses[studentID], course.CourseID)
	course.CurrentEnrollment--
	e.mu.Unlock()

	logger.Info("Student %s dropped course %s", studentID, course.CourseID)

	return e.FillVacancy(course)
}

// IsEnrolled reports whether the student is enrolled in the course.
func (e *Engine) IsEnrolled(studentID, courseID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enrollments[courseID][studentID]
}

// StudentEnrollments returns all courses the student is enrolled in.
func (e *Engine) StudentEnrollments(studentID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	courses := make([]string, 0, len(e.studentCourses[studentID]))
	for courseID := range e.studentCourses[studentID] {
		courses = append(courses, courseID)
	}
	sort.Strings(courses)
	return courses
}

// CourseEnrollments returns all students enrolled in the course.
func (e *Engine) CourseEnrollments(courseID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	students := make([]string, 0, len(e.enrollments[courseID]))
	for studentID := range e.enrollments[courseID] {
		students = append(students, studentID)
	}
	sort.Strings(students)
	return students
}

// enroll records the student in the enrollment maps and bumps the
// course counter in one critical section, so concurrent vacancy checks
// observe a consistent count.
func (e *Engine) enroll(studentID string, course *domain.Course) {
	e.mu.Lock()
	defer e.mu.Unlock()

	courseID := course.CourseID
	if e.enrollments[courseID] == nil {
		e.enrollments[courseID] = make(map[string]bool)
	}
	if e.studentCourses[studentID] == nil {
		e.studentCourses[studentID] = make(map[string]bool)
	}
	e.enrollments[courseID][studentID] = true
	e.studentCourses[studentID][courseID] = true
	course.CurrentEnrollment++
}

func (e *Engine) hasVacancy(course *domain.Course) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return course.HasVacancy()
}

func (e *Engine) currentEnrollment(course *domain.Course) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return course.CurrentEnrollment
}

func prerequisitesMet(student *domain.Student, course *domain.Course) bool {
	for prereq := range course.Prerequisites {
		if !student.CompletedCourses[prereq] {
			return false
		}
	}
	return true
}

func registered(studentID, courseID, message string, score *float64) domain.AllocationResult {
	return domain.AllocationResult{
		StudentID: studentID,
		CourseID:  courseID,
		Success:   true,
		Status:    domain.StatusRegistered,
		Message:   message,
		Score:     score,
	}
}

func waitlisted(studentID, courseID, message string, score *float64) domain.AllocationResult {
	return domain.AllocationResult{
		StudentID: studentID,
		CourseID:  courseID,
		Success:   true,
		Status:    domain.StatusWaitlisted,
		Message:   message,
		Score:     score,
	}
}

func rejected(studentID, courseID, message string, score *float64) domain.AllocationResult {
	return domain.AllocationResult{
		StudentID: studentID,
		CourseID:  courseID,
		Success:   false,
		Status:    domain.StatusRejected,
		Message:   message,
		Score:     score,
	}
}
