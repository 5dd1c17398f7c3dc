package scoring

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"

	"github.com/google/uuid"
)

// Engine computes composite fit scores for student-course applications.
//
// Score formula:
//
//	score = w1*gpa + w2*interest + w3*time + w4*year + w5*prereq
//
// All component scores are normalized to [0, 1], so the composite is in
// [0, 1] as well. Higher is better. Compute never fails; missing data
// yields the documented neutral values.
type Engine struct {
	weights        Weights
	timeDecayHours float64
	maxTimeBonus   float64

	mu               sync.RWMutex
	bookingOpenTimes map[string]time.Time
}

// Option customizes an Engine beyond its weights.
type Option func(*Engine)

// WithTimeDecayHours sets the half-life of the early-application bonus.
func WithTimeDecayHours(hours float64) Option {
	return func(e *Engine) {
		if hours > 0 {
			e.timeDecayHours = hours
		}
	}
}

// WithMaxTimeBonus sets the time score at the instant booking opens.
func WithMaxTimeBonus(bonus float64) Option {
	return func(e *Engine) {
		e.maxTimeBonus = bonus
	}
}

// NewEngine builds a scoring engine, failing if the weights do not sum
// to 1.0 within tolerance.
func NewEngine(weights Weights, opts ...Option) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	e := &Engine{
		weights:          weights,
		timeDecayHours:   168.0,
		maxTimeBonus:     1.0,
		bookingOpenTimes: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetBookingOpenTime records when booking opened for a course. The time
// score decays from that instant.
func (e *Engine) SetBookingOpenTime(courseID string, openTime time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bookingOpenTimes[courseID] = openTime
}

// ComputeScore scores one (student, course, appliedAt, priority) tuple
// and returns the full application record with its breakdown.
func (e *Engine) ComputeScore(student *domain.Student, course *domain.Course, appliedAt time.Time, studentPriority int) domain.CourseApplication {
	gpaScore := e.gpaScore(student, course)
	interestScore := e.interestScore(student, course)
	timeScore := e.timeScore(course.CourseID, appliedAt)
	yearScore := e.yearScore(student, course)
	prereqScore := e.prereqScore(student, course)

	composite := e.weights.GPA*gpaScore +
		e.weights.Interest*interestScore +
		e.weights.Time*timeScore +
		e.weights.YearFit*yearScore +
		e.weights.Prerequisite*prereqScore

	return domain.CourseApplication{
		ApplicationID:  uuid.New(),
		StudentID:      student.StudentID,
		CourseID:       course.CourseID,
		PriorityRank:   studentPriority,
		AppliedAt:      appliedAt,
		GPAScore:       gpaScore,
		InterestScore:  interestScore,
		TimeScore:      timeScore,
		YearScore:      yearScore,
		PrereqScore:    prereqScore,
		CompositeScore: composite,
		Status:         domain.StatusWaitlisted,
	}
}

// RecomputeAll re-scores a set of applications, keeping their identity
// and status. Used after weight changes or for periodic recalculation.
func (e *Engine) RecomputeAll(applications []domain.CourseApplication, students map[string]*domain.Student, courses map[string]*domain.Course) []domain.CourseApplication {
	updated := make([]domain.CourseApplication, 0, len(applications))
	for _, app := range applications {
		student, okS := students[app.StudentID]
		course, okC := courses[app.CourseID]
		if !okS || !okC {
			updated = append(updated, app)
			continue
		}

		fresh := e.ComputeScore(student, course, app.AppliedAt, app.PriorityRank)
		fresh.ApplicationID = app.ApplicationID
		fresh.Status = app.Status
		updated = append(updated, fresh)
	}
	return updated
}

// gpaScore normalizes GPA to a 4.0 scale with a small bonus for
// exceeding the course minimum. Zero below the minimum.
func (e *Engine) gpaScore(student *domain.Student, course *domain.Course) float64 {
	if student.GPA < course.MinGPA {
		return 0.0
	}

	base := student.GPA / 4.0
	bonus := math.Min(0.1, (student.GPA-course.MinGPA)*0.05)
	return math.Min(1.0, base+bonus)
}

// interestScore is the Jaccard similarity between lowercased student
// interests and course tags. Neutral 0.5 when either set is empty.
func (e *Engine) interestScore(student *domain.Student, course *domain.Course) float64 {
	if len(student.Interests) == 0 || len(course.Tags) == 0 {
		return 0.5
	}

	interests := lowerSet(student.Interests)
	tags := lowerSet(course.Tags)

	intersection := 0
	for tag := range interests {
		if tags[tag] {
			intersection++
		}
	}
	union := len(interests) + len(tags) - intersection
	if union == 0 {
		return 0.5
	}

	return float64(intersection) / float64(union)
}

// timeScore applies exponential decay from the booking-open instant so
// early applications are rewarded without pure FCFS dominance. The
// bonus halves every timeDecayHours.
func (e *Engine) timeScore(courseID string, appliedAt time.Time) float64 {
	e.mu.RLock()
	openTime, known := e.bookingOpenTimes[courseID]
	e.mu.RUnlock()

	if !known {
		openTime = appliedAt
	}

	hoursSinceOpen := math.Max(0, appliedAt.Sub(openTime).Hours())
	decayRate := math.Ln2 / e.timeDecayHours
	return e.maxTimeBonus * math.Exp(-decayRate*hoursSinceOpen)
}

// yearScore is 1.0 for a preferred year, 0.5 for an adjacent year, 0.25
// otherwise.
func (e *Engine) yearScore(student *domain.Student, course *domain.Course) float64 {
	if course.PreferredYears[student.Year] {
		return 1.0
	}
	for preferred := range course.PreferredYears {
		if abs(student.Year-preferred) == 1 {
			return 0.5
		}
	}
	return 0.25
}

// prereqScore is the fraction of required prerequisites completed, 1.0
// when the course has none.
func (e *Engine) prereqScore(student *domain.Student, course *domain.Course) float64 {
	if len(course.Prerequisites) == 0 {
		return 1.0
	}

	completed := 0
	for prereq := range course.Prerequisites {
		if student.CompletedCourses[prereq] {
			completed++
		}
	}
	return float64(completed) / float64(len(course.Prerequisites))
}

func lowerSet(set map[string]bool) map[string]bool {
	lowered := make(map[string]bool, len(set))
	for item := range set {
		lowered[strings.ToLower(item)] = true
	}
	return lowered
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
