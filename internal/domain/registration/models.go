package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Student is the applicant profile used for scoring. Immutable during a
// batch run; descriptive fields do not influence allocation.
type Student struct {
	StudentID        string          `json:"student_id"`
	Name             string          `json:"name,omitempty"`
	Email            string          `json:"email,omitempty"`
	GPA              float64         `json:"gpa"`
	Year             int             `json:"year"`
	Interests        map[string]bool `json:"interests"`
	CompletedCourses map[string]bool `json:"completed_courses"`
}

// Course carries the mutable enrollment counters plus the static
// admission constraints.
type Course struct {
	CourseID          string             `json:"course_id"`
	Name              string             `json:"name,omitempty"`
	Capacity          int                `json:"capacity"`
	CurrentEnrollment int                `json:"current_enrollment"`
	Prerequisites     map[string]bool    `json:"prerequisites"`
	Tags              map[string]bool    `json:"tags"`
	MinGPA            float64            `json:"min_gpa"`
	PreferredYears    map[int]bool       `json:"preferred_years"`
	BookingState      CourseBookingState `json:"booking_state"`
	BookingOpensAt    *time.Time         `json:"booking_opens_at,omitempty"`
}

// AvailableSeats returns capacity minus current enrollment, never negative.
func (c *Course) AvailableSeats() int {
	seats := c.Capacity - c.CurrentEnrollment
	if seats < 0 {
		return 0
	}
	return seats
}

// HasVacancy reports whether at least one seat is open.
func (c *Course) HasVacancy() bool {
	return c.AvailableSeats() > 0
}

// EffectiveCapacity returns the enrollment ceiling once the configured
// oversubscription fraction is applied.
func (c *Course) EffectiveCapacity(oversubscription float64) int {
	return int(math.Floor(float64(c.Capacity) * (1 + oversubscription)))
}

// NoPreferenceRank is returned for courses absent from a student's
// preference list.
const NoPreferenceRank = 999

// StudentCoursePreferences is the ordered preference list produced by
// the external recommender. Index 0 is the student's top choice.
type StudentCoursePreferences struct {
	StudentID string   `json:"student_id"`
	CourseIDs []string `json:"course_ids"`
}

// GetPriority returns the 1-based rank of courseID in the preference
// list, or NoPreferenceRank if the course is not listed.
func (p *StudentCoursePreferences) GetPriority(courseID string) int {
	for i, id := range p.CourseIDs {
		if id == courseID {
			return i + 1
		}
	}
	return NoPreferenceRank
}

// CourseApplication is the scored record for one (student, course) pair.
// All component scores and the composite are in [0, 1].
type CourseApplication struct {
	ApplicationID  uuid.UUID          `json:"application_id"`
	StudentID      string             `json:"student_id"`
	CourseID       string             `json:"course_id"`
	PriorityRank   int                `json:"priority_rank"`
	AppliedAt      time.Time          `json:"applied_at"`
	GPAScore       float64            `json:"gpa_score"`
	InterestScore  float64            `json:"interest_score"`
	TimeScore      float64            `json:"time_score"`
	YearScore      float64            `json:"year_score"`
	PrereqScore    float64            `json:"prereq_score"`
	CompositeScore float64            `json:"composite_score"`
	Status         RegistrationStatus `json:"status"`
}

// RegistrationStatus is the outcome class of an application.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusWaitlisted RegistrationStatus = "waitlisted"
	StatusRejected   RegistrationStatus = "rejected"
	StatusDropped    RegistrationStatus = "dropped"
)

// CourseBookingState is the course lifecycle state driving apply routing.
type CourseBookingState string

const (
	BookingClosed   CourseBookingState = "booking_closed"
	BookingOpen     CourseBookingState = "booking_open"
	CourseStarted   CourseBookingState = "course_started"
	CourseCompleted CourseBookingState = "course_completed"
)

// AllocationResult is the tagged outcome returned for every registration
// operation. Expected domain failures are encoded here, never as errors.
type AllocationResult struct {
	StudentID        string             `json:"student_id"`
	CourseID         string             `json:"course_id"`
	Success          bool               `json:"success"`
	Status           RegistrationStatus `json:"status"`
	Message          string             `json:"message"`
	WaitlistPosition *int               `json:"waitlist_position,omitempty"`
	Score            *float64           `json:"score,omitempty"`
}

// WaitlistStatus is the per-(student, course) query response.
type WaitlistStatus struct {
	StudentID      string   `json:"student_id"`
	CourseID       string   `json:"course_id"`
	Position       *int     `json:"position,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	WaitlistSize   int      `json:"waitlist_size"`
	AvailableSeats int      `json:"available_seats"`
	IsEnrolled     bool     `json:"is_enrolled"`
}

// StudentStatus aggregates a student's enrollments and waitlist standing.
type StudentStatus struct {
	StudentID         string         `json:"student_id"`
	EnrolledCourses   []string       `json:"enrolled_courses"`
	WaitlistPositions map[string]int `json:"waitlist_positions"`
	Preferences       []string       `json:"preferences"`
}

// WaitlistedStudent is one entry of a course's top-waitlisted listing.
type WaitlistedStudent struct {
	StudentID string  `json:"student_id"`
	Score     float64 `json:"score"`
}

// CourseStatus aggregates enrollment and waitlist state for one course.
type CourseStatus struct {
	CourseID          string              `json:"course_id"`
	CourseName        string              `json:"course_name,omitempty"`
	Capacity          int                 `json:"capacity"`
	CurrentEnrollment int                 `json:"current_enrollment"`
	AvailableSeats    int                 `json:"available_seats"`
	BookingState      CourseBookingState  `json:"booking_state"`
	WaitlistSize      int                 `json:"waitlist_size"`
	TopWaitlisted     []WaitlistedStudent `json:"top_waitlisted"`
	EnrolledStudents  []string            `json:"enrolled_students"`
}

// NewStringSet builds a membership set from a string list.
func NewStringSet(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// NewIntSet builds a membership set from an int list.
func NewIntSet(items ...int) map[int]bool {
	set := make(map[int]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
