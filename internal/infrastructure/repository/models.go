package repository

import (
	"encoding/json"
	"time"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"

	"github.com/google/uuid"
)

// Persistence records mirror the domain entities with set fields
// flattened to JSON columns. The snapshot store is an adapter: the
// in-process registries stay authoritative.

type StudentRecord struct {
	StudentID        string    `gorm:"primaryKey;column:student_id"`
	Name             string    `gorm:"column:name"`
	Email            string    `gorm:"column:email"`
	GPA              float64   `gorm:"column:gpa"`
	Year             int       `gorm:"column:year"`
	Interests        string    `gorm:"column:interests;type:jsonb"`
	CompletedCourses string    `gorm:"column:completed_courses;type:jsonb"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StudentRecord) TableName() string {
	return "students"
}

type CourseRecord struct {
	CourseID          string     `gorm:"primaryKey;column:course_id"`
	Name              string     `gorm:"column:name"`
	Capacity          int        `gorm:"column:capacity"`
	CurrentEnrollment int        `gorm:"column:current_enrollment"`
	Prerequisites     string     `gorm:"column:prerequisites;type:jsonb"`
	Tags              string     `gorm:"column:tags;type:jsonb"`
	MinGPA            float64    `gorm:"column:min_gpa"`
	PreferredYears    string     `gorm:"column:preferred_years;type:jsonb"`
	BookingState      string     `gorm:"column:booking_state"`
	BookingOpensAt    *time.Time `gorm:"column:booking_opens_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CourseRecord) TableName() string {
	return "courses"
}

type AllocationOutcomeRecord struct {
	OutcomeID        uuid.UUID `gorm:"primaryKey;column:outcome_id;type:uuid"`
	StudentID        string    `gorm:"column:student_id"`
	CourseID         string    `gorm:"column:course_id"`
	Status           string    `gorm:"column:status"`
	Message          string    `gorm:"column:message"`
	Score            *float64  `gorm:"column:score"`
	WaitlistPosition *int      `gorm:"column:waitlist_position"`
	RecordedAt       time.Time `gorm:"column:recorded_at;autoCreateTime"`
}

func (AllocationOutcomeRecord) TableName() string {
	return "allocation_outcomes"
}

func marshalStringSet(set map[string]bool) string {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func unmarshalStringSet(data string) map[string]bool {
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return map[string]bool{}
	}
	return domain.NewStringSet(items...)
}

func marshalIntSet(set map[int]bool) string {
	items := make([]int, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func unmarshalIntSet(data string) map[int]bool {
	var items []int
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return map[int]bool{}
	}
	return domain.NewIntSet(items...)
}

// ToStudentRecord converts a domain student for persistence.
func ToStudentRecord(student *domain.Student) *StudentRecord {
	return &StudentRecord{
		StudentID:        student.StudentID,
		Name:             student.Name,
		Email:            student.Email,
		GPA:              student.GPA,
		Year:             student.Year,
		Interests:        marshalStringSet(student.Interests),
		CompletedCourses: marshalStringSet(student.CompletedCourses),
	}
}

// ToStudent converts a record back into the domain shape.
func (r *StudentRecord) ToStudent() *domain.Student {
	return &domain.Student{
		StudentID:        r.StudentID,
		Name:             r.Name,
		Email:            r.Email,
		GPA:              r.GPA,
		Year:             r.Year,
		Interests:        unmarshalStringSet(r.Interests),
		CompletedCourses: unmarshalStringSet(r.CompletedCourses),
	}
}

// ToCourseRecord converts a domain course for persistence.
func ToCourseRecord(course *domain.Course) *CourseRecord {
	return &CourseRecord{
		CourseID:          course.CourseID,
		Name:              course.Name,
		Capacity:          course.Capacity,
		CurrentEnrollment: course.CurrentEnrollment,
		Prerequisites:     marshalStringSet(course.Prerequisites),
		Tags:              marshalStringSet(course.Tags),
		MinGPA:            course.MinGPA,
		PreferredYears:    marshalIntSet(course.PreferredYears),
		BookingState:      string(course.BookingState),
		BookingOpensAt:    course.BookingOpensAt,
	}
}

// ToCourse converts a record back into the domain shape.
func (r *CourseRecord) ToCourse() *domain.Course {
	return &domain.Course{
		CourseID:          r.CourseID,
		Name:              r.Name,
		Capacity:          r.Capacity,
		CurrentEnrollment: r.CurrentEnrollment,
		Prerequisites:     unmarshalStringSet(r.Prerequisites),
		Tags:              unmarshalStringSet(r.Tags),
		MinGPA:            r.MinGPA,
		PreferredYears:    unmarshalIntSet(r.PreferredYears),
		BookingState:      domain.CourseBookingState(r.BookingState),
		BookingOpensAt:    r.BookingOpensAt,
	}
}

// ToOutcomeRecord converts an allocation result for the audit table.
func ToOutcomeRecord(result domain.AllocationResult) *AllocationOutcomeRecord {
	return &AllocationOutcomeRecord{
		OutcomeID:        uuid.New(),
		StudentID:        result.StudentID,
		CourseID:         result.CourseID,
		Status:           string(result.Status),
		Message:          result.Message,
		Score:            result.Score,
		WaitlistPosition: result.WaitlistPosition,
	}
}
