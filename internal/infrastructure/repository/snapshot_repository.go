package repository

import (
	"context"
	"fmt"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRepository persists entity registries and allocation outcomes
// to Postgres. It loads registries at boot and saves them back on
// demand; the in-process state remains authoritative between saves.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveStudent upserts one student snapshot.
func (r *SnapshotRepository) SaveStudent(ctx context.Context, student *domain.Student) error {
	record := ToStudentRecord(student)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save student %s: %w", student.StudentID, err)
	}
	return nil
}

// SaveCourse upserts one course snapshot, including its enrollment
// counter and booking state.
func (r *SnapshotRepository) SaveCourse(ctx context.Context, course *domain.Course) error {
	record := ToCourseRecord(course)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save course %s: %w", course.CourseID, err)
	}
	return nil
}

// LoadStudents returns every persisted student.
func (r *SnapshotRepository) LoadStudents(ctx context.Context) ([]*domain.Student, error) {
	var records []StudentRecord
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}

	students := make([]*domain.Student, 0, len(records))
	for i := range records {
		students = append(students, records[i].ToStudent())
	}
	return students, nil
}

// LoadCourses returns every persisted course.
func (r *SnapshotRepository) LoadCourses(ctx context.Context) ([]*domain.Course, error) {
	var records []CourseRecord
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}

	courses := make([]*domain.Course, 0, len(records))
	for i := range records {
		courses = append(courses, records[i].ToCourse())
	}
	return courses, nil
}

// RecordOutcomes appends allocation results to the audit table.
func (r *SnapshotRepository) RecordOutcomes(ctx context.Context, results []domain.AllocationResult) error {
	if len(results) == 0 {
		return nil
	}

	records := make([]*AllocationOutcomeRecord, 0, len(results))
	for _, result := range results {
		records = append(records, ToOutcomeRecord(result))
	}

	if err := r.db.WithContext(ctx).CreateInBatches(records, 100).Error; err != nil {
		return fmt.Errorf("failed to record allocation outcomes: %w", err)
	}
	return nil
}

// OutcomesByStudent returns the student's allocation history, newest
// first.
func (r *SnapshotRepository) OutcomesByStudent(ctx context.Context, studentID string) ([]AllocationOutcomeRecord, error) {
	var records []AllocationOutcomeRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("recorded_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes for %s: %w", studentID, err)
	}
	return records, nil
}
