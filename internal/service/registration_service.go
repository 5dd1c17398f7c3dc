// Package service hosts the registration coordinator: it owns the
// entity registries, routes apply/drop/register/query traffic into the
// allocation engine, drives the periodic batch and manages course
// lifecycle transitions.
package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/einstein-academy/course-registration/internal/allocation"
	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/scoring"
	"github.com/einstein-academy/course-registration/internal/waitlist"
	"github.com/einstein-academy/course-registration/pkg/logger"
)

// Config tunes the registration service.
type Config struct {
	ScoringWeights       scoring.Weights
	TimeDecayHours       float64
	MaxTimeBonus         float64
	Allocation           allocation.Config
	BatchIntervalSeconds int
	EnableAutoBatch      bool
}

// DefaultConfig returns the standard service configuration.
func DefaultConfig() Config {
	return Config{
		ScoringWeights:       scoring.DefaultWeights(),
		TimeDecayHours:       168.0,
		MaxTimeBonus:         1.0,
		Allocation:           allocation.DefaultConfig(),
		BatchIntervalSeconds: 300,
		EnableAutoBatch:      true,
	}
}

const batchJoinTimeout = 5 * time.Second

// RegistrationService is the only component the outside world sees.
type RegistrationService struct {
	config     Config
	scoring    *scoring.Engine
	waitlist   waitlist.Store
	allocation *allocation.Engine

	mu          sync.RWMutex
	students    map[string]*domain.Student
	courses     map[string]*domain.Course
	preferences map[string]*domain.StudentCoursePreferences

	batchMu    sync.Mutex // serializes batch iterations
	workerMu   sync.Mutex
	stopWorker chan struct{}
	workerDone chan struct{}
}

// NewRegistrationService wires the scoring engine, waitlist store and
// allocation engine behind one coordinator. A nil store selects the
// in-memory backend.
func NewRegistrationService(config Config, store waitlist.Store) (*RegistrationService, error) {
	if config.BatchIntervalSeconds <= 0 {
		config.BatchIntervalSeconds = 300
	}
	if store == nil {
		store = waitlist.NewMemoryStore()
	}

	scorer, err := scoring.NewEngine(config.ScoringWeights,
		scoring.WithTimeDecayHours(config.TimeDecayHours),
		scoring.WithMaxTimeBonus(config.MaxTimeBonus))
	if err != nil {
		return nil, err
	}

	engine, err := allocation.NewEngine(store, scorer, config.Allocation)
	if err != nil {
		return nil, err
	}

	svc := &RegistrationService{
		config:      config,
		scoring:     scorer,
		waitlist:    store,
		allocation:  engine,
		students:    make(map[string]*domain.Student),
		courses:     make(map[string]*domain.Course),
		preferences: make(map[string]*domain.StudentCoursePreferences),
	}

	logger.Info("Registration service initialized (strategy: %s, batch interval: %ds)",
		config.Allocation.Strategy, config.BatchIntervalSeconds)
	return svc, nil
}

// ==================== Entity management ====================

// AddStudent adds or replaces a student in the registry.
func (s *RegistrationService) AddStudent(student *domain.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.StudentID] = student
	logger.Debug("Added student: %s", student.StudentID)
}

// AddCourse adds or replaces a course, propagating any booking-open
// time to the scoring engine.
func (s *RegistrationService) AddCourse(course *domain.Course) {
	s.mu.Lock()
	s.courses[course.CourseID] = course
	s.mu.Unlock()

	if course.BookingOpensAt != nil {
		s.scoring.SetBookingOpenTime(course.CourseID, *course.BookingOpensAt)
	}
	logger.Debug("Added course: %s", course.CourseID)
}

// SetPreferences installs a student's ordered preference list, as
// produced by the external recommender.
func (s *RegistrationService) SetPreferences(studentID string, courseIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[studentID] = &domain.StudentCoursePreferences{
		StudentID: studentID,
		CourseIDs: courseIDs,
	}
	logger.Debug("Set preferences for student: %s", studentID)
}

// GetStudent returns a student by ID, or nil.
func (s *RegistrationService) GetStudent(studentID string) *domain.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.students[studentID]
}

// StudentIDs returns all registered student IDs, sorted.
func (s *RegistrationService) StudentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.students))
	for id := range s.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CourseIDs returns all registered course IDs, sorted.
func (s *RegistrationService) CourseIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.courses))
	for id := range s.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetCourse returns a course by ID, or nil.
func (s *RegistrationService) GetCourse(courseID string) *domain.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.courses[courseID]
}

// ==================== Registration operations ====================

// Apply submits a course application for a student. The zero time means
// "now". The student lands on the waitlist scored by GPA, interest
// match, application time, year fit and prerequisite completion.
func (s *RegistrationService) Apply(studentID, courseID string, appliedAt time.Time) domain.AllocationResult {
	s.mu.RLock()
	student := s.students[studentID]
	course := s.courses[courseID]
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	if student == nil {
		return notFound(studentID, courseID, "Student not found")
	}
	if course == nil {
		return notFound(studentID, courseID, "Course not found")
	}
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}
	if prefs == nil {
		prefs = &domain.StudentCoursePreferences{StudentID: studentID, CourseIDs: []string{courseID}}
	}

	return s.allocation.ApplyForCourse(student, course, prefs, appliedAt)
}

// ApplyAll applies the student to every course on their preference
// list, in order.
func (s *RegistrationService) ApplyAll(studentID string, appliedAt time.Time) []domain.AllocationResult {
	s.mu.RLock()
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	if prefs == nil {
		return []domain.AllocationResult{notFound(studentID, "", "No preferences set for student")}
	}

	results := make([]domain.AllocationResult, 0, len(prefs.CourseIDs))
	for _, courseID := range prefs.CourseIDs {
		results = append(results, s.Apply(studentID, courseID, appliedAt))
	}
	return results
}

// ManualRegister attempts immediate enrollment, bypassing the batch.
func (s *RegistrationService) ManualRegister(studentID, courseID string) domain.AllocationResult {
	s.mu.RLock()
	student := s.students[studentID]
	course := s.courses[courseID]
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	if student == nil {
		return notFound(studentID, courseID, "Student not found")
	}
	if course == nil {
		return notFound(studentID, courseID, "Course not found")
	}

	return s.allocation.ManualRegister(student, course, prefs)
}

// ProcessDropout drops the student from the course and promotes the top
// waitlisted student into the freed seat. A nil result means no waiter
// was available.
func (s *RegistrationService) ProcessDropout(studentID, courseID string) *domain.AllocationResult {
	s.mu.RLock()
	course := s.courses[courseID]
	s.mu.RUnlock()

	if course == nil {
		logger.Error("Course not found: %s", courseID)
		return nil
	}

	result := s.allocation.ProcessDropout(studentID, course)
	if result != nil {
		logger.Info("Vacancy in %s filled by student %s", courseID, result.StudentID)
	}
	return result
}

// ==================== Batch allocation ====================

// RunAllocation runs one batch allocation over the given courses, or
// all courses when none are named. Iterations never overlap.
func (s *RegistrationService) RunAllocation(courseIDs ...string) map[string][]domain.AllocationResult {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.mu.RLock()
	var courses []*domain.Course
	if len(courseIDs) > 0 {
		for _, courseID := range courseIDs {
			if course, ok := s.courses[courseID]; ok {
				courses = append(courses, course)
			}
		}
	} else {
		courses = make([]*domain.Course, 0, len(s.courses))
		for _, course := range s.courses {
			courses = append(courses, course)
		}
	}
	prefs := make(map[string]*domain.StudentCoursePreferences, len(s.preferences))
	for studentID, p := range s.preferences {
		prefs[studentID] = p
	}
	s.mu.RUnlock()

	// Deterministic course order for reproducible batches.
	sort.Slice(courses, func(i, j int) bool { return courses[i].CourseID < courses[j].CourseID })

	eligible := make([]*domain.Course, 0, len(courses))
	for _, course := range courses {
		if course.BookingState == domain.BookingOpen || course.BookingState == domain.BookingClosed {
			eligible = append(eligible, course)
		}
	}

	logger.Info("Running batch allocation for %d courses", len(eligible))
	start := time.Now()

	results := s.allocation.RunBatchAllocation(eligible, prefs)

	logger.LogBatch(string(s.config.Allocation.Strategy), len(eligible), len(results),
		time.Since(start).String(), nil)
	return results
}

// StartAutoBatch launches the periodic batch worker. Safe to call when
// already running.
func (s *RegistrationService) StartAutoBatch() {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()

	if s.stopWorker != nil {
		logger.Warn("Auto-batch already running")
		return
	}

	s.stopWorker = make(chan struct{})
	s.workerDone = make(chan struct{})
	go s.batchLoop(s.stopWorker, s.workerDone)

	logger.Info("Started auto-batch processing (interval: %ds)", s.config.BatchIntervalSeconds)
}

// StopAutoBatch signals the worker and waits for the current iteration,
// bounded by a short join timeout.
func (s *RegistrationService) StopAutoBatch() {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()

	if s.stopWorker == nil {
		return
	}

	close(s.stopWorker)
	select {
	case <-s.workerDone:
	case <-time.After(batchJoinTimeout):
		logger.Warn("Batch worker did not stop within %s", batchJoinTimeout)
	}

	s.stopWorker = nil
	s.workerDone = nil
	logger.Info("Stopped auto-batch processing")
}

// batchLoop is the background worker. A panicking iteration is logged
// and abandoned; the worker continues on the next tick.
func (s *RegistrationService) batchLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := time.Duration(s.config.BatchIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runGuardedAllocation()
		}
	}
}

func (s *RegistrationService) runGuardedAllocation() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Error in batch allocation: %v", r)
		}
	}()
	s.RunAllocation()
}

// ==================== Status queries ====================

// GetWaitlistStatus reports a student's standing on one course's
// waitlist.
func (s *RegistrationService) GetWaitlistStatus(studentID, courseID string) domain.WaitlistStatus {
	status := domain.WaitlistStatus{
		StudentID:    studentID,
		CourseID:     courseID,
		WaitlistSize: s.waitlist.Size(courseID),
		IsEnrolled:   s.allocation.IsEnrolled(studentID, courseID),
	}

	if pos, ok := s.waitlist.Position(courseID, studentID); ok {
		status.Position = &pos
	}
	if score, ok := s.waitlist.Score(courseID, studentID); ok {
		status.Score = &score
	}
	if course := s.GetCourse(courseID); course != nil {
		status.AvailableSeats = course.AvailableSeats()
	}
	return status
}

// GetStudentStatus aggregates a student's enrollments, waitlist
// positions across their preferences, and the preference list itself.
func (s *RegistrationService) GetStudentStatus(studentID string) domain.StudentStatus {
	s.mu.RLock()
	prefs := s.preferences[studentID]
	s.mu.RUnlock()

	enrolled := s.allocation.StudentEnrollments(studentID)

	status := domain.StudentStatus{
		StudentID:         studentID,
		EnrolledCourses:   enrolled,
		WaitlistPositions: make(map[string]int),
	}

	if prefs != nil {
		status.Preferences = prefs.CourseIDs

		enrolledSet := make(map[string]bool, len(enrolled))
		for _, courseID := range enrolled {
			enrolledSet[courseID] = true
		}

		pending := make([]string, 0, len(prefs.CourseIDs))
		for _, courseID := range prefs.CourseIDs {
			if !enrolledSet[courseID] {
				pending = append(pending, courseID)
			}
		}
		status.WaitlistPositions = s.waitlist.StudentPositions(studentID, pending)
	}

	return status
}

// GetCourseStatus aggregates enrollment and waitlist state for one
// course, including its top-10 waitlisted students.
func (s *RegistrationService) GetCourseStatus(courseID string) (domain.CourseStatus, error) {
	course := s.GetCourse(courseID)
	if course == nil {
		return domain.CourseStatus{}, fmt.Errorf("course not found: %s", courseID)
	}

	top := s.waitlist.TopK(courseID, 10)
	topWaitlisted := make([]domain.WaitlistedStudent, 0, len(top))
	for _, entry := range top {
		topWaitlisted = append(topWaitlisted, domain.WaitlistedStudent{
			StudentID: entry.StudentID,
			Score:     entry.Score,
		})
	}

	return domain.CourseStatus{
		CourseID:          courseID,
		CourseName:        course.Name,
		Capacity:          course.Capacity,
		CurrentEnrollment: course.CurrentEnrollment,
		AvailableSeats:    course.AvailableSeats(),
		BookingState:      course.BookingState,
		WaitlistSize:      s.waitlist.Size(courseID),
		TopWaitlisted:     topWaitlisted,
		EnrolledStudents:  s.allocation.CourseEnrollments(courseID),
	}, nil
}

// ==================== Course state management ====================

// OpenBooking transitions the course to BOOKING_OPEN and stamps the
// booking-open time used by the time score.
func (s *RegistrationService) OpenBooking(courseID string) bool {
	s.mu.Lock()
	course, ok := s.courses[courseID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	course.BookingState = domain.BookingOpen
	course.BookingOpensAt = &now
	s.mu.Unlock()

	s.scoring.SetBookingOpenTime(courseID, now)
	logger.Info("Opened booking for course: %s", courseID)
	return true
}

// CloseBooking transitions the course to COURSE_STARTED.
func (s *RegistrationService) CloseBooking(courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	course, ok := s.courses[courseID]
	if !ok {
		return false
	}
	course.BookingState = domain.CourseStarted
	logger.Info("Closed booking for course: %s", courseID)
	return true
}

// CompleteCourse transitions the course to COURSE_COMPLETED; subsequent
// applies are rejected and its waitlist is evicted.
func (s *RegistrationService) CompleteCourse(courseID string) bool {
	s.mu.Lock()
	course, ok := s.courses[courseID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	course.BookingState = domain.CourseCompleted
	s.mu.Unlock()

	for {
		if _, ok := s.waitlist.PopTop(courseID); !ok {
			break
		}
	}

	logger.Info("Marked course as completed: %s", courseID)
	return true
}

func notFound(studentID, courseID, message string) domain.AllocationResult {
	return domain.AllocationResult{
		StudentID: studentID,
		CourseID:  courseID,
		Success:   false,
		Status:    domain.StatusRejected,
		Message:   message,
	}
}
