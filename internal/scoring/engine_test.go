package scoring

import (
	"math"
	"testing"
	"time"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStudent() *domain.Student {
	return &domain.Student{
		StudentID:        "STU001",
		GPA:              3.5,
		Year:             3,
		Interests:        domain.NewStringSet("machine-learning", "ai", "python"),
		CompletedCourses: domain.NewStringSet("CS101", "CS201"),
	}
}

func testCourse() *domain.Course {
	return &domain.Course{
		CourseID:       "ML301",
		Capacity:       30,
		Prerequisites:  domain.NewStringSet("CS101", "CS201"),
		Tags:           domain.NewStringSet("machine-learning", "ai", "python", "data-science"),
		MinGPA:         3.0,
		PreferredYears: domain.NewIntSet(3, 4),
		BookingState:   domain.BookingOpen,
	}
}

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	_, err := NewEngine(Weights{GPA: 0.5, Interest: 0.5, Time: 0.5})
	require.Error(t, err)

	_, err = NewEngine(DefaultWeights())
	require.NoError(t, err)
}

func TestWeightPresets_AllValid(t *testing.T) {
	for _, weights := range []Weights{
		DefaultWeights(),
		CompetitiveWeights(),
		InterestFocusedWeights(),
		FCFSLeaningWeights(),
	} {
		assert.NoError(t, weights.Validate())
	}

	assert.Equal(t, CompetitiveWeights(), WeightsForProfile("competitive"))
	assert.Equal(t, DefaultWeights(), WeightsForProfile("unknown"))
}

func TestComputeScore_Breakdown(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	appliedAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	engine.SetBookingOpenTime("ML301", appliedAt.Add(-1*time.Hour))

	app := engine.ComputeScore(testStudent(), testCourse(), appliedAt, 1)

	// gpa: 3.5/4 + min(0.1, 0.5*0.05) = 0.875 + 0.025
	assert.InDelta(t, 0.900, app.GPAScore, 1e-9)
	// interest: |{ml,ai,python}| / |{ml,ai,python,data-science}| = 3/4
	assert.InDelta(t, 0.750, app.InterestScore, 1e-9)
	// time: one hour into a 168h half-life
	expectedTime := math.Exp(-math.Ln2 / 168.0)
	assert.InDelta(t, expectedTime, app.TimeScore, 1e-9)
	assert.InDelta(t, 1.0, app.YearScore, 1e-9)
	assert.InDelta(t, 1.0, app.PrereqScore, 1e-9)

	expected := 0.35*0.900 + 0.30*0.750 + 0.20*expectedTime + 0.10*1.0 + 0.05*1.0
	assert.InDelta(t, expected, app.CompositeScore, 1e-9)
	assert.InDelta(t, 0.8892, app.CompositeScore, 1e-3)
}

func TestComputeScore_CompositeIsWeightedSum(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	app := engine.ComputeScore(testStudent(), testCourse(), time.Now().UTC(), 2)

	sum := 0.35*app.GPAScore + 0.30*app.InterestScore + 0.20*app.TimeScore +
		0.10*app.YearScore + 0.05*app.PrereqScore
	assert.InDelta(t, sum, app.CompositeScore, 1e-9)
	assert.GreaterOrEqual(t, app.CompositeScore, 0.0)
	assert.LessOrEqual(t, app.CompositeScore, 1.0)
}

func TestComputeScore_Deterministic(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	appliedAt := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	engine.SetBookingOpenTime("ML301", appliedAt.Add(-6*time.Hour))

	first := engine.ComputeScore(testStudent(), testCourse(), appliedAt, 1)
	second := engine.ComputeScore(testStudent(), testCourse(), appliedAt, 1)

	assert.Equal(t, first.CompositeScore, second.CompositeScore)
}

func TestTimeScore_HalvesAtDecayHours(t *testing.T) {
	engine, err := NewEngine(DefaultWeights(), WithTimeDecayHours(168))
	require.NoError(t, err)

	opened := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	engine.SetBookingOpenTime("ML301", opened)

	app := engine.ComputeScore(testStudent(), testCourse(), opened.Add(168*time.Hour), 1)
	assert.InDelta(t, 0.5, app.TimeScore, 1e-9)
}

func TestTimeScore_UnknownOpenTimeIsFullBonus(t *testing.T) {
	engine, err := NewEngine(DefaultWeights(), WithMaxTimeBonus(1.0))
	require.NoError(t, err)

	app := engine.ComputeScore(testStudent(), testCourse(), time.Now().UTC(), 1)
	assert.InDelta(t, 1.0, app.TimeScore, 1e-9)
}

func TestGPAScore_BelowMinimumIsZero(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	student := testStudent()
	student.GPA = 2.4
	course := testCourse()
	course.MinGPA = 2.5

	app := engine.ComputeScore(student, course, time.Now().UTC(), 1)
	assert.Zero(t, app.GPAScore)
}

func TestGPAScore_BonusCapped(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	student := testStudent()
	student.GPA = 4.0
	course := testCourse()
	course.MinGPA = 0.0

	app := engine.ComputeScore(student, course, time.Now().UTC(), 1)
	assert.InDelta(t, 1.0, app.GPAScore, 1e-9)
}

func TestInterestScore_EmptySetsAreNeutral(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	student := testStudent()
	student.Interests = nil

	app := engine.ComputeScore(student, testCourse(), time.Now().UTC(), 1)
	assert.InDelta(t, 0.5, app.InterestScore, 1e-9)

	course := testCourse()
	course.Tags = nil
	app = engine.ComputeScore(testStudent(), course, time.Now().UTC(), 1)
	assert.InDelta(t, 0.5, app.InterestScore, 1e-9)
}

func TestInterestScore_CaseInsensitive(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	student := testStudent()
	student.Interests = domain.NewStringSet("Machine-Learning", "AI", "Python")

	app := engine.ComputeScore(student, testCourse(), time.Now().UTC(), 1)
	assert.InDelta(t, 0.75, app.InterestScore, 1e-9)
}

func TestYearScore_AdjacencyTiers(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	cases := []struct {
		year     int
		expected float64
	}{
		{3, 1.0},  // preferred
		{2, 0.5},  // adjacent to 3
		{1, 0.25}, // distance 2
	}

	for _, tc := range cases {
		student := testStudent()
		student.Year = tc.year
		app := engine.ComputeScore(student, testCourse(), time.Now().UTC(), 1)
		assert.InDelta(t, tc.expected, app.YearScore, 1e-9, "year %d", tc.year)
	}
}

func TestPrereqScore_PartialCompletion(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	student := testStudent()
	student.CompletedCourses = domain.NewStringSet("CS101")

	app := engine.ComputeScore(student, testCourse(), time.Now().UTC(), 1)
	assert.InDelta(t, 0.5, app.PrereqScore, 1e-9)

	course := testCourse()
	course.Prerequisites = nil
	app = engine.ComputeScore(testStudent(), course, time.Now().UTC(), 1)
	assert.InDelta(t, 1.0, app.PrereqScore, 1e-9)
}

func TestRecomputeAll_KeepsIdentityAndStatus(t *testing.T) {
	engine, err := NewEngine(DefaultWeights())
	require.NoError(t, err)

	student := testStudent()
	course := testCourse()
	appliedAt := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

	app := engine.ComputeScore(student, course, appliedAt, 1)
	app.Status = domain.StatusRegistered

	students := map[string]*domain.Student{student.StudentID: student}
	courses := map[string]*domain.Course{course.CourseID: course}

	updated := engine.RecomputeAll([]domain.CourseApplication{app}, students, courses)
	require.Len(t, updated, 1)
	assert.Equal(t, app.ApplicationID, updated[0].ApplicationID)
	assert.Equal(t, domain.StatusRegistered, updated[0].Status)
	assert.Equal(t, app.CompositeScore, updated[0].CompositeScore)

	// Unknown entities pass through unchanged.
	orphan := app
	orphan.StudentID = "ghost"
	passed := engine.RecomputeAll([]domain.CourseApplication{orphan}, students, courses)
	require.Len(t, passed, 1)
	assert.Equal(t, orphan, passed[0])
}
