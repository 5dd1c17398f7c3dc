package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/einstein-academy/course-registration/internal/allocation"
	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/scoring"
	"github.com/einstein-academy/course-registration/internal/service"
	"github.com/einstein-academy/course-registration/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	simStudents int
	simCapacity int
	simStrategy string
	simSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a high-contention allocation simulation",
	Long: `Generate a large cohort of students competing for one limited-enrollment
course, run a batch allocation and report selection quality (mean GPA of
enrolled vs not-enrolled students, waitlist remainder).`,
	Run: func(cmd *cobra.Command, args []string) {
		runSimulation()
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVar(&simStudents, "students", 800, "Number of competing students")
	simulateCmd.Flags().IntVar(&simCapacity, "capacity", 200, "Course capacity")
	simulateCmd.Flags().StringVar(&simStrategy, "strategy", "balanced", "Allocation strategy (balanced, greedy, student_optimal, course_optimal)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 42, "Random seed for the generated cohort")
}

var interestPool = []string{
	"machine-learning", "ai", "deep-learning", "python", "data-science",
	"algorithms", "statistics", "math", "programming", "research",
}

func runSimulation() {
	cfg := service.DefaultConfig()
	cfg.ScoringWeights = scoring.Weights{
		GPA:          0.40,
		Interest:     0.25,
		Time:         0.20,
		YearFit:      0.10,
		Prerequisite: 0.05,
	}
	cfg.Allocation.Strategy = allocation.Strategy(simStrategy)

	svc, err := service.NewRegistrationService(cfg, nil)
	if err != nil {
		logger.Fatal("Failed to build registration service: %v", err)
	}

	svc.AddCourse(&domain.Course{
		CourseID:       "ML500",
		Name:           "Advanced Machine Learning (Limited Enrollment)",
		Capacity:       simCapacity,
		Prerequisites:  domain.NewStringSet("CS201", "MATH201"),
		Tags:           domain.NewStringSet("machine-learning", "ai", "deep-learning", "python", "data-science"),
		MinGPA:         2.5,
		PreferredYears: domain.NewIntSet(3, 4),
		BookingState:   domain.BookingClosed,
	})
	svc.OpenBooking("ML500")

	rng := rand.New(rand.NewSource(simSeed))
	gpaByStudent := make(map[string]float64, simStudents)

	fmt.Printf("Generating %d students competing for %d seats...\n", simStudents, simCapacity)

	appliedAt := time.Now().UTC()
	applied := 0
	for i := 0; i < simStudents; i++ {
		gpa := rng.NormFloat64()*0.5 + 3.0
		if gpa < 2.0 {
			gpa = 2.0
		}
		if gpa > 4.0 {
			gpa = 4.0
		}

		year := 2
		switch draw := rng.Float64(); {
		case draw < 0.5:
			year = 3
		case draw < 0.8:
			year = 4
		}

		interests := make([]string, 0, 5)
		for _, idx := range rng.Perm(len(interestPool))[:2+rng.Intn(4)] {
			interests = append(interests, interestPool[idx])
		}

		completed := []string{"CS101", "CS201", "MATH201"}
		if rng.Float64() >= 0.85 {
			completed = []string{"CS101"}
		}

		studentID := fmt.Sprintf("STU%04d", i)
		svc.AddStudent(&domain.Student{
			StudentID:        studentID,
			GPA:              gpa,
			Year:             year,
			Interests:        domain.NewStringSet(interests...),
			CompletedCourses: domain.NewStringSet(completed...),
		})
		svc.SetPreferences(studentID, []string{"ML500"})
		gpaByStudent[studentID] = gpa

		result := svc.Apply(studentID, "ML500", appliedAt)
		if result.Status == domain.StatusWaitlisted {
			applied++
		}
		appliedAt = appliedAt.Add(time.Duration(rng.Intn(120)) * time.Second)
	}

	fmt.Printf("%d applications accepted onto the waitlist\n", applied)

	start := time.Now()
	svc.RunAllocation()
	elapsed := time.Since(start)

	status, _ := svc.GetCourseStatus("ML500")

	enrolledGPA := 0.0
	for _, studentID := range status.EnrolledStudents {
		enrolledGPA += gpaByStudent[studentID]
	}
	if len(status.EnrolledStudents) > 0 {
		enrolledGPA /= float64(len(status.EnrolledStudents))
	}

	waitingGPA := 0.0
	waiting := applied - len(status.EnrolledStudents)
	if waiting > 0 {
		total := 0.0
		for studentID, gpa := range gpaByStudent {
			if !contains(status.EnrolledStudents, studentID) {
				total += gpa
			}
		}
		waitingGPA = total / float64(simStudents-len(status.EnrolledStudents))
	}

	fmt.Printf("\nAllocation finished in %s\n", elapsed)
	fmt.Printf("Enrolled:        %d/%d\n", status.CurrentEnrollment, status.Capacity)
	fmt.Printf("Still waitlisted: %d\n", status.WaitlistSize)
	fmt.Printf("Mean GPA (enrolled):  %.3f\n", enrolledGPA)
	fmt.Printf("Mean GPA (remaining): %.3f\n", waitingGPA)
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
