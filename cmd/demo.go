package cmd

import (
	"fmt"
	"time"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/service"
	"github.com/einstein-academy/course-registration/pkg/logger"

	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a seeded walkthrough of the allocation engine",
	Long: `Seed a handful of students and courses, open booking, apply everyone
through their preference lists, run a batch allocation and process a
dropout, printing each outcome along the way.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDemo()
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo() {
	svc, err := service.NewRegistrationService(service.DefaultConfig(), nil)
	if err != nil {
		logger.Fatal("Failed to build registration service: %v", err)
	}

	svc.AddCourse(&domain.Course{
		CourseID:       "ML301",
		Name:           "Machine Learning",
		Capacity:       2,
		Prerequisites:  domain.NewStringSet("CS101", "CS201"),
		Tags:           domain.NewStringSet("machine-learning", "ai", "python", "data-science"),
		MinGPA:         3.0,
		PreferredYears: domain.NewIntSet(3, 4),
		BookingState:   domain.BookingClosed,
	})
	svc.AddCourse(&domain.Course{
		CourseID:       "DB201",
		Name:           "Database Systems",
		Capacity:       3,
		Prerequisites:  domain.NewStringSet("CS101"),
		Tags:           domain.NewStringSet("databases", "sql", "systems"),
		MinGPA:         2.5,
		PreferredYears: domain.NewIntSet(2, 3),
		BookingState:   domain.BookingClosed,
	})

	students := []*domain.Student{
		{
			StudentID: "alice", GPA: 3.8, Year: 3,
			Interests:        domain.NewStringSet("machine-learning", "ai", "python"),
			CompletedCourses: domain.NewStringSet("CS101", "CS201"),
		},
		{
			StudentID: "bob", GPA: 3.4, Year: 4,
			Interests:        domain.NewStringSet("ai", "databases"),
			CompletedCourses: domain.NewStringSet("CS101", "CS201"),
		},
		{
			StudentID: "carol", GPA: 3.1, Year: 2,
			Interests:        domain.NewStringSet("databases", "sql"),
			CompletedCourses: domain.NewStringSet("CS101", "CS201"),
		},
		{
			StudentID: "dave", GPA: 3.6, Year: 3,
			Interests:        domain.NewStringSet("machine-learning", "data-science"),
			CompletedCourses: domain.NewStringSet("CS101", "CS201"),
		},
	}
	for _, student := range students {
		svc.AddStudent(student)
	}

	svc.SetPreferences("alice", []string{"ML301", "DB201"})
	svc.SetPreferences("bob", []string{"ML301", "DB201"})
	svc.SetPreferences("carol", []string{"DB201"})
	svc.SetPreferences("dave", []string{"ML301", "DB201"})

	fmt.Println("== Opening booking ==")
	svc.OpenBooking("ML301")
	svc.OpenBooking("DB201")

	fmt.Println("\n== Applications ==")
	appliedAt := time.Now().UTC()
	for _, student := range students {
		for _, result := range svc.ApplyAll(student.StudentID, appliedAt) {
			printResult(result)
		}
		appliedAt = appliedAt.Add(30 * time.Minute)
	}

	fmt.Println("\n== Batch allocation ==")
	for _, results := range svc.RunAllocation() {
		for _, result := range results {
			printResult(result)
		}
	}

	fmt.Println("\n== Course status ==")
	for _, courseID := range []string{"ML301", "DB201"} {
		status, _ := svc.GetCourseStatus(courseID)
		fmt.Printf("%s: %d/%d enrolled, %d waitlisted\n",
			courseID, status.CurrentEnrollment, status.Capacity, status.WaitlistSize)
	}

	fmt.Println("\n== Dropout ==")
	mlStatus, _ := svc.GetCourseStatus("ML301")
	if len(mlStatus.EnrolledStudents) > 0 {
		dropped := mlStatus.EnrolledStudents[0]
		fmt.Printf("%s drops ML301\n", dropped)
		if filled := svc.ProcessDropout(dropped, "ML301"); filled != nil {
			printResult(*filled)
		} else {
			fmt.Println("no waiter available")
		}
	}
}

func printResult(result domain.AllocationResult) {
	line := fmt.Sprintf("%-8s %-8s %-12s %s", result.StudentID, result.CourseID, result.Status, result.Message)
	if result.WaitlistPosition != nil {
		line += fmt.Sprintf(" (position %d)", *result.WaitlistPosition)
	}
	if result.Score != nil {
		line += fmt.Sprintf(" [score %.4f]", *result.Score)
	}
	fmt.Println(line)
}
