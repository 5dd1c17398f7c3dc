package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/einstein-academy/course-registration/internal/allocation"
	"github.com/einstein-academy/course-registration/internal/api/router"
	"github.com/einstein-academy/course-registration/internal/config"
	"github.com/einstein-academy/course-registration/internal/infrastructure/database"
	"github.com/einstein-academy/course-registration/internal/infrastructure/repository"
	"github.com/einstein-academy/course-registration/internal/scoring"
	"github.com/einstein-academy/course-registration/internal/service"
	"github.com/einstein-academy/course-registration/internal/waitlist"
	"github.com/einstein-academy/course-registration/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var (
	port string
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the registration HTTP server",
	Long: `Start the registration HTTP server with the full allocation engine:
- Course application and manual registration endpoints
- Score-ordered waitlist management
- Periodic batch allocation in the background
- Dropout handling with automatic vacancy fills
- Optional Redis-backed waitlists and Postgres snapshots`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port for the server to listen on")
}

// serviceConfigFrom maps the viper config onto the service configuration.
func serviceConfigFrom(cfg *config.Config) service.Config {
	weights := scoring.Weights{
		GPA:          cfg.Scoring.GPAWeight,
		Interest:     cfg.Scoring.InterestWeight,
		Time:         cfg.Scoring.TimeWeight,
		YearFit:      cfg.Scoring.YearFitWeight,
		Prerequisite: cfg.Scoring.PrerequisiteWeight,
	}
	if cfg.Scoring.Profile != "" {
		weights = scoring.WeightsForProfile(cfg.Scoring.Profile)
	}

	return service.Config{
		ScoringWeights: weights,
		TimeDecayHours: cfg.Scoring.TimeDecayHours,
		MaxTimeBonus:   cfg.Scoring.MaxTimeBonus,
		Allocation: allocation.Config{
			Strategy:                    allocation.Strategy(cfg.Allocation.Strategy),
			MaxCoursesPerStudent:        cfg.Allocation.MaxCoursesPerStudent,
			AllowOversubscription:       cfg.Allocation.AllowOversubscription,
			PrioritizeStudentTopChoices: cfg.Allocation.PrioritizeStudentTopChoices,
		},
		BatchIntervalSeconds: cfg.Service.BatchIntervalSeconds,
		EnableAutoBatch:      cfg.Service.EnableAutoBatch,
	}
}

// waitlistStoreFrom selects the waitlist backend: Redis sorted sets when
// the cache is enabled, otherwise the in-memory store.
func waitlistStoreFrom(cfg *config.Config) waitlist.Store {
	if !cfg.Cache.Enabled {
		return waitlist.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Cache.Host, cfg.Cache.Port),
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	logger.Info("Using Redis waitlist backend at %s:%d", cfg.Cache.Host, cfg.Cache.Port)
	return waitlist.NewRedisStore(client)
}

func startServer() {
	cfg := config.Get()
	if port != "8080" {
		cfg.Server.Port = port
	}

	svc, err := service.NewRegistrationService(serviceConfigFrom(cfg), waitlistStoreFrom(cfg))
	if err != nil {
		logger.Fatal("Failed to build registration service: %v", err)
	}

	var snapshots *repository.SnapshotRepository
	if cfg.Database.Enabled {
		db, err := database.NewConnection(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.Username,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		if err := database.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run database migrations: %v", err)
		}

		snapshots = repository.NewSnapshotRepository(db)
		loadSnapshots(svc, snapshots)
	}

	if cfg.Service.EnableAutoBatch {
		svc.StartAutoBatch()
	}

	r := router.NewRouter(svc)

	srv := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        r,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	svc.StopAutoBatch()

	if snapshots != nil {
		saveSnapshots(svc, snapshots)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// loadSnapshots restores persisted entities into the service registries.
func loadSnapshots(svc *service.RegistrationService, snapshots *repository.SnapshotRepository) {
	ctx := context.Background()

	students, err := snapshots.LoadStudents(ctx)
	if err != nil {
		logger.Error("Failed to load student snapshots: %v", err)
	}
	for _, student := range students {
		svc.AddStudent(student)
	}

	courses, err := snapshots.LoadCourses(ctx)
	if err != nil {
		logger.Error("Failed to load course snapshots: %v", err)
	}
	for _, course := range courses {
		svc.AddCourse(course)
	}

	logger.Info("Restored %d students and %d courses from snapshots", len(students), len(courses))
}

// saveSnapshots persists the current registries on shutdown.
func saveSnapshots(svc *service.RegistrationService, snapshots *repository.SnapshotRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	saved := 0
	for _, studentID := range svc.StudentIDs() {
		if student := svc.GetStudent(studentID); student != nil {
			if err := snapshots.SaveStudent(ctx, student); err != nil {
				logger.Error("%v", err)
				continue
			}
			saved++
		}
	}
	for _, courseID := range svc.CourseIDs() {
		if course := svc.GetCourse(courseID); course != nil {
			if err := snapshots.SaveCourse(ctx, course); err != nil {
				logger.Error("%v", err)
				continue
			}
			saved++
		}
	}

	logger.Info("Persisted %d entity snapshots", saved)
}
