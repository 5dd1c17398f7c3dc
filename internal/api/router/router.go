package router

import (
	"github.com/einstein-academy/course-registration/internal/api/handlers"
	"github.com/einstein-academy/course-registration/internal/api/middleware"
	"github.com/einstein-academy/course-registration/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP adapter over an already-constructed
// registration service.
func NewRouter(registrationService *service.RegistrationService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(middleware.Logger())
	r.Use(cors.Default())
	r.Use(gin.Recovery())

	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	healthHandler := handlers.NewHealthHandler()

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	v1 := r.Group("/api/v1")
	{
		students := v1.Group("/students")
		{
			students.POST("", registrationHandler.AddStudent)
			students.PUT("/:student_id/preferences", registrationHandler.SetPreferences)
			students.GET("/:student_id/status", registrationHandler.GetStudentStatus)
			students.GET("/:student_id/waitlist/:course_id", registrationHandler.GetWaitlistStatus)
		}

		courses := v1.Group("/courses")
		{
			courses.POST("", registrationHandler.AddCourse)
			courses.GET("/:course_id/status", registrationHandler.GetCourseStatus)
			courses.POST("/:course_id/open", registrationHandler.OpenBooking)
			courses.POST("/:course_id/close", registrationHandler.CloseBooking)
			courses.POST("/:course_id/complete", registrationHandler.CompleteCourse)
		}

		register := v1.Group("/register")
		{
			register.POST("/apply", registrationHandler.Apply)
			register.POST("/apply-all", registrationHandler.ApplyAll)
			register.POST("/manual", registrationHandler.ManualRegister)
			register.POST("/drop", registrationHandler.DropCourse)
		}

		v1.POST("/allocation/run", registrationHandler.RunAllocation)
	}

	return r
}
