package handlers

import (
	"net/http"
	"time"

	domain "github.com/einstein-academy/course-registration/internal/domain/registration"
	"github.com/einstein-academy/course-registration/internal/service"
	"github.com/einstein-academy/course-registration/pkg/validator"

	"github.com/gin-gonic/gin"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// RegistrationHandler adapts HTTP requests onto the registration service
type RegistrationHandler struct {
	registrationService *service.RegistrationService
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrationService *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
	}
}

// bindAndValidate decodes the JSON body and runs struct validation,
// writing the error response itself on failure.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid request format",
			Errors:  err.Error(),
		})
		return false
	}

	if err := validator.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  validator.FormatValidationError(err),
		})
		return false
	}

	return true
}

// AddStudent handles POST /api/v1/students
func (h *RegistrationHandler) AddStudent(c *gin.Context) {
	var req domain.AddStudentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.registrationService.AddStudent(&domain.Student{
		StudentID:        req.StudentID,
		Name:             req.Name,
		Email:            req.Email,
		GPA:              req.GPA,
		Year:             req.Year,
		Interests:        domain.NewStringSet(req.Interests...),
		CompletedCourses: domain.NewStringSet(req.CompletedCourses...),
	})

	c.JSON(http.StatusCreated, APIResponse{Success: true, Message: "Student added"})
}

// AddCourse handles POST /api/v1/courses
func (h *RegistrationHandler) AddCourse(c *gin.Context) {
	var req domain.AddCourseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.registrationService.AddCourse(&domain.Course{
		CourseID:       req.CourseID,
		Name:           req.Name,
		Capacity:       req.Capacity,
		Prerequisites:  domain.NewStringSet(req.Prerequisites...),
		Tags:           domain.NewStringSet(req.Tags...),
		MinGPA:         req.MinGPA,
		PreferredYears: domain.NewIntSet(req.PreferredYears...),
		BookingState:   domain.BookingClosed,
	})

	c.JSON(http.StatusCreated, APIResponse{Success: true, Message: "Course added"})
}

// SetPreferences handles PUT /api/v1/students/:student_id/preferences
func (h *RegistrationHandler) SetPreferences(c *gin.Context) {
	var req domain.SetPreferencesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.registrationService.SetPreferences(req.StudentID, req.CourseIDs)
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Preferences updated"})
}

// Apply handles POST /api/v1/register/apply
func (h *RegistrationHandler) Apply(c *gin.Context) {
	var req domain.ApplyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	appliedAt := time.Time{}
	if req.AppliedAt != nil {
		appliedAt = *req.AppliedAt
	}

	result := h.registrationService.Apply(req.StudentID, req.CourseID, appliedAt)
	c.JSON(http.StatusOK, APIResponse{Success: result.Success, Data: result})
}

// ApplyAll handles POST /api/v1/register/apply-all
func (h *RegistrationHandler) ApplyAll(c *gin.Context) {
	var req domain.ApplyAllRequest
	if !bindAndValidate(c, &req) {
		return
	}

	appliedAt := time.Time{}
	if req.AppliedAt != nil {
		appliedAt = *req.AppliedAt
	}

	results := h.registrationService.ApplyAll(req.StudentID, appliedAt)
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: results})
}

// ManualRegister handles POST /api/v1/register/manual
func (h *RegistrationHandler) ManualRegister(c *gin.Context) {
	var req domain.ManualRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result := h.registrationService.ManualRegister(req.StudentID, req.CourseID)
	c.JSON(http.StatusOK, APIResponse{Success: result.Success, Data: result})
}

// DropCourse handles POST /api/v1/register/drop
func (h *RegistrationHandler) DropCourse(c *gin.Context) {
	var req domain.DropCourseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	filled := h.registrationService.ProcessDropout(req.StudentID, req.CourseID)
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Course dropped",
		Data:    filled,
	})
}

// RunAllocation handles POST /api/v1/allocation/run
func (h *RegistrationHandler) RunAllocation(c *gin.Context) {
	var req domain.RunAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid request format",
			Errors:  err.Error(),
		})
		return
	}

	results := h.registrationService.RunAllocation(req.CourseIDs...)
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: results})
}

// GetWaitlistStatus handles GET /api/v1/students/:student_id/waitlist/:course_id
func (h *RegistrationHandler) GetWaitlistStatus(c *gin.Context) {
	studentID := c.Param("student_id")
	courseID := c.Param("course_id")

	status := h.registrationService.GetWaitlistStatus(studentID, courseID)
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: status})
}

// GetStudentStatus handles GET /api/v1/students/:student_id/status
func (h *RegistrationHandler) GetStudentStatus(c *gin.Context) {
	studentID := c.Param("student_id")

	status := h.registrationService.GetStudentStatus(studentID)
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: status})
}

// GetCourseStatus handles GET /api/v1/courses/:course_id/status
func (h *RegistrationHandler) GetCourseStatus(c *gin.Context) {
	courseID := c.Param("course_id")

	status, err := h.registrationService.GetCourseStatus(courseID)
	if err != nil {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: status})
}

// OpenBooking handles POST /api/v1/courses/:course_id/open
func (h *RegistrationHandler) OpenBooking(c *gin.Context) {
	h.lifecycle(c, h.registrationService.OpenBooking, "Booking opened")
}

// CloseBooking handles POST /api/v1/courses/:course_id/close
func (h *RegistrationHandler) CloseBooking(c *gin.Context) {
	h.lifecycle(c, h.registrationService.CloseBooking, "Booking closed")
}

// CompleteCourse handles POST /api/v1/courses/:course_id/complete
func (h *RegistrationHandler) CompleteCourse(c *gin.Context) {
	h.lifecycle(c, h.registrationService.CompleteCourse, "Course completed")
}

func (h *RegistrationHandler) lifecycle(c *gin.Context, transition func(string) bool, message string) {
	courseID := c.Param("course_id")

	if !transition(courseID) {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Message: "Course not found",
		})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: message})
}
