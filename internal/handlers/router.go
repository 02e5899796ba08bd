package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emedical/clinic-api/internal/middleware"
	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/services"
	"github.com/emedical/clinic-api/internal/utils"
)

const maxBodyBytes = 100 << 10

type RouterConfig struct {
	CORSOrigins []string
	Development bool
	Production  bool
	// RateLimiter is optional; without it requests are not throttled.
	RateLimiter services.RateLimiter
}

func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.ErrorHandler(logger, cfg.Development),
		middleware.SecurityHeaders(cfg.Production),
		middleware.BodyLimit(maxBodyBytes),
	)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter, logger))
	}
	v1 := api.Group("/v1")

	protectUser := middleware.Protect(h.Tokens, h.Users)
	protectDoctor := middleware.Protect(h.Tokens, h.Doctors)
	adminOnly := middleware.RestrictTo(models.RoleAdmin)

	userAuth := NewUserAuth(h)
	users := v1.Group("/users")
	{
		users.POST("/signup", userAuth.Signup(DecodeUser))
		users.POST("/login", userAuth.Login)
		users.POST("/forgotPassword", userAuth.ForgotPassword)
		users.PATCH("/resetPassword/:token", userAuth.ResetPassword)

		users.PATCH("/updateMyPassword", protectUser, userAuth.UpdateMyPassword)
		users.PATCH("/updateMe", protectUser, h.UpdateMe)
		users.DELETE("/deleteMe", protectUser, h.DeleteMe)
		users.GET("/me", protectUser, h.GetMe)

		patientOnly := middleware.RestrictTo(models.RoleUser)
		users.POST("/requestAppointment", protectUser, patientOnly, h.RequestAppointment)
		users.GET("/myAppointments", protectUser, patientOnly, h.UserAppointments)

		admin := users.Group("", protectUser, adminOnly)
		admin.GET("", h.GetAllUsers)
		admin.POST("", h.CreateUser)
		admin.GET("/:id", h.GetUser)
		admin.PATCH("/:id", h.UpdateUser)
		admin.DELETE("/:id", h.DeleteUser)
	}

	doctorAuth := NewDoctorAuth(h)
	doctors := v1.Group("/doctors")
	{
		doctors.POST("/signup", doctorAuth.Signup(DecodeDoctor))
		doctors.POST("/login", doctorAuth.Login)
		doctors.POST("/forgotPassword", doctorAuth.ForgotPassword)
		doctors.PATCH("/resetPassword/:token", doctorAuth.ResetPassword)
		doctors.GET("/departmentsAndLocations", h.DepartmentsAndLocations)

		doctors.PATCH("/updateMyPassword", protectDoctor, doctorAuth.UpdateMyPassword)
		doctors.PATCH("/updateMe", protectDoctor, h.DoctorUpdateMe)
		doctors.DELETE("/deleteMe", protectDoctor, h.DoctorDeleteMe)

		doctorOnly := middleware.RestrictTo(models.RoleDoctor)
		doctors.POST("/acceptAppointment", protectDoctor, doctorOnly, h.AcceptAppointment)
		doctors.POST("/rejectAppointment", protectDoctor, doctorOnly, h.RejectAppointment)
		doctors.POST("/finishAppointment", protectDoctor, doctorOnly, h.FinishAppointment)
		doctors.GET("/myAppointments", protectDoctor, doctorOnly, h.DoctorAppointments)
		doctors.GET("/:id/showMedicalHistory", protectDoctor, doctorOnly, h.ShowMedicalHistory)

		doctors.GET("/admin", protectUser, adminOnly, h.GetAllDoctorsAdmin)
		doctors.GET("/:id/admin", protectUser, adminOnly, h.GetDoctorAdmin)

		doctors.GET("/:id/availableAppointments", h.AvailableAppointments)
		doctors.GET("", h.GetAllDoctors)
		doctors.GET("/:id", h.GetDoctor)

		admin := doctors.Group("", protectUser, adminOnly)
		admin.POST("", h.CreateDoctor)
		admin.PATCH("/:id", h.UpdateDoctor)
		admin.DELETE("/:id", h.DeleteDoctor)
	}

	appointments := v1.Group("/appointments", protectUser, adminOnly)
	{
		appointments.GET("", h.GetAllAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, utils.NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request.URL.RequestURI())))
	})

	return r
}
