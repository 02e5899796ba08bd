package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/emedical/clinic-api/internal/middleware"
	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/services"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

type UserSignupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Photo       string `json:"photo"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role"`
	PasswordRequest
}

func (r *UserSignupRequest) user() *models.User {
	return &models.User{Account: models.Account{
		Name:        r.Name,
		Email:       r.Email,
		Photo:       r.Photo,
		PhoneNumber: r.PhoneNumber,
		Role:        r.Role,
	}}
}

// DecodeUser reads a user signup body. The role is overwritten by Signup.
func DecodeUser(c *gin.Context) (*models.User, PasswordRequest, error) {
	var req UserSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, PasswordRequest{}, err
	}
	return req.user(), req.PasswordRequest, nil
}

// ProfileUpdate carries the fields a principal may change about itself.
type ProfileUpdate struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Photo           *string `json:"photo"`
	PhoneNumber     *string `json:"phoneNumber"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// set builds the $set document, validating every field that is present.
func (p *ProfileUpdate) set(verr *models.ValidationError) bson.M {
	set := bson.M{}
	if p.Name != nil {
		if *p.Name == "" {
			verr.Add("name", "A user must have a name")
		}
		set["name"] = *p.Name
	}
	if p.Email != nil {
		email := models.NormalizeEmail(*p.Email)
		if !models.IsEmail(email) {
			verr.Add("email", "Please provide a valid email")
		}
		set["email"] = email
	}
	if p.Photo != nil {
		set["photo"] = *p.Photo
	}
	if p.PhoneNumber != nil {
		set["phoneNumber"] = *p.PhoneNumber
	}
	return set
}

// GetMe returns the caller's profile with all of their appointments.
func (h *Handler) GetMe(c *gin.Context) {
	user, _ := middleware.Current[*models.User](c)

	appointments, err := h.Appointments.ListByPatient(c.Request.Context(), user.ID, "")
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user, "appointments": appointments})
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req ProfileUpdate
	if !bindJSON(c, &req) {
		return
	}
	if err := rejectPasswordFields(req.Password, req.PasswordConfirm); err != nil {
		fail(c, err)
		return
	}

	user, _ := middleware.Current[*models.User](c)
	verr := &models.ValidationError{}
	set := req.set(verr)
	if err := verr.OrNil(); err != nil {
		fail(c, err)
		return
	}
	if len(set) == 0 {
		respond(c, http.StatusOK, gin.H{"user": user})
		return
	}

	updated, err := h.Users.Update(c.Request.Context(), user.ID.Hex(), set)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": updated})
}

func (h *Handler) DeleteMe(c *gin.Context) {
	user, _ := middleware.Current[*models.User](c)
	if err := h.Users.Deactivate(c.Request.Context(), user.ID.Hex()); err != nil {
		fail(c, err)
		return
	}
	respondDeleted(c)
}

type AppointmentRequest struct {
	Doctor string    `json:"doctor" binding:"required"`
	Date   time.Time `json:"date"`
}

// RequestAppointment books a pending appointment with a confirmed doctor in
// one of the doctor's free slots.
func (h *Handler) RequestAppointment(c *gin.Context) {
	var req AppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Date.IsZero() {
		fail(c, models.NewValidationError("date", "An appointment must have a date"))
		return
	}

	ctx := c.Request.Context()
	patient, _ := middleware.Current[*models.User](c)

	doctor, err := h.Doctors.FindByID(ctx, req.Doctor)
	if err == nil && !doctor.Confirmed {
		err = store.ErrNotFound
	}
	if err != nil {
		fail(c, orNotFound(err, "No doctor found with that ID"))
		return
	}

	date := req.Date.UTC()
	if !date.After(h.now()) {
		fail(c, utils.BadRequest("Appointments can only be requested in the future"))
		return
	}
	if !doctor.IsSlot(date) {
		fail(c, utils.BadRequest("The requested date is not one of the doctor's appointment slots"))
		return
	}

	apt := &models.Appointment{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      date,
		Status:    models.StatusPending,
		CreatedAt: h.now(),
	}
	if err := apt.Validate(); err != nil {
		fail(c, err)
		return
	}

	err = h.SlotLocker.WithSlotLock(ctx, doctor.ID, date, func(ctx context.Context) error {
		booked, err := h.Appointments.BookedTimes(ctx, doctor.ID, date, date.Add(time.Second))
		if err != nil {
			return err
		}
		if len(booked) > 0 {
			return utils.Conflict("This appointment slot is already booked")
		}
		return h.Appointments.Create(ctx, apt)
	})
	if errors.Is(err, services.ErrLockNotAcquired) {
		err = utils.Conflict("This appointment slot is being booked right now. Please try again")
	}
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"appointment": apt})
}

func (h *Handler) UserAppointments(c *gin.Context) {
	user, _ := middleware.Current[*models.User](c)

	appointments, err := h.Appointments.List(c.Request.Context(), h.query(c, bson.M{"patient": user.ID}))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "appointments", appointments)
}

// Admin.

func (h *Handler) GetAllUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context(), h.query(c, nil))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "users", users)
}

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.Users.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, orNotFound(err, "No user found with that ID"))
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

// CreateUser lets an admin create users and other admins.
func (h *Handler) CreateUser(c *gin.Context) {
	var req UserSignupRequest
	if !bindJSON(c, &req) {
		return
	}

	user := req.user()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Email = models.NormalizeEmail(user.Email)
	if err := user.SetPassword(req.Password, req.PasswordConfirm, h.now(), true); err != nil {
		fail(c, err)
		return
	}
	if err := user.Validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.Users.Create(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"user": user})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req struct {
		ProfileUpdate
		Role *string `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := rejectPasswordFields(req.Password, req.PasswordConfirm); err != nil {
		fail(c, err)
		return
	}

	verr := &models.ValidationError{}
	set := req.set(verr)
	if req.Role != nil {
		if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
			verr.Add("role", "role must be either user or admin")
		}
		set["role"] = *req.Role
	}
	if err := verr.OrNil(); err != nil {
		fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var (
		user *models.User
		err  error
	)
	if len(set) == 0 {
		user, err = h.Users.FindByID(ctx, c.Param("id"))
	} else {
		user, err = h.Users.Update(ctx, c.Param("id"), set)
	}
	if err != nil {
		fail(c, orNotFound(err, "No user found with that ID"))
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if _, err := h.Users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, orNotFound(err, "No user found with that ID"))
		return
	}
	respondDeleted(c)
}
