package handlers

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/emedical/clinic-api/internal/middleware"
	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

// publicDoctorFields are the fields anonymous clients may filter and sort on.
var publicDoctorFields = []string{
	"name", "department", "location", "clinic",
	"scheduleStart", "scheduleEnd", "scheduleInterval", "createdAt",
}

type DoctorSignupRequest struct {
	UserSignupRequest
	Department       string `json:"department"`
	Location         string `json:"location"`
	Clinic           string `json:"clinic"`
	Summary          string `json:"summary"`
	ScheduleStart    int    `json:"scheduleStart"`
	ScheduleEnd      int    `json:"scheduleEnd"`
	ScheduleInterval int    `json:"scheduleInterval"`
	IDCard           string `json:"idCard"`
	Confirmed        bool   `json:"confirmed"`
}

func (r *DoctorSignupRequest) doctor() *models.Doctor {
	d := &models.Doctor{
		Account:          r.user().Account,
		Department:       r.Department,
		Location:         r.Location,
		Clinic:           r.Clinic,
		Summary:          r.Summary,
		ScheduleStart:    r.ScheduleStart,
		ScheduleEnd:      r.ScheduleEnd,
		ScheduleInterval: r.ScheduleInterval,
		IDCard:           r.IDCard,
		Confirmed:        r.Confirmed,
	}
	d.ApplyScheduleDefaults()
	return d
}

// DecodeDoctor reads a doctor signup body. New doctors always wait for an
// admin to confirm them.
func DecodeDoctor(c *gin.Context) (*models.Doctor, PasswordRequest, error) {
	var req DoctorSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, PasswordRequest{}, err
	}
	d := req.doctor()
	d.Confirmed = false
	return d, req.PasswordRequest, nil
}

// DoctorProfileUpdate carries the fields a doctor may change about itself.
type DoctorProfileUpdate struct {
	ProfileUpdate
	Clinic           *string `json:"clinic"`
	Summary          *string `json:"summary"`
	ScheduleStart    *int    `json:"scheduleStart"`
	ScheduleEnd      *int    `json:"scheduleEnd"`
	ScheduleInterval *int    `json:"scheduleInterval"`
}

// set builds the $set document. Schedule changes are validated against the
// current values of the fields that are not being changed.
func (p *DoctorProfileUpdate) set(current *models.Doctor, verr *models.ValidationError) bson.M {
	set := p.ProfileUpdate.set(verr)
	if p.Clinic != nil {
		set["clinic"] = *p.Clinic
	}
	if p.Summary != nil {
		set["summary"] = *p.Summary
	}

	if p.ScheduleStart == nil && p.ScheduleEnd == nil && p.ScheduleInterval == nil {
		return set
	}
	start, end, interval := current.ScheduleStart, current.ScheduleEnd, current.ScheduleInterval
	if p.ScheduleStart != nil {
		start = *p.ScheduleStart
		set["scheduleStart"] = start
	}
	if p.ScheduleEnd != nil {
		end = *p.ScheduleEnd
		set["scheduleEnd"] = end
	}
	if p.ScheduleInterval != nil {
		interval = *p.ScheduleInterval
		set["scheduleInterval"] = interval
	}
	models.ValidateSchedule(verr, start, end, interval)
	return set
}

func (h *Handler) DoctorUpdateMe(c *gin.Context) {
	var req DoctorProfileUpdate
	if !bindJSON(c, &req) {
		return
	}
	if err := rejectPasswordFields(req.Password, req.PasswordConfirm); err != nil {
		fail(c, err)
		return
	}

	doctor, _ := middleware.Current[*models.Doctor](c)
	verr := &models.ValidationError{}
	set := req.set(doctor, verr)
	if err := verr.OrNil(); err != nil {
		fail(c, err)
		return
	}
	if len(set) == 0 {
		respond(c, http.StatusOK, gin.H{"doctor": doctor})
		return
	}

	updated, err := h.Doctors.Update(c.Request.Context(), doctor.ID.Hex(), set)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"doctor": updated})
}

func (h *Handler) DoctorDeleteMe(c *gin.Context) {
	doctor, _ := middleware.Current[*models.Doctor](c)
	if err := h.Doctors.Deactivate(c.Request.Context(), doctor.ID.Hex()); err != nil {
		fail(c, err)
		return
	}
	respondDeleted(c)
}

type TransitionRequest struct {
	Appointment string `json:"appointment" binding:"required"`
}

type FinishRequest struct {
	Appointment   string  `json:"appointment" binding:"required"`
	Diagnosis     string  `json:"diagnosis" binding:"required"`
	Prescription  string  `json:"prescription" binding:"required"`
	PatientAge    int     `json:"patientAge" binding:"omitempty,min=0,max=150"`
	PatientWeight float64 `json:"patientWeight" binding:"omitempty,min=0"`
	Notes         string  `json:"notes"`
}

func (h *Handler) AcceptAppointment(c *gin.Context) {
	var req TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.transition(c, req.Appointment, models.StatusPending, models.StatusNotFinished, nil)
}

func (h *Handler) RejectAppointment(c *gin.Context) {
	var req TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.transition(c, req.Appointment, models.StatusPending, models.StatusRejected, nil)
}

func (h *Handler) FinishAppointment(c *gin.Context) {
	var req FinishRequest
	if !bindJSON(c, &req) {
		return
	}
	h.transition(c, req.Appointment, models.StatusNotFinished, models.StatusFinished, &models.Examination{
		Diagnosis:     req.Diagnosis,
		Prescription:  req.Prescription,
		PatientAge:    req.PatientAge,
		PatientWeight: req.PatientWeight,
		Notes:         req.Notes,
	})
}

// transition moves one of the caller's appointments from one status to the
// next and notifies the patient.
func (h *Handler) transition(c *gin.Context, id string, from, to models.Status, exam *models.Examination) {
	doctor, _ := middleware.Current[*models.Doctor](c)

	apt, err := h.Appointments.Transition(c.Request.Context(), id, doctor.ID, from, to, exam)
	if err != nil {
		var invalidID *store.InvalidIDError
		if errors.Is(err, store.ErrNotFound) || errors.As(err, &invalidID) {
			err = utils.BadRequest("Appointment doesn't exist or you don't have permission to access it")
		}
		fail(c, err)
		return
	}

	h.NotificationSvc.SendAppointmentStatus(apt.Patient, apt)
	respond(c, http.StatusOK, gin.H{"appointment": apt})
}

func (h *Handler) DoctorAppointments(c *gin.Context) {
	doctor, _ := middleware.Current[*models.Doctor](c)

	appointments, err := h.Appointments.List(c.Request.Context(), h.query(c, bson.M{"doctor": doctor.ID}))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "appointments", appointments)
}

// ShowMedicalHistory lists a patient's finished appointments. Only a doctor
// currently treating the patient may see them.
func (h *Handler) ShowMedicalHistory(c *gin.Context) {
	denied := utils.Forbidden("patient does not exist or you do not have access to this patient's medical history")

	patientID, err := store.ParseID("patient", c.Param("id"))
	if err != nil {
		fail(c, denied)
		return
	}

	ctx := c.Request.Context()
	doctor, _ := middleware.Current[*models.Doctor](c)
	treating, err := h.Appointments.HasAppointment(ctx, doctor.ID, patientID, models.StatusNotFinished)
	if err != nil {
		fail(c, err)
		return
	}
	if !treating {
		fail(c, denied)
		return
	}

	appointments, err := h.Appointments.ListByPatient(ctx, patientID, models.StatusFinished)
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "appointments", appointments)
}

// Public.

func (h *Handler) GetAllDoctors(c *gin.Context) {
	doctors, err := h.Doctors.List(c.Request.Context(), h.query(c, bson.M{"confirmed": true}, publicDoctorFields...))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "doctors", doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	doctor, err := h.confirmedDoctor(c)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"doctor": doctor})
}

// AvailableAppointments lists the free slots of a doctor on ?date=YYYY-MM-DD
// (today by default). Slots in the past are never offered.
func (h *Handler) AvailableAppointments(c *gin.Context) {
	now := h.now()
	day := now
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			fail(c, utils.BadRequest("Invalid date: "+raw+". Use YYYY-MM-DD."))
			return
		}
		day = parsed
	}

	doctor, err := h.confirmedDoctor(c)
	if err != nil {
		fail(c, err)
		return
	}

	slots := doctor.Slots(day)
	available := make([]time.Time, 0, len(slots))
	if len(slots) > 0 {
		from := slots[0]
		booked, err := h.Appointments.BookedTimes(c.Request.Context(), doctor.ID, from, from.Add(24*time.Hour))
		if err != nil {
			fail(c, err)
			return
		}
		for _, slot := range slots {
			if !slot.After(now) {
				continue
			}
			if slices.ContainsFunc(booked, slot.Equal) {
				continue
			}
			available = append(available, slot)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": len(available),
		"data": gin.H{
			"date":                  day.UTC().Format(time.DateOnly),
			"availableAppointments": available,
		},
	})
}

func (h *Handler) DepartmentsAndLocations(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"departments": models.Departments,
		"locations":   models.Locations,
	})
}

func (h *Handler) confirmedDoctor(c *gin.Context) (*models.Doctor, error) {
	doctor, err := h.Doctors.FindByID(c.Request.Context(), c.Param("id"))
	if err == nil && !doctor.Confirmed {
		err = store.ErrNotFound
	}
	if err != nil {
		return nil, orNotFound(err, "No doctor found with that ID")
	}
	return doctor, nil
}

// Admin.

func (h *Handler) GetAllDoctorsAdmin(c *gin.Context) {
	doctors, err := h.Doctors.List(c.Request.Context(), h.query(c, nil))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "doctors", doctors)
}

func (h *Handler) GetDoctorAdmin(c *gin.Context) {
	doctor, err := h.Doctors.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, orNotFound(err, "No doctor found with that ID"))
		return
	}
	respond(c, http.StatusOK, gin.H{"doctor": doctor})
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req DoctorSignupRequest
	if !bindJSON(c, &req) {
		return
	}

	doctor := req.doctor()
	doctor.Role = models.RoleDoctor
	doctor.Email = models.NormalizeEmail(doctor.Email)
	if err := doctor.SetPassword(req.Password, req.PasswordConfirm, h.now(), true); err != nil {
		fail(c, err)
		return
	}
	if err := doctor.Validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.Doctors.Create(c.Request.Context(), doctor); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"doctor": doctor})
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	var req struct {
		DoctorProfileUpdate
		Department *string `json:"department"`
		Location   *string `json:"location"`
		IDCard     *string `json:"idCard"`
		Confirmed  *bool   `json:"confirmed"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := rejectPasswordFields(req.Password, req.PasswordConfirm); err != nil {
		fail(c, err)
		return
	}

	ctx := c.Request.Context()
	current, err := h.Doctors.FindByID(ctx, c.Param("id"))
	if err != nil {
		fail(c, orNotFound(err, "No doctor found with that ID"))
		return
	}

	verr := &models.ValidationError{}
	set := req.DoctorProfileUpdate.set(current, verr)
	if req.Department != nil {
		if !slices.Contains(models.Departments, *req.Department) {
			verr.Add("department", "department not supported")
		}
		set["department"] = *req.Department
	}
	if req.Location != nil {
		if *req.Location != "" && !slices.Contains(models.Locations, *req.Location) {
			verr.Add("location", "location not supported")
		}
		set["location"] = *req.Location
	}
	if req.IDCard != nil {
		set["idCard"] = *req.IDCard
	}
	if req.Confirmed != nil {
		set["confirmed"] = *req.Confirmed
	}
	if err := verr.OrNil(); err != nil {
		fail(c, err)
		return
	}
	if len(set) == 0 {
		respond(c, http.StatusOK, gin.H{"doctor": current})
		return
	}

	doctor, err := h.Doctors.Update(ctx, current.ID.Hex(), set)
	if err != nil {
		fail(c, orNotFound(err, "No doctor found with that ID"))
		return
	}
	respond(c, http.StatusOK, gin.H{"doctor": doctor})
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	if _, err := h.Doctors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, orNotFound(err, "No doctor found with that ID"))
		return
	}
	respondDeleted(c)
}
