package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
)

type AppointmentUpdate struct {
	Patient     *string             `json:"patient"`
	Doctor      *string             `json:"doctor"`
	Date        *time.Time          `json:"date"`
	Status      *models.Status      `json:"status"`
	Examination *models.Examination `json:"examination"`
}

func (h *Handler) GetAllAppointments(c *gin.Context) {
	appointments, err := h.Appointments.List(c.Request.Context(), h.query(c, nil))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, "appointments", appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	apt, err := h.Appointments.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, orNotFound(err, "No appointment found with that ID"))
		return
	}
	respond(c, http.StatusOK, gin.H{"appointment": apt})
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req AppointmentUpdate
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	apt := &models.Appointment{Status: models.StatusPending, CreatedAt: h.now()}
	if err := h.applyAppointment(ctx, apt, &req, bson.M{}); err != nil {
		fail(c, err)
		return
	}
	if err := apt.Validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.Appointments.Create(ctx, apt); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"appointment": apt})
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	var req AppointmentUpdate
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	set := bson.M{}
	if err := h.applyAppointment(ctx, &models.Appointment{}, &req, set); err != nil {
		fail(c, err)
		return
	}

	var (
		apt *models.Appointment
		err error
	)
	if len(set) == 0 {
		apt, err = h.Appointments.FindByID(ctx, c.Param("id"))
	} else {
		apt, err = h.Appointments.Update(ctx, c.Param("id"), set)
	}
	if err != nil {
		fail(c, orNotFound(err, "No appointment found with that ID"))
		return
	}
	respond(c, http.StatusOK, gin.H{"appointment": apt})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	if _, err := h.Appointments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, orNotFound(err, "No appointment found with that ID"))
		return
	}
	respondDeleted(c)
}

// applyAppointment copies the present fields of req onto apt and set,
// checking that referenced principals exist.
func (h *Handler) applyAppointment(ctx context.Context, apt *models.Appointment, req *AppointmentUpdate, set bson.M) error {
	if req.Patient != nil {
		id, err := store.ParseID("patient", *req.Patient)
		if err != nil {
			return err
		}
		if _, err := h.Users.FindByID(ctx, *req.Patient); err != nil {
			return orNotFound(err, "No patient found with that ID")
		}
		apt.PatientID = id
		set["patient"] = id
	}
	if req.Doctor != nil {
		id, err := store.ParseID("doctor", *req.Doctor)
		if err != nil {
			return err
		}
		if _, err := h.Doctors.FindByID(ctx, *req.Doctor); err != nil {
			return orNotFound(err, "No doctor found with that ID")
		}
		apt.DoctorID = id
		set["doctor"] = id
	}
	if req.Date != nil {
		apt.Date = req.Date.UTC()
		set["date"] = apt.Date
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return models.NewValidationError("status", "status must be either pending, not-finished, finished or rejected")
		}
		apt.Status = *req.Status
		set["status"] = apt.Status
	}
	if req.Examination != nil {
		apt.Examination = req.Examination
		set["examination"] = req.Examination
	}
	return nil
}
