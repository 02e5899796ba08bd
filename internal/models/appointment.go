package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusNotFinished Status = "not-finished"
	StatusFinished    Status = "finished"
	StatusRejected    Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusNotFinished, StatusFinished, StatusRejected:
		return true
	}
	return false
}

// Active statuses hold their slot in the doctor's schedule.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusNotFinished
}

// CanTransition reports whether a doctor may move an appointment from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusNotFinished || next == StatusRejected
	case StatusNotFinished:
		return next == StatusFinished
	}
	return false
}

// Examination is recorded by the doctor when an appointment is finished.
type Examination struct {
	Diagnosis     string  `bson:"diagnosis" json:"diagnosis"`
	Prescription  string  `bson:"prescription" json:"prescription"`
	PatientAge    int     `bson:"patientAge,omitempty" json:"patientAge,omitempty"`
	PatientWeight float64 `bson:"patientWeight,omitempty" json:"patientWeight,omitempty"`
	Notes         string  `bson:"notes,omitempty" json:"notes,omitempty"`
}

type Appointment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID   primitive.ObjectID `bson:"patient,omitempty" json:"-"`
	DoctorID    primitive.ObjectID `bson:"doctor,omitempty" json:"-"`
	Patient     *PrincipalSummary  `bson:"-" json:"patient,omitempty"`
	Doctor      *PrincipalSummary  `bson:"-" json:"doctor,omitempty"`
	Date        time.Time          `bson:"date,omitempty" json:"date,omitzero"`
	Status      Status             `bson:"status,omitempty" json:"status,omitempty"`
	Examination *Examination       `bson:"examination,omitempty" json:"examination,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty" json:"createdAt,omitzero"`
}

func (a *Appointment) Validate() error {
	verr := &ValidationError{}
	if a.PatientID.IsZero() {
		verr.Add("patient", "An appointment must have a patient")
	}
	if a.DoctorID.IsZero() {
		verr.Add("doctor", "An appointment must have a doctor")
	}
	if a.Date.IsZero() {
		verr.Add("date", "An appointment must have a date")
	}
	if !a.Status.Valid() {
		verr.Add("status", "status must be either pending, not-finished, finished or rejected")
	}
	return verr.OrNil()
}
