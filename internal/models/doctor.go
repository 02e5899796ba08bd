package models

import (
	"slices"
	"time"
)

const (
	DefaultScheduleStart    = 12 * 60
	DefaultScheduleEnd      = 17 * 60
	DefaultScheduleInterval = 30
	lastMinuteOfDay         = 24*60 - 1
	minScheduleInterval     = 5
)

var Departments = []string{
	"Pediatrics",
	"Cardiology",
	"Ophthalmology",
	"Surgery",
	"Dentistry",
	"Orthopedics",
}

var Locations = []string{
	"Akhmim",
	"Sohag",
	"Saqulta",
	"Dar El Salam",
	"Tahta",
	"Tema",
}

// Doctor is a practitioner account with its public profile and weekly
// schedule window, expressed in minutes since midnight UTC.
type Doctor struct {
	Account          `bson:",inline"`
	Department       string `bson:"department" json:"department,omitempty"`
	Location         string `bson:"location,omitempty" json:"location,omitempty"`
	ScheduleStart    int    `bson:"scheduleStart" json:"scheduleStart"`
	ScheduleEnd      int    `bson:"scheduleEnd" json:"scheduleEnd,omitempty"`
	ScheduleInterval int    `bson:"scheduleInterval" json:"scheduleInterval,omitempty"`
	Clinic           string `bson:"clinic,omitempty" json:"clinic,omitempty"`
	Summary          string `bson:"summary,omitempty" json:"summary,omitempty"`
	Confirmed        bool   `bson:"confirmed" json:"confirmed"`
	IDCard           string `bson:"idCard,omitempty" json:"idCard,omitempty"`
}

// ApplyScheduleDefaults fills unset schedule fields.
func (d *Doctor) ApplyScheduleDefaults() {
	if d.ScheduleStart == 0 && d.ScheduleEnd == 0 {
		d.ScheduleStart = DefaultScheduleStart
		d.ScheduleEnd = DefaultScheduleEnd
	}
	if d.ScheduleInterval == 0 {
		d.ScheduleInterval = DefaultScheduleInterval
	}
}

func (d *Doctor) Validate() error {
	verr := &ValidationError{}
	d.validateIdentity(verr)
	if d.Role != RoleDoctor {
		verr.Add("role", "role must be doctor")
	}
	if d.Department == "" {
		verr.Add("department", "A doctor must have a department")
	} else if !slices.Contains(Departments, d.Department) {
		verr.Add("department", "department not supported")
	}
	if d.Location != "" && !slices.Contains(Locations, d.Location) {
		verr.Add("location", "location not supported")
	}
	ValidateSchedule(verr, d.ScheduleStart, d.ScheduleEnd, d.ScheduleInterval)
	return verr.OrNil()
}

// ValidateSchedule checks a schedule window; it is shared with partial updates.
func ValidateSchedule(verr *ValidationError, start, end, interval int) {
	if start < 0 || start > lastMinuteOfDay {
		verr.Add("scheduleStart", "scheduleStart must be between 0 and 1439")
	}
	if end < 0 || end > lastMinuteOfDay {
		verr.Add("scheduleEnd", "scheduleEnd must be between 0 and 1439")
	}
	if start >= end {
		verr.Add("scheduleEnd", "scheduleEnd must be after scheduleStart")
	}
	if interval < minScheduleInterval {
		verr.Add("scheduleInterval", "scheduleInterval must be at least 5 minutes")
	}
}

// Slots returns the start time of every appointment slot on the given day.
// A slot is included only when it ends inside the schedule window.
func (d *Doctor) Slots(day time.Time) []time.Time {
	if d.ScheduleInterval <= 0 {
		return nil
	}
	y, m, dd := day.UTC().Date()
	midnight := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)

	var slots []time.Time
	for minute := d.ScheduleStart; minute+d.ScheduleInterval <= d.ScheduleEnd; minute += d.ScheduleInterval {
		slots = append(slots, midnight.Add(time.Duration(minute)*time.Minute))
	}
	return slots
}

// IsSlot reports whether t is exactly one of the doctor's slot start times.
func (d *Doctor) IsSlot(t time.Time) bool {
	for _, s := range d.Slots(t) {
		if s.Equal(t) {
			return true
		}
	}
	return false
}
